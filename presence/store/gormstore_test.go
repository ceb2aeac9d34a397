package store

import (
	"testing"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dryRunDB renders SQL without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "presence:secret@tcp(127.0.0.1:3306)/presence?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestGuardedUpdates(t *testing.T) {
	db := dryRunDB(t)
	valid := true
	at := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)

	t.Run("check result only once", func(t *testing.T) {
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			return checkResultUpdate(tx, &model.AttendanceCheckRecord{ID: "C1", IsValid: &valid, VerifiedAt: &at})
		})
		assert.Contains(t, sql, "UPDATE `attendance_checks`")
		assert.Contains(t, sql, "is_valid IS NULL")
	})

	t.Run("shift state keyed on expected status", func(t *testing.T) {
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			return shiftStateUpdate(tx, &model.EmployeeShift{ID: "S1", Status: model.ShiftCompleted}, model.ShiftInProgress)
		})
		assert.Contains(t, sql, "UPDATE `employee_shifts`")
		assert.Contains(t, sql, "status = 'IN_PROGRESS'")
		assert.Contains(t, sql, "is_manually_edited = false")
		assert.NotContains(t, sql, "presence_rounds_completed")
	})

	t.Run("transition", func(t *testing.T) {
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			return transitionUpdate(tx, core.Transition{ShiftID: "S1", From: model.ShiftScheduled, To: model.ShiftAbsent, Reason: "NO_CHECK_IN"})
		})
		assert.Contains(t, sql, "status = 'SCHEDULED'")
		assert.Contains(t, sql, "`status`='ABSENT'")
	})

	t.Run("violation insert is a no-op on conflict", func(t *testing.T) {
		key := model.OpenViolationKey("S1", model.ViolationNoCheckIn)
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			return insertOpenViolation(tx, &model.ViolationRecord{ID: "V1", ShiftID: "S1", ViolationType: model.ViolationNoCheckIn, OpenKey: &key})
		})
		assert.Contains(t, sql, "INSERT INTO `violation_records`")
		assert.Contains(t, sql, "ON DUPLICATE KEY UPDATE")
	})

	t.Run("resolve clears the open key", func(t *testing.T) {
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			return resolveViolation(tx, "S1", model.ViolationNoCheckIn, at)
		})
		assert.Contains(t, sql, "`open_key`=NULL")
		assert.Contains(t, sql, "resolved = false")
	})

	t.Run("tally is bounded by the callback time", func(t *testing.T) {
		var row struct{ Completed, Valid int }
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			return tallyQuery(tx, "S1", at).Scan(&row)
		})
		assert.Contains(t, sql, "captured_at < '2024-03-04 17:00:00'")
	})
}
