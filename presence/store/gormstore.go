// Package store persists the presence model in MySQL through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbcore "axiapac.com/presence/core"
	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	dm     *dbcore.DatabaseManager
	schema string
}

var _ core.Store = (*GormStore)(nil)

func New(dm *dbcore.DatabaseManager, schema string) *GormStore {
	return &GormStore{dm: dm, schema: schema}
}

func (s *GormStore) exec(ctx context.Context, fn func(db *gorm.DB) error) error {
	return s.dm.Exec(ctx, s.schema, fn)
}

func (s *GormStore) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.dm.Transaction(ctx, s.schema, fn)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.ErrNotFound
	}
	return err
}

func dateString(t time.Time) string {
	return t.Format(time.DateOnly)
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.exec(ctx, func(db *gorm.DB) error {
		return db.AutoMigrate(model.All()...)
	})
}

func (s *GormStore) FindBeacon(ctx context.Context, uuid string, major, minor int) (*model.Beacon, error) {
	var beacon model.Beacon
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Where("uuid = ? AND major = ? AND minor = ?", uuid, major, minor).First(&beacon).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &beacon, nil
}

func (s *GormStore) GetShift(ctx context.Context, id string) (*model.EmployeeShift, error) {
	var shift model.EmployeeShift
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.First(&shift, "id = ?", id).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &shift, nil
}

func (s *GormStore) FindShifts(ctx context.Context, employeeID string, from, to time.Time) ([]model.EmployeeShift, error) {
	var shifts []model.EmployeeShift
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Where("employee_id = ? AND shift_date BETWEEN ? AND ?", employeeID, dateString(from), dateString(to)).
			Order("shift_date, scheduled_start").
			Find(&shifts).Error
	})
	return shifts, err
}

func (s *GormStore) CreateShift(ctx context.Context, shift *model.EmployeeShift) error {
	return s.exec(ctx, func(db *gorm.DB) error {
		return db.Create(shift).Error
	})
}

func (s *GormStore) ListShiftsByStatus(ctx context.Context, statuses []model.ShiftStatus, from, to time.Time) ([]model.EmployeeShift, error) {
	var shifts []model.EmployeeShift
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Where("status IN ? AND shift_date BETWEEN ? AND ?", statuses, dateString(from), dateString(to)).
			Order("shift_date, id").
			Find(&shifts).Error
	})
	return shifts, err
}

// ListShiftsOn returns every shift dated d, for reporting.
func (s *GormStore) ListShiftsOn(ctx context.Context, d time.Time) ([]model.EmployeeShift, error) {
	var shifts []model.EmployeeShift
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Where("shift_date = ?", dateString(d)).Order("employee_id, scheduled_start").Find(&shifts).Error
	})
	return shifts, err
}

func (s *GormStore) GetCheck(ctx context.Context, id string) (*model.AttendanceCheckRecord, error) {
	var check model.AttendanceCheckRecord
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.First(&check, "id = ?", id).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &check, nil
}

func (s *GormStore) ListChecks(ctx context.Context, shiftID string) ([]model.AttendanceCheckRecord, error) {
	var checks []model.AttendanceCheckRecord
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Where("shift_id = ?", shiftID).Order("created_at").Find(&checks).Error
	})
	return checks, err
}

func (s *GormStore) CreateCheck(ctx context.Context, check *model.AttendanceCheckRecord) error {
	return s.exec(ctx, func(db *gorm.DB) error {
		return db.Create(check).Error
	})
}

// AppendRound locks the shift row so concurrent submissions get distinct
// round numbers and cannot pass the limit together.
func (s *GormStore) AppendRound(ctx context.Context, round *model.PresenceVerificationRound, limit int) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		var shift model.EmployeeShift
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&shift, "id = ?", round.ShiftID).Error; err != nil {
			return notFound(err)
		}

		var counts struct {
			Last  int
			Total int
		}
		if err := tx.Model(&model.PresenceVerificationRound{}).
			Where("shift_id = ?", round.ShiftID).
			Select("COALESCE(MAX(round_number), 0) AS last, COUNT(*) AS total").
			Scan(&counts).Error; err != nil {
			return err
		}
		if limit > 0 && counts.Total >= limit {
			return core.NewDomainError(core.ReasonRoundLimitReached, "shift %s already has %d rounds", round.ShiftID, counts.Total)
		}
		round.RoundNumber = counts.Last + 1

		if err := tx.Create(round).Error; err != nil {
			return err
		}
		return tx.Model(&model.EmployeeShift{}).
			Where("id = ?", round.ShiftID).
			UpdateColumn("presence_rounds_completed", gorm.Expr("presence_rounds_completed + 1")).Error
	})
}

func tallyQuery(db *gorm.DB, shiftID string, before time.Time) *gorm.DB {
	return db.Model(&model.PresenceVerificationRound{}).
		Select("COUNT(*) AS completed, COALESCE(SUM(CASE WHEN is_valid THEN 1 ELSE 0 END), 0) AS valid").
		Where("shift_id = ? AND captured_at < ?", shiftID, before)
}

func (s *GormStore) RoundTally(ctx context.Context, shiftID string, before time.Time) (core.Tally, error) {
	var row struct {
		Completed int
		Valid     int
	}
	err := s.exec(ctx, func(db *gorm.DB) error {
		return tallyQuery(db, shiftID, before).Scan(&row).Error
	})
	if err != nil {
		return core.Tally{}, err
	}
	return core.NewTally(row.Completed, row.Valid), nil
}

func (s *GormStore) ListRounds(ctx context.Context, shiftID string) ([]model.PresenceVerificationRound, error) {
	var rounds []model.PresenceVerificationRound
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Where("shift_id = ?", shiftID).Order("round_number").Find(&rounds).Error
	})
	return rounds, err
}

func (s *GormStore) ListPolicies(ctx context.Context) ([]model.GpsCheckPolicy, error) {
	var policies []model.GpsCheckPolicy
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Order("priority DESC, id").Find(&policies).Error
	})
	return policies, err
}

// UpsertPolicies inserts policies or replaces the ones with the same name.
func (s *GormStore) UpsertPolicies(ctx context.Context, policies []model.GpsCheckPolicy) error {
	if len(policies) == 0 {
		return nil
	}
	return s.exec(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"shift_types", "min_shift_hours", "max_shift_hours", "min_checks_per_shift",
				"max_checks_per_shift", "min_valid_percentage", "is_default", "priority", "is_active",
			}),
		}).Create(&policies).Error
	})
}

func checkResultUpdate(db *gorm.DB, check *model.AttendanceCheckRecord) *gorm.DB {
	return db.Model(&model.AttendanceCheckRecord{}).
		Where("id = ? AND is_valid IS NULL", check.ID).
		Updates(map[string]any{
			"face_verified": check.FaceVerified,
			"confidence":    check.Confidence,
			"is_valid":      check.IsValid,
			"reason":        check.Reason,
			"verified_at":   check.VerifiedAt,
		})
}

func shiftStateUpdate(db *gorm.DB, shift *model.EmployeeShift, expected model.ShiftStatus) *gorm.DB {
	return db.Model(&model.EmployeeShift{}).
		Where("id = ? AND status = ? AND is_manually_edited = ?", shift.ID, expected, false).
		Updates(map[string]any{
			"status":                   shift.Status,
			"status_reason":            shift.StatusReason,
			"check_in_time":            shift.CheckInTime,
			"check_out_time":           shift.CheckOutTime,
			"late_minutes":             shift.LateMinutes,
			"early_leave_minutes":      shift.EarlyLeaveMinutes,
			"work_hours":               shift.WorkHours,
			"overtime_hours":           shift.OvertimeHours,
			"presence_rounds_required": shift.PresenceRoundsRequired,
		})
}

func insertOpenViolation(db *gorm.DB, v *model.ViolationRecord) *gorm.DB {
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(v)
}

func (s *GormStore) SaveVerification(ctx context.Context, u core.VerificationUpdate) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		res := checkResultUpdate(tx, u.Check)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrCheckProcessed
		}

		if u.Shift != nil {
			res = shiftStateUpdate(tx, u.Shift, u.ExpectedStatus)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return core.NewDomainError(core.ReasonShiftStatusConflict, "shift %s changed while the result was processed", u.Shift.ID)
			}
		}

		if u.Violation != nil {
			if err := insertOpenViolation(tx, u.Violation).Error; err != nil {
				return fmt.Errorf("failed to record violation: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) OpenViolations(ctx context.Context, shiftIDs []string) (map[string]map[model.ViolationType]bool, error) {
	out := map[string]map[model.ViolationType]bool{}
	if len(shiftIDs) == 0 {
		return out, nil
	}

	var rows []model.ViolationRecord
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Select("shift_id", "violation_type").
			Where("shift_id IN ? AND resolved = ?", shiftIDs, false).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if out[r.ShiftID] == nil {
			out[r.ShiftID] = map[model.ViolationType]bool{}
		}
		out[r.ShiftID][r.ViolationType] = true
	}
	return out, nil
}

func transitionUpdate(db *gorm.DB, t core.Transition) *gorm.DB {
	return db.Model(&model.EmployeeShift{}).
		Where("id = ? AND status = ? AND is_manually_edited = ?", t.ShiftID, t.From, false).
		Updates(map[string]any{"status": t.To, "status_reason": t.Reason})
}

func resolveViolation(db *gorm.DB, shiftID string, vt model.ViolationType, at time.Time) *gorm.DB {
	return db.Model(&model.ViolationRecord{}).
		Where("shift_id = ? AND violation_type = ? AND resolved = ?", shiftID, vt, false).
		Updates(map[string]any{"resolved": true, "resolved_at": at, "open_key": nil})
}

func (s *GormStore) ApplyTransition(ctx context.Context, t core.Transition, at time.Time) (bool, error) {
	applied := false
	err := s.tx(ctx, func(tx *gorm.DB) error {
		res := transitionUpdate(tx, t)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		if t.Open != "" {
			key := model.OpenViolationKey(t.ShiftID, t.Open)
			v := &model.ViolationRecord{
				ID:            uuid.NewString(),
				ShiftID:       t.ShiftID,
				EmployeeID:    t.EmployeeID,
				ViolationType: t.Open,
				Description:   t.Description,
				OpenKey:       &key,
			}
			if err := insertOpenViolation(tx, v).Error; err != nil {
				return err
			}
		}
		if t.Resolve != "" {
			if err := resolveViolation(tx, t.ShiftID, t.Resolve, at).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListViolations returns a shift's violations, newest first.
func (s *GormStore) ListViolations(ctx context.Context, shiftID string) ([]model.ViolationRecord, error) {
	var rows []model.ViolationRecord
	err := s.exec(ctx, func(db *gorm.DB) error {
		return db.Where("shift_id = ?", shiftID).Order("created_at DESC").Find(&rows).Error
	})
	return rows, err
}
