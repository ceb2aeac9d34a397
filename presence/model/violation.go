package model

import (
	"fmt"
	"time"
)

type ViolationType string

const (
	ViolationNoCheckIn          ViolationType = "NO_CHECK_IN"
	ViolationNoCheckOut         ViolationType = "NO_CHECK_OUT"
	ViolationInsufficientGps    ViolationType = "INSUFFICIENT_GPS"
	ViolationRoundsIncomplete   ViolationType = "GPS_ROUNDS_INCOMPLETE"
	ViolationValidPercentageLow ViolationType = "GPS_VALID_PERCENTAGE_TOO_LOW"
)

type ViolationRecord struct {
	ID            string        `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ShiftID       string        `gorm:"column:shift_id;type:varchar(36);not null;index" json:"shiftId"`
	EmployeeID    string        `gorm:"column:employee_id;type:varchar(64);not null;index" json:"employeeId"`
	ViolationType ViolationType `gorm:"column:violation_type;type:varchar(40);not null" json:"violationType"`
	Description   string        `gorm:"column:description;type:text" json:"description"`
	Resolved      bool          `gorm:"column:resolved;not null;default:false" json:"resolved"`
	ResolvedAt    *time.Time    `gorm:"column:resolved_at" json:"resolvedAt"`

	// set while unresolved, NULL after; the unique index allows many NULLs
	OpenKey *string `gorm:"column:open_key;type:varchar(96);uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
}

func (ViolationRecord) TableName() string {
	return "violation_records"
}

func OpenViolationKey(shiftID string, vt ViolationType) string {
	return fmt.Sprintf("%s:%s", shiftID, vt)
}
