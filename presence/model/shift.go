package model

import "time"

type ShiftStatus string

const (
	ShiftScheduled  ShiftStatus = "SCHEDULED"
	ShiftInProgress ShiftStatus = "IN_PROGRESS"
	ShiftCompleted  ShiftStatus = "COMPLETED"
	ShiftAbsent     ShiftStatus = "ABSENT"
	ShiftOnLeave    ShiftStatus = "ON_LEAVE"
)

const DefaultShiftType = "REGULAR"

type EmployeeShift struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	EmployeeID string    `gorm:"column:employee_id;type:varchar(64);not null;index:idx_shift_employee_date" json:"employeeId"`
	ShiftDate  time.Time `gorm:"column:shift_date;type:date;not null;index:idx_shift_employee_date;index" json:"shiftDate"`
	ShiftType  string    `gorm:"column:shift_type;type:varchar(32);not null;default:REGULAR" json:"shiftType"`

	// "08:00" or "08:00:00", local to the configured timezone
	ScheduledStart string `gorm:"column:scheduled_start;type:varchar(8);not null" json:"scheduledStart"`
	ScheduledEnd   string `gorm:"column:scheduled_end;type:varchar(8);not null" json:"scheduledEnd"`

	CheckInTime       *time.Time `gorm:"column:check_in_time" json:"checkInTime"`
	CheckOutTime      *time.Time `gorm:"column:check_out_time" json:"checkOutTime"`
	LateMinutes       int        `gorm:"column:late_minutes;not null;default:0" json:"lateMinutes"`
	EarlyLeaveMinutes int        `gorm:"column:early_leave_minutes;not null;default:0" json:"earlyLeaveMinutes"`
	WorkHours         float64    `gorm:"column:work_hours;type:decimal(10,2);not null;default:0" json:"workHours"`
	OvertimeHours     float64    `gorm:"column:overtime_hours;type:decimal(10,2);not null;default:0" json:"overtimeHours"`

	PresenceVerificationRequired bool `gorm:"column:presence_verification_required;not null;default:true" json:"presenceVerificationRequired"`
	PresenceRoundsRequired       int  `gorm:"column:presence_rounds_required;not null;default:0" json:"presenceRoundsRequired"`
	PresenceRoundsCompleted      int  `gorm:"column:presence_rounds_completed;not null;default:0" json:"presenceRoundsCompleted"`

	Status           ShiftStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	StatusReason     string      `gorm:"column:status_reason;type:varchar(64)" json:"statusReason"`
	IsManuallyEdited bool        `gorm:"column:is_manually_edited;not null;default:false" json:"isManuallyEdited"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (EmployeeShift) TableName() string {
	return "employee_shifts"
}

func (s *EmployeeShift) CheckedIn() bool {
	return s.CheckInTime != nil
}

func (s *EmployeeShift) CheckedOut() bool {
	return s.CheckOutTime != nil
}
