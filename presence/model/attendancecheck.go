package model

import "time"

type CheckType string

const (
	CheckIn  CheckType = "CHECK_IN"
	CheckOut CheckType = "CHECK_OUT"
	// CheckAuto asks the orchestrator to derive the type from shift state.
	CheckAuto CheckType = "AUTO"
)

type AttendanceCheckRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	EmployeeID string    `gorm:"column:employee_id;type:varchar(64);not null;index" json:"employeeId"`
	ShiftID    string    `gorm:"column:shift_id;type:varchar(36);not null;index" json:"shiftId"`
	CheckType  CheckType `gorm:"column:check_type;type:varchar(16);not null" json:"checkType"`

	BeaconID        string `gorm:"column:beacon_id;type:varchar(36)" json:"beaconId"`
	BeaconValidated bool   `gorm:"column:beacon_validated;not null;default:false" json:"beaconValidated"`
	GpsValidated    bool   `gorm:"column:gps_validated;not null;default:false" json:"gpsValidated"`
	FaceVerified    bool   `gorm:"column:face_verified;not null;default:false" json:"faceVerified"`

	Latitude       *float64 `gorm:"column:latitude" json:"latitude"`
	Longitude      *float64 `gorm:"column:longitude" json:"longitude"`
	DistanceMeters *float64 `gorm:"column:distance_meters;type:decimal(12,2)" json:"distanceMeters"`

	Confidence float64 `gorm:"column:confidence;type:decimal(5,4);not null;default:0" json:"confidence"`
	// nil until the biometric callback arrives
	IsValid    *bool      `gorm:"column:is_valid" json:"isValid"`
	Reason     string     `gorm:"column:reason;type:varchar(64)" json:"reason"`
	Notes      string     `gorm:"column:notes;type:text" json:"notes"`
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verifiedAt"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (AttendanceCheckRecord) TableName() string {
	return "attendance_checks"
}

func (r *AttendanceCheckRecord) Processed() bool {
	return r.IsValid != nil
}

func (r *AttendanceCheckRecord) Accepted() bool {
	return r.IsValid != nil && *r.IsValid
}
