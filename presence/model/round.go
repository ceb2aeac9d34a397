package model

import "time"

type ValidationStatus string

const (
	RoundValid   ValidationStatus = "VALID"
	RoundInvalid ValidationStatus = "INVALID"
)

type PresenceVerificationRound struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ShiftID     string    `gorm:"column:shift_id;type:varchar(36);not null;uniqueIndex:idx_round_shift_number" json:"shiftId"`
	RoundNumber int       `gorm:"column:round_number;not null;uniqueIndex:idx_round_shift_number" json:"roundNumber"`
	CapturedAt  time.Time `gorm:"column:captured_at;not null;index" json:"capturedAt"`

	Latitude       float64  `gorm:"column:latitude" json:"latitude"`
	Longitude      float64  `gorm:"column:longitude" json:"longitude"`
	AccuracyMeters *float64 `gorm:"column:accuracy_meters" json:"accuracyMeters"`
	DistanceMeters float64  `gorm:"column:distance_meters;type:decimal(12,2)" json:"distanceMeters"`

	IsValid          bool             `gorm:"column:is_valid;not null" json:"isValid"`
	ValidationStatus ValidationStatus `gorm:"column:validation_status;type:varchar(16);not null" json:"validationStatus"`
	Reason           string           `gorm:"column:reason;type:varchar(255)" json:"reason"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
}

func (PresenceVerificationRound) TableName() string {
	return "presence_verification_rounds"
}
