package model

import "time"

// Beacon is administered elsewhere; this service only reads it.
type Beacon struct {
	ID       string `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	UUID     string `gorm:"column:uuid;type:varchar(36);not null;uniqueIndex:idx_beacon_identity" json:"uuid"`
	Major    int    `gorm:"column:major;not null;uniqueIndex:idx_beacon_identity" json:"major"`
	Minor    int    `gorm:"column:minor;not null;uniqueIndex:idx_beacon_identity" json:"minor"`
	Name     string `gorm:"column:name;type:varchar(100)" json:"name"`
	TxPower  int    `gorm:"column:tx_power;not null;default:-59" json:"txPower"`
	IsActive bool   `gorm:"column:is_active;not null;default:true" json:"isActive"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
}

func (Beacon) TableName() string {
	return "beacons"
}

// All lists every table this service migrates.
func All() []any {
	return []any{
		&Beacon{},
		&EmployeeShift{},
		&AttendanceCheckRecord{},
		&PresenceVerificationRound{},
		&GpsCheckPolicy{},
		&ViolationRecord{},
	}
}
