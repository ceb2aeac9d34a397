package model

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type GpsCheckPolicy struct {
	ID   int32  `gorm:"primaryKey;column:id" json:"id" yaml:"-"`
	Name string `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name" yaml:"name"`

	// JSON array of shift types, empty applies to every type
	ShiftTypes    datatypes.JSON `gorm:"column:shift_types" json:"shiftTypes" yaml:"-"`
	MinShiftHours float64        `gorm:"column:min_shift_hours;type:decimal(5,2);not null;default:0" json:"minShiftHours" yaml:"minShiftHours"`
	MaxShiftHours float64        `gorm:"column:max_shift_hours;type:decimal(5,2);not null;default:0" json:"maxShiftHours" yaml:"maxShiftHours"`

	MinChecksPerShift  int     `gorm:"column:min_checks_per_shift;not null" json:"minChecksPerShift" yaml:"minChecksPerShift"`
	MaxChecksPerShift  int     `gorm:"column:max_checks_per_shift;not null" json:"maxChecksPerShift" yaml:"maxChecksPerShift"`
	MinValidPercentage float64 `gorm:"column:min_valid_percentage;type:decimal(5,2);not null" json:"minValidPercentage" yaml:"minValidPercentage"`

	IsDefault bool `gorm:"column:is_default;not null;default:false" json:"isDefault" yaml:"isDefault"`
	Priority  int  `gorm:"column:priority;not null;default:0" json:"priority" yaml:"priority"`
	IsActive  bool `gorm:"column:is_active;not null;default:true" json:"isActive" yaml:"isActive"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt" yaml:"-"`
}

func (GpsCheckPolicy) TableName() string {
	return "gps_check_policies"
}

// ShiftTypeList decodes ShiftTypes. A malformed column reads as "all types".
func (p *GpsCheckPolicy) ShiftTypeList() []string {
	if len(p.ShiftTypes) == 0 {
		return nil
	}
	var types []string
	if err := json.Unmarshal(p.ShiftTypes, &types); err != nil {
		return nil
	}
	return types
}

func (p *GpsCheckPolicy) SetShiftTypes(types []string) {
	if len(types) == 0 {
		p.ShiftTypes = nil
		return
	}
	b, _ := json.Marshal(types)
	p.ShiftTypes = datatypes.JSON(b)
}

func (p *GpsCheckPolicy) AppliesToType(shiftType string) bool {
	types := p.ShiftTypeList()
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if strings.EqualFold(t, shiftType) {
			return true
		}
	}
	return false
}

// AppliesToHours reports whether a shift of the given length falls in the
// policy's duration band. A zero bound is open.
func (p *GpsCheckPolicy) AppliesToHours(hours float64) bool {
	if p.MinShiftHours > 0 && hours < p.MinShiftHours {
		return false
	}
	if p.MaxShiftHours > 0 && hours > p.MaxShiftHours {
		return false
	}
	return true
}

func (p *GpsCheckPolicy) Scoped() bool {
	return len(p.ShiftTypeList()) > 0
}
