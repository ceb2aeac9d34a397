package app

import (
	"errors"
	"fmt"
	"io"

	"axiapac.com/presence/presence/model"
	"gopkg.in/yaml.v3"
)

type policySeed struct {
	Name               string   `yaml:"name"`
	ShiftTypes         []string `yaml:"shiftTypes"`
	MinShiftHours      float64  `yaml:"minShiftHours"`
	MaxShiftHours      float64  `yaml:"maxShiftHours"`
	MinChecksPerShift  int      `yaml:"minChecksPerShift"`
	MaxChecksPerShift  int      `yaml:"maxChecksPerShift"`
	MinValidPercentage float64  `yaml:"minValidPercentage"`
	IsDefault          bool     `yaml:"isDefault"`
	Priority           int      `yaml:"priority"`
	IsActive           *bool    `yaml:"isActive"`
}

type policyFile struct {
	Policies []policySeed `yaml:"policies"`
}

// DecodePolicies reads a YAML policy file:
//
//	policies:
//	  - name: long-shift
//	    shiftTypes: [FIELD]
//	    minShiftHours: 8
//	    minChecksPerShift: 3
//	    maxChecksPerShift: 5
//	    minValidPercentage: 66.67
func DecodePolicies(r io.Reader) ([]model.GpsCheckPolicy, error) {
	var file policyFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode policies: %w", err)
	}
	if len(file.Policies) == 0 {
		return nil, errors.New("policy file has no policies")
	}

	policies := make([]model.GpsCheckPolicy, 0, len(file.Policies))
	seen := map[string]bool{}
	for i, seed := range file.Policies {
		p := model.GpsCheckPolicy{
			Name:               seed.Name,
			MinShiftHours:      seed.MinShiftHours,
			MaxShiftHours:      seed.MaxShiftHours,
			MinChecksPerShift:  seed.MinChecksPerShift,
			MaxChecksPerShift:  seed.MaxChecksPerShift,
			MinValidPercentage: seed.MinValidPercentage,
			IsDefault:          seed.IsDefault,
			Priority:           seed.Priority,
		}
		if p.Name == "" {
			return nil, fmt.Errorf("policy %d has no name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("policy %s is defined twice", p.Name)
		}
		seen[p.Name] = true
		if p.MinChecksPerShift < 1 || p.MaxChecksPerShift < p.MinChecksPerShift {
			return nil, fmt.Errorf("policy %s: checks per shift must satisfy 1 <= min <= max", p.Name)
		}
		if p.MinValidPercentage < 0 || p.MinValidPercentage > 100 {
			return nil, fmt.Errorf("policy %s: minValidPercentage must be within 0..100", p.Name)
		}
		p.IsActive = seed.IsActive == nil || *seed.IsActive
		p.SetShiftTypes(seed.ShiftTypes)
		policies = append(policies, p)
	}
	return policies, nil
}
