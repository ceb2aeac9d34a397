package core

import (
	"sort"

	"axiapac.com/presence/presence/model"
)

// FallbackPolicy applies when no stored policy matches a shift.
var FallbackPolicy = model.GpsCheckPolicy{
	Name:               "built-in",
	MinChecksPerShift:  DefaultShiftRounds,
	MaxChecksPerShift:  DefaultShiftRounds,
	MinValidPercentage: 80,
	IsDefault:          true,
	IsActive:           true,
}

// SelectPolicy picks the active policy that matches the shift type and
// duration with the highest priority. Ties go to the type-scoped policy,
// then the lower id. With no match the default for the type's scope is
// used, then the global default, then FallbackPolicy.
func SelectPolicy(policies []model.GpsCheckPolicy, shiftType string, hours float64) model.GpsCheckPolicy {
	var candidates []model.GpsCheckPolicy
	for _, p := range policies {
		if !p.IsActive || !p.AppliesToType(shiftType) || !p.AppliesToHours(hours) {
			continue
		}
		candidates = append(candidates, p)
	}

	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			if a.Scoped() != b.Scoped() {
				return a.Scoped()
			}
			return a.ID < b.ID
		})
		return candidates[0]
	}

	var global *model.GpsCheckPolicy
	for i := range policies {
		p := &policies[i]
		if !p.IsActive || !p.IsDefault || !p.AppliesToType(shiftType) {
			continue
		}
		if p.Scoped() {
			return *p
		}
		if global == nil {
			global = p
		}
	}
	if global != nil {
		return *global
	}
	return FallbackPolicy
}
