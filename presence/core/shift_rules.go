package core

import (
	"fmt"
	"math"
	"time"

	"axiapac.com/presence/presence/model"
)

const (
	DefaultShiftStart  = "08:00"
	DefaultShiftFinish = "17:00"
	DefaultShiftRounds = 3
)

// ShiftWindow resolves the scheduled start and end of a shift as absolute
// times in loc. If the end is not after the start the shift runs overnight
// and the end belongs to the next calendar day.
func ShiftWindow(shift *model.EmployeeShift, loc *time.Location) (time.Time, time.Time, error) {
	base := time.Date(shift.ShiftDate.Year(), shift.ShiftDate.Month(), shift.ShiftDate.Day(), 0, 0, 0, 0, loc)

	start, err := ParseTimeOnDate(base, shift.ScheduledStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid scheduled start %s: %w", shift.ScheduledStart, err)
	}
	end, err := ParseTimeOnDate(base, shift.ScheduledEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid scheduled end %s: %w", shift.ScheduledEnd, err)
	}

	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// ParseTimeOnDate combines a base date with a time string (e.g. "08:00")
func ParseTimeOnDate(baseDate time.Time, timeStr string) (time.Time, error) {
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		t, err = time.Parse("15:04:05", timeStr)
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(baseDate.Year(), baseDate.Month(), baseDate.Day(), t.Hour(), t.Minute(), t.Second(), 0, baseDate.Location()), nil
}

func ShiftDurationHours(shift *model.EmployeeShift, loc *time.Location) float64 {
	start, end, err := ShiftWindow(shift, loc)
	if err != nil {
		return 0
	}
	return end.Sub(start).Hours()
}

// LateMinutes is how far checkIn falls after the scheduled start, never negative.
func LateMinutes(checkIn, start time.Time) int {
	return wholeMinutes(clamp(checkIn.Sub(start)))
}

// EarlyLeaveMinutes is how far checkOut falls before the scheduled end, never negative.
func EarlyLeaveMinutes(checkOut, end time.Time) int {
	return wholeMinutes(clamp(end.Sub(checkOut)))
}

// WorkHours is the overlap of [checkIn, checkOut] with [start, end].
func WorkHours(checkIn, checkOut, start, end time.Time) float64 {
	from := checkIn
	if start.After(from) {
		from = start
	}
	to := checkOut
	if end.Before(to) {
		to = end
	}
	return roundTo(clamp(to.Sub(from)).Hours(), 2)
}

// OvertimeHours counts time worked after the scheduled end.
func OvertimeHours(checkOut, end time.Time) float64 {
	return roundTo(clamp(checkOut.Sub(end)).Hours(), 2)
}

type ShiftTotals struct {
	WorkHours         float64
	OvertimeHours     float64
	EarlyLeaveMinutes int
}

func ComputeCheckoutTotals(checkIn, checkOut, start, end time.Time) ShiftTotals {
	return ShiftTotals{
		WorkHours:         WorkHours(checkIn, checkOut, start, end),
		OvertimeHours:     OvertimeHours(checkOut, end),
		EarlyLeaveMinutes: EarlyLeaveMinutes(checkOut, end),
	}
}

// InActiveWindow reports whether t falls inside the shift's window widened by
// lead before the start and lag after the end.
func InActiveWindow(shift *model.EmployeeShift, t time.Time, loc *time.Location, lead, lag time.Duration) bool {
	start, end, err := ShiftWindow(shift, loc)
	if err != nil {
		return false
	}
	return !t.Before(start.Add(-lead)) && !t.After(end.Add(lag))
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func wholeMinutes(d time.Duration) int {
	return int(math.Floor(d.Minutes()))
}
