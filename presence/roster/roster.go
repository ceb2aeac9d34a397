// Package roster imports scheduled shifts from CSV.
//
// Expected header (case-insensitive, extra columns ignored):
//
//	employee_id,date,start,end,type,verification,rounds
//
// type defaults to REGULAR, verification to true and rounds to 0 (the policy
// decides at check-in).
package roster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/model"
	"axiapac.com/presence/utils"
	"github.com/google/uuid"
)

type Store interface {
	FindShifts(ctx context.Context, employeeID string, from, to time.Time) ([]model.EmployeeShift, error)
	CreateShift(ctx context.Context, shift *model.EmployeeShift) error
}

// Parse reads shifts from r. Dates are read in loc. Every bad row is
// reported, not just the first.
func Parse(r io.Reader, loc *time.Location) ([]model.EmployeeShift, error) {
	if loc == nil {
		loc = time.UTC
	}
	rows, err := utils.ReadTable(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var shifts []model.EmployeeShift
	var problems []string
	for _, row := range rows {
		shift, err := parseRow(row, loc)
		if err != nil {
			problems = append(problems, fmt.Sprintf("line %d: %v", row.Line, err))
			continue
		}
		shifts = append(shifts, shift)
	}
	if len(problems) > 0 {
		return nil, &ParseError{Problems: problems}
	}
	return shifts, nil
}

type ParseError struct {
	Problems []string
}

func (e *ParseError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid roster: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid roster: %s (and %d more)", e.Problems[0], len(e.Problems)-1)
}

func parseRow(row utils.Row, loc *time.Location) (model.EmployeeShift, error) {
	shift := model.EmployeeShift{
		EmployeeID:                   row.Get("employee_id"),
		ShiftType:                    row.Get("type"),
		ScheduledStart:               row.Get("start"),
		ScheduledEnd:                 row.Get("end"),
		PresenceVerificationRequired: true,
		Status:                       model.ShiftScheduled,
	}
	if shift.EmployeeID == "" {
		return shift, fmt.Errorf("employee_id is required")
	}
	if shift.ShiftType == "" {
		shift.ShiftType = model.DefaultShiftType
	}

	date, err := time.ParseInLocation(time.DateOnly, row.Get("date"), loc)
	if err != nil {
		return shift, fmt.Errorf("invalid date %q", row.Get("date"))
	}
	shift.ShiftDate = date
	if _, _, err := core.ShiftWindow(&shift, loc); err != nil {
		return shift, err
	}

	if v := row.Get("verification"); v != "" {
		if shift.PresenceVerificationRequired, err = strconv.ParseBool(v); err != nil {
			return shift, fmt.Errorf("invalid verification %q", v)
		}
	}
	if v := row.Get("rounds"); v != "" {
		if shift.PresenceRoundsRequired, err = strconv.Atoi(v); err != nil || shift.PresenceRoundsRequired < 0 {
			return shift, fmt.Errorf("invalid rounds %q", v)
		}
	}
	return shift, nil
}

type Result struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type Importer struct {
	store  Store
	logger *slog.Logger
}

func NewImporter(store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// Import creates the shifts that do not exist yet. A shift exists when the
// employee already has one on the same date with the same start, so
// importing the same roster twice creates nothing the second time.
func (im *Importer) Import(ctx context.Context, shifts []model.EmployeeShift) (*Result, error) {
	result := &Result{}

	byEmployee := utils.GroupBy(shifts, func(s model.EmployeeShift) string { return s.EmployeeID })
	employees := make([]string, 0, len(byEmployee))
	for id := range byEmployee {
		employees = append(employees, id)
	}
	sort.Strings(employees)

	for _, employeeID := range employees {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		planned := byEmployee[employeeID]
		from, to := dateRange(planned)

		existing, err := im.store.FindShifts(ctx, employeeID, from, to)
		if err != nil {
			im.logger.Error("failed to load existing shifts", "employee", employeeID, "error", err)
			result.Failed += len(planned)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", employeeID, err))
			continue
		}
		seen := make(map[string]bool, len(existing))
		for _, s := range existing {
			seen[shiftKey(s)] = true
		}

		for _, s := range planned {
			key := shiftKey(s)
			if seen[key] {
				result.Skipped++
				continue
			}
			s.ID = uuid.NewString()
			if err := im.store.CreateShift(ctx, &s); err != nil {
				im.logger.Error("failed to create shift", "employee", employeeID, "date", s.ShiftDate.Format(time.DateOnly), "error", err)
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", employeeID, s.ShiftDate.Format(time.DateOnly), err))
				continue
			}
			seen[key] = true
			result.Created++
		}
	}

	im.logger.Info("roster imported", "created", result.Created, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// ImportCSV parses and imports in one step.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, loc *time.Location) (*Result, error) {
	shifts, err := Parse(r, loc)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, shifts)
}

func shiftKey(s model.EmployeeShift) string {
	start := s.ScheduledStart
	if len(start) == len("15:04") {
		start += ":00"
	}
	return s.ShiftDate.Format(time.DateOnly) + "|" + start
}

func dateRange(shifts []model.EmployeeShift) (time.Time, time.Time) {
	from, to := shifts[0].ShiftDate, shifts[0].ShiftDate
	for _, s := range shifts[1:] {
		if s.ShiftDate.Before(from) {
			from = s.ShiftDate
		}
		if s.ShiftDate.After(to) {
			to = s.ShiftDate
		}
	}
	return from, to
}
