package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"axiapac.com/presence/presence/model"
	"golang.org/x/sync/errgroup"
)

const (
	SweepMissingCheckIn  = "missing_check_in"
	SweepMissingCheckOut = "missing_check_out"
	SweepInsufficientGps = "insufficient_gps"
	SweepLateCheckIn     = "late_check_in"

	DefaultCheckoutGrace = 2 * time.Hour
	DefaultLookbackDays  = 3
)

func SweepNames() []string {
	return []string{SweepMissingCheckIn, SweepMissingCheckOut, SweepInsufficientGps, SweepLateCheckIn}
}

func IsSweep(name string) bool {
	return slices.Contains(SweepNames(), name)
}

// Snapshot is the data one sweep decides on.
type Snapshot struct {
	Shifts         []model.EmployeeShift
	Policies       []model.GpsCheckPolicy
	OpenViolations map[string]map[model.ViolationType]bool
	Tallies        map[string]Tally
}

func (s Snapshot) hasOpen(shiftID string, vt model.ViolationType) bool {
	return s.OpenViolations[shiftID][vt]
}

// SweepRules holds the detectors. Each is a pure function of now and a
// snapshot and never touches storage.
type SweepRules struct {
	Location      *time.Location
	CheckoutGrace time.Duration
}

func (r SweepRules) ended(shift *model.EmployeeShift, now time.Time, grace time.Duration) bool {
	_, end, err := ShiftWindow(shift, r.location())
	if err != nil {
		return false
	}
	return now.After(end.Add(grace))
}

func absentTransition(sweep string, shift *model.EmployeeShift, vt model.ViolationType, description string) Transition {
	return Transition{
		Sweep:       sweep,
		ShiftID:     shift.ID,
		EmployeeID:  shift.EmployeeID,
		From:        shift.Status,
		To:          model.ShiftAbsent,
		Reason:      string(vt),
		Open:        vt,
		Description: description,
	}
}

func (r SweepRules) MissingCheckIn(now time.Time, snap Snapshot) []Transition {
	var out []Transition
	for i := range snap.Shifts {
		s := &snap.Shifts[i]
		if s.IsManuallyEdited || s.Status != model.ShiftScheduled || s.CheckedIn() {
			continue
		}
		if !r.ended(s, now, 0) {
			continue
		}
		out = append(out, absentTransition(SweepMissingCheckIn, s, model.ViolationNoCheckIn,
			fmt.Sprintf("no check-in for %s shift %s-%s", s.ShiftDate.Format(time.DateOnly), s.ScheduledStart, s.ScheduledEnd)))
	}
	return out
}

func (r SweepRules) MissingCheckOut(now time.Time, snap Snapshot) []Transition {
	var out []Transition
	for i := range snap.Shifts {
		s := &snap.Shifts[i]
		if s.IsManuallyEdited || s.Status != model.ShiftInProgress || s.CheckedOut() {
			continue
		}
		if !r.ended(s, now, r.CheckoutGrace) {
			continue
		}
		out = append(out, absentTransition(SweepMissingCheckOut, s, model.ViolationNoCheckOut,
			fmt.Sprintf("no check-out within %s of %s shift end %s", r.CheckoutGrace, s.ShiftDate.Format(time.DateOnly), s.ScheduledEnd)))
	}
	return out
}

func (r SweepRules) InsufficientGps(now time.Time, snap Snapshot) []Transition {
	var out []Transition
	for i := range snap.Shifts {
		s := &snap.Shifts[i]
		if s.IsManuallyEdited || s.Status != model.ShiftInProgress || s.CheckedOut() || !s.PresenceVerificationRequired {
			continue
		}
		if !r.ended(s, now, 0) {
			continue
		}
		tally, ok := snap.Tallies[s.ID]
		if !ok || tally.Completed == 0 {
			continue
		}
		policy := SelectPolicy(snap.Policies, s.ShiftType, ShiftDurationHours(s, r.location()))
		if tally.Percentage >= policy.MinValidPercentage {
			continue
		}
		out = append(out, absentTransition(SweepInsufficientGps, s, model.ViolationInsufficientGps,
			fmt.Sprintf("%d of %d presence rounds valid (%.2f%%), policy %q requires %.0f%%",
				tally.Valid, tally.Completed, tally.Percentage, policy.Name, policy.MinValidPercentage)))
	}
	return out
}

// LateCheckIn reverts shifts marked absent for a missing check-in that
// has since arrived. Shifts that also failed the GPS checks stay absent.
func (r SweepRules) LateCheckIn(now time.Time, snap Snapshot) []Transition {
	var out []Transition
	for i := range snap.Shifts {
		s := &snap.Shifts[i]
		if s.IsManuallyEdited || s.Status != model.ShiftAbsent || !s.CheckedIn() {
			continue
		}
		if !snap.hasOpen(s.ID, model.ViolationNoCheckIn) {
			continue
		}
		if gpsAbsence(s, snap) {
			continue
		}
		to := model.ShiftInProgress
		if s.CheckedOut() {
			to = model.ShiftCompleted
		}
		out = append(out, Transition{
			Sweep:       SweepLateCheckIn,
			ShiftID:     s.ID,
			EmployeeID:  s.EmployeeID,
			From:        s.Status,
			To:          to,
			Reason:      string(ReasonLateCheckIn),
			Resolve:     model.ViolationNoCheckIn,
			Description: fmt.Sprintf("late check-in at %s", s.CheckInTime.In(r.location()).Format("15:04")),
		})
	}
	return out
}

var gpsViolations = []model.ViolationType{
	model.ViolationInsufficientGps,
	model.ViolationRoundsIncomplete,
	model.ViolationValidPercentageLow,
}

func gpsAbsence(shift *model.EmployeeShift, snap Snapshot) bool {
	for _, vt := range gpsViolations {
		if string(vt) == shift.StatusReason || snap.hasOpen(shift.ID, vt) {
			return true
		}
	}
	return false
}

func (r SweepRules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

type SweepReport struct {
	Name         string    `json:"name"`
	RanAt        time.Time `json:"ranAt"`
	Examined     int       `json:"examined"`
	Transitioned int       `json:"transitioned"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	Error        string    `json:"error,omitempty"`
}

type EngineStore interface {
	ShiftStore
	RoundStore
	PolicyStore
	SweepStore
}

type sweepDef struct {
	statuses []model.ShiftStatus
	detect   func(time.Time, Snapshot) []Transition
	policies bool
	tallies  bool
	open     bool
}

// Engine loads snapshots, runs detectors and applies their transitions one
// at a time. A failed transition is counted and the sweep moves on.
type Engine struct {
	store     EngineStore
	publisher Publisher
	rules     SweepRules
	lookback  int
	logger    *slog.Logger
	sweeps    map[string]sweepDef

	// one run per sweep name at a time
	running sync.Map
}

func NewEngine(store EngineStore, publisher Publisher, rules SweepRules, lookbackDays int, logger *slog.Logger) *Engine {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	if rules.CheckoutGrace < 0 {
		rules.CheckoutGrace = DefaultCheckoutGrace
	}
	if logger == nil {
		logger = slog.Default()
	}
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	e := &Engine{store: store, publisher: publisher, rules: rules, lookback: lookbackDays, logger: logger}
	e.sweeps = map[string]sweepDef{
		SweepMissingCheckIn:  {statuses: []model.ShiftStatus{model.ShiftScheduled}, detect: rules.MissingCheckIn},
		SweepMissingCheckOut: {statuses: []model.ShiftStatus{model.ShiftInProgress}, detect: rules.MissingCheckOut},
		SweepInsufficientGps: {statuses: []model.ShiftStatus{model.ShiftInProgress}, detect: rules.InsufficientGps, policies: true, tallies: true},
		SweepLateCheckIn:     {statuses: []model.ShiftStatus{model.ShiftAbsent}, detect: rules.LateCheckIn, open: true},
	}
	return e
}

var (
	ErrUnknownSweep = errors.New("unknown sweep")
	// ErrSweepRunning is returned when the same sweep is already in progress.
	ErrSweepRunning = errors.New("sweep already running")
)

func (e *Engine) Run(ctx context.Context, name string, now time.Time) (*SweepReport, error) {
	def, ok := e.sweeps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSweep, name)
	}
	if _, busy := e.running.LoadOrStore(name, struct{}{}); busy {
		return nil, fmt.Errorf("%w: %s", ErrSweepRunning, name)
	}
	defer e.running.Delete(name)

	report := &SweepReport{Name: name, RanAt: now}
	snap, err := e.snapshot(ctx, def, now, report)
	if err != nil {
		return nil, err
	}
	report.Examined = len(snap.Shifts)

	for _, t := range def.detect(now, snap) {
		applied, err := e.store.ApplyTransition(ctx, t, now)
		switch {
		case err != nil:
			report.Failed++
			e.logger.Error("sweep transition failed", "sweep", name, "shift", t.ShiftID, "error", err)
		case !applied:
			report.Skipped++
			e.logger.Debug("sweep transition skipped", "sweep", name, "shift", t.ShiftID)
		default:
			report.Transitioned++
			e.announce(ctx, t, now)
		}
	}

	e.logger.Info("sweep finished",
		"sweep", name,
		"examined", report.Examined,
		"transitioned", report.Transitioned,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// RunAll runs every sweep concurrently against the same instant. A sweep
// that fails does not stop the others: its report carries the error and
// the joined errors are returned alongside every report.
func (e *Engine) RunAll(ctx context.Context, now time.Time) ([]SweepReport, error) {
	names := SweepNames()
	reports := make([]SweepReport, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			report, err := e.Run(ctx, name, now)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, err)
				reports[i] = SweepReport{Name: name, RanAt: now, Error: err.Error()}
				return nil
			}
			reports[i] = *report
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}

func (e *Engine) snapshot(ctx context.Context, def sweepDef, now time.Time, report *SweepReport) (Snapshot, error) {
	today := dateOf(now.In(e.rules.location()))
	shifts, err := e.store.ListShiftsByStatus(ctx, def.statuses, today.AddDate(0, 0, -e.lookback), today)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list shifts: %w", err)
	}
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].ID < shifts[j].ID })
	snap := Snapshot{Shifts: shifts}

	if def.policies {
		if snap.Policies, err = e.store.ListPolicies(ctx); err != nil {
			return Snapshot{}, fmt.Errorf("failed to list policies: %w", err)
		}
	}

	if def.open && len(shifts) > 0 {
		ids := make([]string, len(shifts))
		for i := range shifts {
			ids[i] = shifts[i].ID
		}
		if snap.OpenViolations, err = e.store.OpenViolations(ctx, ids); err != nil {
			return Snapshot{}, fmt.Errorf("failed to load open violations: %w", err)
		}
	}

	if def.tallies {
		snap.Tallies = map[string]Tally{}
		for i := range shifts {
			s := &shifts[i]
			if !e.rules.ended(s, now, 0) {
				continue
			}
			tally, err := e.store.RoundTally(ctx, s.ID, now)
			if err != nil {
				report.Failed++
				e.logger.Error("failed to tally rounds", "shift", s.ID, "error", err)
				continue
			}
			snap.Tallies[s.ID] = tally
		}
	}
	return snap, nil
}

func (e *Engine) announce(ctx context.Context, t Transition, now time.Time) {
	if e.publisher == nil || t.To != model.ShiftAbsent {
		return
	}
	event := ShiftEvent{
		ShiftID:    t.ShiftID,
		EmployeeID: t.EmployeeID,
		Status:     t.To,
		Reason:     t.Reason,
		Message:    MessageFor(ReasonCode(t.Reason)),
		At:         now,
	}
	if err := e.publisher.Publish(ctx, TopicShiftAbsent, event); err != nil {
		e.logger.Warn("publish failed", "topic", TopicShiftAbsent, "error", err)
	}
}
