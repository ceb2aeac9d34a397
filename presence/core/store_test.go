package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"axiapac.com/presence/presence/model"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// memStore is an in-memory Store with the same guards as the gorm store.
type memStore struct {
	mu         sync.Mutex
	beacons    []model.Beacon
	shifts     map[string]*model.EmployeeShift
	checks     map[string]*model.AttendanceCheckRecord
	rounds     []model.PresenceVerificationRound
	policies   []model.GpsCheckPolicy
	violations []model.ViolationRecord

	tallyErr  error
	applyErrs map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		shifts:    map[string]*model.EmployeeShift{},
		checks:    map[string]*model.AttendanceCheckRecord{},
		applyErrs: map[string]error{},
	}
}

func (m *memStore) addShift(s model.EmployeeShift) *model.EmployeeShift {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[s.ID] = &s
	return &s
}

func (m *memStore) shift(id string) model.EmployeeShift {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.shifts[id]
}

func (m *memStore) openViolations(shiftID string) []model.ViolationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ViolationRecord
	for _, v := range m.violations {
		if v.ShiftID == shiftID && !v.Resolved {
			out = append(out, v)
		}
	}
	return out
}

func (m *memStore) FindBeacon(_ context.Context, uuid string, major, minor int) (*model.Beacon, error) {
	for _, b := range m.beacons {
		if b.UUID == uuid && b.Major == major && b.Minor == minor {
			b := b
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) GetShift(_ context.Context, id string) (*model.EmployeeShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

func inDateRange(d, from, to time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(f) && !day.After(t)
}

func (m *memStore) FindShifts(_ context.Context, employeeID string, from, to time.Time) ([]model.EmployeeShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.EmployeeShift
	for _, s := range m.shifts {
		if s.EmployeeID == employeeID && inDateRange(s.ShiftDate, from, to) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) CreateShift(_ context.Context, shift *model.EmployeeShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *shift
	m.shifts[shift.ID] = &c
	return nil
}

func (m *memStore) ListShiftsByStatus(_ context.Context, statuses []model.ShiftStatus, from, to time.Time) ([]model.EmployeeShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.EmployeeShift
	for _, s := range m.shifts {
		for _, st := range statuses {
			if s.Status == st && inDateRange(s.ShiftDate, from, to) {
				out = append(out, *s)
			}
		}
	}
	return out, nil
}

func (m *memStore) GetCheck(_ context.Context, id string) (*model.AttendanceCheckRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListChecks(_ context.Context, shiftID string) ([]model.AttendanceCheckRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceCheckRecord
	for _, c := range m.checks {
		if c.ShiftID == shiftID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) CreateCheck(_ context.Context, check *model.AttendanceCheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *check
	m.checks[check.ID] = &c
	return nil
}

func (m *memStore) AppendRound(_ context.Context, round *model.PresenceVerificationRound, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, count := 0, 0
	for _, r := range m.rounds {
		if r.ShiftID != round.ShiftID {
			continue
		}
		count++
		if r.RoundNumber > n {
			n = r.RoundNumber
		}
	}
	if limit > 0 && count >= limit {
		return NewDomainError(ReasonRoundLimitReached, "shift %s already has %d rounds", round.ShiftID, count)
	}
	round.RoundNumber = n + 1
	m.rounds = append(m.rounds, *round)
	if s, ok := m.shifts[round.ShiftID]; ok {
		s.PresenceRoundsCompleted++
	}
	return nil
}

func (m *memStore) RoundTally(_ context.Context, shiftID string, before time.Time) (Tally, error) {
	if m.tallyErr != nil {
		return Tally{}, m.tallyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	completed, valid := 0, 0
	for _, r := range m.rounds {
		if r.ShiftID != shiftID || !r.CapturedAt.Before(before) {
			continue
		}
		completed++
		if r.IsValid {
			valid++
		}
	}
	return NewTally(completed, valid), nil
}

func (m *memStore) ListRounds(_ context.Context, shiftID string) ([]model.PresenceVerificationRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PresenceVerificationRound
	for _, r := range m.rounds {
		if r.ShiftID == shiftID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListPolicies(context.Context) ([]model.GpsCheckPolicy, error) {
	return m.policies, nil
}

func (m *memStore) insertViolation(v model.ViolationRecord) {
	for _, existing := range m.violations {
		if existing.OpenKey != nil && v.OpenKey != nil && *existing.OpenKey == *v.OpenKey {
			return
		}
	}
	m.violations = append(m.violations, v)
}

func (m *memStore) SaveVerification(_ context.Context, u VerificationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.checks[u.Check.ID]
	if current.Processed() {
		return ErrCheckProcessed
	}
	if u.Shift != nil {
		s := m.shifts[u.Shift.ID]
		if s.Status != u.ExpectedStatus || s.IsManuallyEdited {
			return NewDomainError(ReasonShiftStatusConflict, "shift %s changed", s.ID)
		}
		c := *u.Shift
		// rounds are counted by AppendRound only
		c.PresenceRoundsCompleted = s.PresenceRoundsCompleted
		m.shifts[s.ID] = &c
	}
	c := *u.Check
	m.checks[c.ID] = &c
	if u.Violation != nil {
		m.insertViolation(*u.Violation)
	}
	return nil
}

func (m *memStore) OpenViolations(_ context.Context, shiftIDs []string) (map[string]map[model.ViolationType]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]map[model.ViolationType]bool{}
	for _, id := range shiftIDs {
		for _, v := range m.violations {
			if v.ShiftID == id && !v.Resolved {
				if out[id] == nil {
					out[id] = map[model.ViolationType]bool{}
				}
				out[id][v.ViolationType] = true
			}
		}
	}
	return out, nil
}

func (m *memStore) ApplyTransition(_ context.Context, t Transition, at time.Time) (bool, error) {
	if err := m.applyErrs[t.ShiftID]; err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shifts[t.ShiftID]
	if !ok || s.Status != t.From || s.IsManuallyEdited {
		return false, nil
	}
	s.Status = t.To
	s.StatusReason = t.Reason

	if t.Open != "" {
		key := model.OpenViolationKey(t.ShiftID, t.Open)
		m.insertViolation(model.ViolationRecord{
			ID:            t.ShiftID + "/" + string(t.Open),
			ShiftID:       t.ShiftID,
			EmployeeID:    t.EmployeeID,
			ViolationType: t.Open,
			Description:   t.Description,
			OpenKey:       &key,
		})
	}
	if t.Resolve != "" {
		for i := range m.violations {
			v := &m.violations[i]
			if v.ShiftID == t.ShiftID && v.ViolationType == t.Resolve && !v.Resolved {
				v.Resolved = true
				v.ResolvedAt = &at
				v.OpenKey = nil
			}
		}
	}
	return true, nil
}

type published struct {
	topic   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

type staticOffice struct {
	office Office
	err    error
}

func (o staticOffice) Office(context.Context, string) (Office, error) {
	return o.office, o.err
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// fixedClock returns a clock that can be moved forward.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func ptr[T any](v T) *T {
	return &v
}
