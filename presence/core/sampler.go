package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"axiapac.com/presence/presence/model"
	"github.com/google/uuid"
)

const (
	DefaultProbeMaxJitter = 60 * time.Minute
	// RoundClockSkew is how far past the server clock a device may date a round.
	RoundClockSkew = time.Minute
)

type Probe struct {
	ShiftID     string `json:"shiftId"`
	EmployeeID  string `json:"employeeId"`
	RoundNumber int    `json:"roundNumber"`
}

type ProbeRequestedEvent struct {
	Probe
	ScheduledFor time.Time `json:"scheduledFor"`
	RequestedAt  time.Time `json:"requestedAt"`
}

type LocationSubmission struct {
	ShiftID        string    `json:"-"`
	EmployeeID     string    `json:"employeeId" binding:"required"`
	Lat            float64   `json:"latitude"`
	Lng            float64   `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracyMeters"`
	CapturedAt     time.Time `json:"capturedAt"`
}

type RoundResult struct {
	Round    model.PresenceVerificationRound `json:"round"`
	Geofence GeofenceResult                  `json:"geofence"`
	Tally    Tally                           `json:"tally"`
}

type SamplerStore interface {
	ShiftStore
	RoundStore
	PolicyStore
}

type Sampler struct {
	store     SamplerStore
	offices   OfficeLocator
	publisher Publisher
	queue     *DelayQueue[Probe]
	maxJitter time.Duration
	grace     time.Duration
	location  *time.Location
	now       Clock
	logger    *slog.Logger
}

func NewSampler(store SamplerStore, offices OfficeLocator, publisher Publisher, queue *DelayQueue[Probe], maxJitter time.Duration, location *time.Location, now Clock, logger *slog.Logger) *Sampler {
	if maxJitter <= 0 {
		maxJitter = DefaultProbeMaxJitter
	}
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if queue == nil {
		queue = NewDelayQueue[Probe](now, nil)
	}
	return &Sampler{
		store:     store,
		offices:   offices,
		publisher: publisher,
		queue:     queue,
		maxJitter: maxJitter,
		grace:     DefaultCheckoutGrace,
		location:  location,
		now:       now,
		logger:    logger,
	}
}

// WithCheckoutGrace sets how long after the scheduled end a round is
// still accepted.
func (s *Sampler) WithCheckoutGrace(grace time.Duration) *Sampler {
	if grace >= 0 {
		s.grace = grace
	}
	return s
}

// DueForProbe selects in-progress shifts inside their scheduled window that
// need presence verification, are checked in and not checked out, and are
// still short of their rounds.
func DueForProbe(now time.Time, shifts []model.EmployeeShift, loc *time.Location) []model.EmployeeShift {
	var due []model.EmployeeShift
	for _, s := range shifts {
		if s.Status != model.ShiftInProgress || !s.PresenceVerificationRequired || !s.CheckedIn() || s.CheckedOut() {
			continue
		}
		if s.PresenceRoundsCompleted >= s.PresenceRoundsRequired {
			continue
		}
		if !InActiveWindow(&s, now, loc, 0, 0) {
			continue
		}
		due = append(due, s)
	}
	return due
}

// Tick queues a jittered probe for every shift that is due. Shifts with a
// probe still waiting are not queued twice.
func (s *Sampler) Tick(ctx context.Context, now time.Time) (int, error) {
	today := dateOf(now.In(s.location))
	shifts, err := s.store.ListShiftsByStatus(ctx, []model.ShiftStatus{model.ShiftInProgress}, today.AddDate(0, 0, -1), today)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-progress shifts: %w", err)
	}

	scheduled := 0
	for _, shift := range DueForProbe(now, shifts, s.location) {
		probe := Probe{
			ShiftID:     shift.ID,
			EmployeeID:  shift.EmployeeID,
			RoundNumber: shift.PresenceRoundsCompleted + 1,
		}
		due, ok := s.queue.Schedule(shift.ID, probe, s.maxJitter)
		if !ok {
			continue
		}
		scheduled++
		s.logger.Debug("probe scheduled", "shift", shift.ID, "due", due)
	}
	s.logger.Info("sampler tick", "candidates", len(shifts), "scheduled", scheduled, "queued", s.queue.Len())
	return scheduled, nil
}

// Dispatch publishes every probe whose jitter has elapsed.
func (s *Sampler) Dispatch(ctx context.Context, now time.Time) int {
	sent := 0
	for _, item := range s.queue.PopDue(now) {
		event := ProbeRequestedEvent{Probe: item.Value, ScheduledFor: item.Due, RequestedAt: now}
		if err := s.publisher.Publish(ctx, TopicProbeRequested, event); err != nil {
			s.logger.Warn("probe publish failed", "shift", item.Value.ShiftID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (s *Sampler) Pending() int {
	return s.queue.Len()
}

// RecordRound stores one location sample. The round counts toward
// completed whether or not it is on site. Samples must be captured between
// check-in and the scheduled end plus grace, and a shift takes at most the
// policy's MaxChecksPerShift rounds.
func (s *Sampler) RecordRound(ctx context.Context, sub LocationSubmission) (*RoundResult, error) {
	if !ValidCoordinates(sub.Lat, sub.Lng) {
		return nil, fmt.Errorf("%w: %f,%f", ErrInvalidCoordinates, sub.Lat, sub.Lng)
	}

	shift, err := s.store.GetShift(ctx, sub.ShiftID)
	if errors.Is(err, ErrNotFound) {
		return nil, NewDomainError(ReasonShiftNotFound, "shift %s not found", sub.ShiftID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shift: %w", err)
	}
	if shift.EmployeeID != sub.EmployeeID {
		return nil, ErrEmployeeMismatch
	}
	if shift.Status != model.ShiftInProgress {
		return nil, NewDomainError(ReasonShiftNotActive, "shift %s is %s", shift.ID, shift.Status)
	}
	if !shift.CheckedIn() {
		return nil, NewDomainError(ReasonMissingCheckIn, "shift %s has no check-in", shift.ID)
	}

	captured := sub.CapturedAt
	if captured.IsZero() {
		captured = s.now()
	}
	if err := s.inWindow(shift, captured); err != nil {
		return nil, err
	}
	limit, err := s.roundLimit(ctx, shift)
	if err != nil {
		return nil, err
	}
	if shift.PresenceRoundsCompleted >= limit {
		return nil, NewDomainError(ReasonRoundLimitReached, "shift %s already has %d of %d rounds", shift.ID, shift.PresenceRoundsCompleted, limit)
	}

	office, err := s.offices.Office(ctx, shift.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to locate office: %w", err)
	}
	geo := ValidateGeofence(GeofenceInput{
		Lat:               sub.Lat,
		Lng:               sub.Lng,
		AccuracyMeters:    sub.AccuracyMeters,
		OfficeLat:         office.Lat,
		OfficeLng:         office.Lng,
		MaxDistanceMeters: office.MaxDistanceMeters,
	})

	round := model.PresenceVerificationRound{
		ID:               uuid.NewString(),
		ShiftID:          shift.ID,
		CapturedAt:       captured,
		Latitude:         sub.Lat,
		Longitude:        sub.Lng,
		AccuracyMeters:   sub.AccuracyMeters,
		DistanceMeters:   geo.DistanceMeters,
		IsValid:          geo.IsValid,
		ValidationStatus: model.RoundValid,
	}
	if !geo.IsValid {
		round.ValidationStatus = model.RoundInvalid
		round.Reason = fmt.Sprintf("%s: %s", geo.Reason, geo.Message)
	}

	if err := s.store.AppendRound(ctx, &round, limit); err != nil {
		var de *DomainError
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, fmt.Errorf("failed to append round: %w", err)
	}

	rounds, err := s.store.ListRounds(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}

	s.logger.Info("presence round recorded", "shift", shift.ID, "round", round.RoundNumber, "valid", round.IsValid)
	return &RoundResult{Round: round, Geofence: geo, Tally: TallyRounds(rounds)}, nil
}

// inWindow bounds captured to [check-in, min(now+skew, end+grace)].
func (s *Sampler) inWindow(shift *model.EmployeeShift, captured time.Time) error {
	_, end, err := ShiftWindow(shift, s.location)
	if err != nil {
		return fmt.Errorf("invalid shift window: %w", err)
	}
	latest := end.Add(s.grace)
	if limit := s.now().Add(RoundClockSkew); limit.Before(latest) {
		latest = limit
	}
	if captured.Before(*shift.CheckInTime) || captured.After(latest) {
		return NewDomainError(ReasonRoundOutOfWindow, "round captured at %s is outside %s to %s",
			captured.In(s.location).Format(time.DateTime),
			shift.CheckInTime.In(s.location).Format(time.DateTime),
			latest.In(s.location).Format(time.DateTime))
	}
	return nil
}

// roundLimit is the matching policy's MaxChecksPerShift, never below the
// rounds the shift requires.
func (s *Sampler) roundLimit(ctx context.Context, shift *model.EmployeeShift) (int, error) {
	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list policies: %w", err)
	}
	policy := SelectPolicy(policies, shift.ShiftType, ShiftDurationHours(shift, s.location))
	return max(policy.MaxChecksPerShift, shift.PresenceRoundsRequired, 1), nil
}

func TallyRounds(rounds []model.PresenceVerificationRound) Tally {
	valid := 0
	for _, r := range rounds {
		if r.ValidationStatus == model.RoundValid {
			valid++
		}
	}
	return NewTally(len(rounds), valid)
}
