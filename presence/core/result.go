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

const DefaultConfidenceThreshold = 0.85

type VerificationResult struct {
	AttendanceCheckID string    `json:"attendanceCheckId" binding:"required"`
	EmployeeID        string    `json:"employeeId"`
	Verified          bool      `json:"verified"`
	Confidence        float64   `json:"confidence" binding:"gte=0,lte=1"`
	VerifiedAt        time.Time `json:"verifiedAt"`
	Error             string    `json:"error"`
}

// Outcome is the modeled result of one biometric callback. Denials such as
// incomplete presence rounds are outcomes, not errors.
type Outcome struct {
	AttendanceCheckID string            `json:"attendanceCheckId"`
	ShiftID           string            `json:"shiftId"`
	EmployeeID        string            `json:"employeeId"`
	CheckType         model.CheckType   `json:"checkType"`
	Accepted          bool              `json:"accepted"`
	Reason            ReasonCode        `json:"reason"`
	Message           Message           `json:"message"`
	ShiftStatus       model.ShiftStatus `json:"shiftStatus"`
	LateMinutes       int               `json:"lateMinutes"`
	Totals            *ShiftTotals      `json:"totals,omitempty"`
	Tally             *Tally            `json:"tally,omitempty"`
	At                time.Time         `json:"at"`
}

type ShiftEvent struct {
	ShiftID    string            `json:"shiftId"`
	EmployeeID string            `json:"employeeId"`
	ShiftDate  string            `json:"shiftDate"`
	Status     model.ShiftStatus `json:"status"`
	Reason     string            `json:"reason"`
	Message    Message           `json:"message"`
	At         time.Time         `json:"at"`
}

type ProcessorStore interface {
	ShiftStore
	CheckStore
	RoundStore
	PolicyStore
	VerificationStore
}

type ResultProcessor struct {
	store     ProcessorStore
	publisher Publisher
	threshold float64
	location  *time.Location
	now       Clock
	logger    *slog.Logger
}

func NewResultProcessor(store ProcessorStore, publisher Publisher, threshold float64, location *time.Location, now Clock, logger *slog.Logger) *ResultProcessor {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &ResultProcessor{
		store:     store,
		publisher: publisher,
		threshold: threshold,
		location:  location,
		now:       now,
		logger:    logger,
	}
}

// decision is what one callback changes. shift is nil when the shift is left
// untouched.
type decision struct {
	outcome   Outcome
	valid     bool
	shift     *model.EmployeeShift
	violation model.ViolationType
}

func (p *ResultProcessor) Process(ctx context.Context, result VerificationResult) (*Outcome, error) {
	check, err := p.store.GetCheck(ctx, result.AttendanceCheckID)
	if errors.Is(err, ErrNotFound) {
		return nil, NewDomainError(ReasonCheckNotFound, "attendance check %s not found", result.AttendanceCheckID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance check: %w", err)
	}
	if result.EmployeeID != "" && result.EmployeeID != check.EmployeeID {
		return nil, ErrEmployeeMismatch
	}
	if check.Processed() {
		return nil, ErrCheckProcessed
	}

	shift, err := p.store.GetShift(ctx, check.ShiftID)
	if errors.Is(err, ErrNotFound) {
		return nil, NewDomainError(ReasonShiftNotFound, "shift %s not found", check.ShiftID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shift: %w", err)
	}

	at := result.VerifiedAt
	if at.IsZero() {
		at = p.now()
	}
	at = at.In(p.location)

	d := p.decide(ctx, check, shift, result, at)

	check.Confidence = result.Confidence
	check.FaceVerified = p.faceAccepted(result)
	check.IsValid = &d.valid
	check.Reason = string(d.outcome.Reason)
	check.VerifiedAt = &at

	update := VerificationUpdate{Check: check, Shift: d.shift, ExpectedStatus: shift.Status}
	if d.violation != "" {
		key := model.OpenViolationKey(shift.ID, d.violation)
		update.Violation = &model.ViolationRecord{
			ID:            uuid.NewString(),
			ShiftID:       shift.ID,
			EmployeeID:    shift.EmployeeID,
			ViolationType: d.violation,
			Description:   d.outcome.Message.English,
			OpenKey:       &key,
		}
	}
	if err := p.store.SaveVerification(ctx, update); err != nil {
		return nil, err
	}

	p.announce(ctx, shift, d)

	p.logger.Info("verification processed",
		"check", check.ID,
		"shift", shift.ID,
		"type", check.CheckType,
		"accepted", d.outcome.Accepted,
		"reason", d.outcome.Reason,
		"status", d.outcome.ShiftStatus,
	)
	return &d.outcome, nil
}

func (p *ResultProcessor) faceAccepted(result VerificationResult) bool {
	return result.Error == "" && result.Verified && result.Confidence >= p.threshold
}

func (p *ResultProcessor) decide(ctx context.Context, check *model.AttendanceCheckRecord, shift *model.EmployeeShift, result VerificationResult, at time.Time) decision {
	base := Outcome{
		AttendanceCheckID: check.ID,
		ShiftID:           shift.ID,
		EmployeeID:        check.EmployeeID,
		CheckType:         check.CheckType,
		ShiftStatus:       shift.Status,
		LateMinutes:       shift.LateMinutes,
		At:                at,
	}
	deny := func(code ReasonCode, args ...any) decision {
		o := base
		o.Reason = code
		o.Message = MessageFor(code, args...)
		return decision{outcome: o}
	}

	switch {
	case result.Error != "":
		return deny(ReasonVerificationError, result.Error)
	case result.Confidence < p.threshold:
		return deny(ReasonLowConfidence, result.Confidence, p.threshold)
	case !result.Verified:
		return deny(ReasonFaceNotVerified)
	}

	if shift.IsManuallyEdited {
		d := deny(ReasonShiftManuallyEdited)
		d.valid = true
		d.outcome.Accepted = true
		return d
	}
	if shift.Status == model.ShiftOnLeave {
		return deny(ReasonShiftNotCheckable)
	}

	start, end, err := ShiftWindow(shift, p.location)
	if err != nil {
		p.logger.Error("unusable shift schedule", "shift", shift.ID, "error", err)
		return deny(ReasonShiftNotCheckable)
	}

	switch check.CheckType {
	case model.CheckIn:
		return p.checkIn(ctx, base, shift, start, at)
	case model.CheckOut:
		return p.checkOut(ctx, base, shift, start, end, at)
	}
	return deny(ReasonShiftNotCheckable)
}

func (p *ResultProcessor) checkIn(ctx context.Context, base Outcome, shift *model.EmployeeShift, start, at time.Time) decision {
	accept := func(code ReasonCode, next *model.EmployeeShift) decision {
		o := base
		o.Accepted = true
		o.Reason = code
		o.Message = MessageFor(code)
		if next != nil {
			o.ShiftStatus = next.Status
			o.LateMinutes = next.LateMinutes
		}
		return decision{outcome: o, valid: true, shift: next}
	}

	if shift.CheckedIn() || shift.Status == model.ShiftCompleted {
		return accept(ReasonAlreadyCheckedIn, nil)
	}

	next := *shift
	checkIn := at
	next.CheckInTime = &checkIn
	next.LateMinutes = LateMinutes(at, start)

	// reconciliation owns the way back from ABSENT
	if shift.Status == model.ShiftAbsent {
		return accept(ReasonCheckInRecorded, &next)
	}

	next.Status = model.ShiftInProgress
	next.StatusReason = ""
	if next.PresenceVerificationRequired && next.PresenceRoundsRequired == 0 {
		policy := p.policyFor(ctx, shift)
		next.PresenceRoundsRequired = policy.MinChecksPerShift
	}
	return accept(ReasonCheckedIn, &next)
}

func (p *ResultProcessor) checkOut(ctx context.Context, base Outcome, shift *model.EmployeeShift, start, end, at time.Time) decision {
	deny := func(code ReasonCode, args ...any) decision {
		o := base
		o.Reason = code
		o.Message = MessageFor(code, args...)
		return decision{outcome: o}
	}

	switch {
	case shift.CheckedOut() || shift.Status == model.ShiftCompleted:
		return deny(ReasonDuplicateCheckOut)
	case !shift.CheckedIn():
		return deny(ReasonMissingCheckIn)
	}

	var tally *Tally
	if shift.PresenceVerificationRequired {
		t, policy, err := p.presenceTally(ctx, shift, at)
		if err != nil {
			p.logger.Error("presence tally unavailable, denying check-out", "shift", shift.ID, "error", err)
			return deny(ReasonTallyUnavailable)
		}
		tally = &t

		required := shift.PresenceRoundsRequired
		if required == 0 {
			required = policy.MinChecksPerShift
		}

		absent := func(code ReasonCode, vt model.ViolationType, args ...any) decision {
			d := deny(code, args...)
			d.outcome.Tally = tally
			next := *shift
			next.Status = model.ShiftAbsent
			next.StatusReason = string(code)
			d.shift = &next
			d.violation = vt
			d.outcome.ShiftStatus = next.Status
			return d
		}
		if t.Completed < required {
			return absent(ReasonRoundsIncomplete, model.ViolationRoundsIncomplete, t.Completed, required)
		}
		if t.Percentage < policy.MinValidPercentage {
			return absent(ReasonValidPercentageLow, model.ViolationValidPercentageLow, t.Percentage, policy.MinValidPercentage)
		}
	}

	totals := ComputeCheckoutTotals(*shift.CheckInTime, at, start, end)
	next := *shift
	checkOut := at
	next.CheckOutTime = &checkOut
	next.WorkHours = totals.WorkHours
	next.OvertimeHours = totals.OvertimeHours
	next.EarlyLeaveMinutes = totals.EarlyLeaveMinutes

	code := ReasonCheckedOut
	if shift.Status == model.ShiftAbsent {
		code = ReasonCheckOutRecorded
	} else {
		next.Status = model.ShiftCompleted
		next.StatusReason = ""
	}

	o := base
	o.Accepted = true
	o.Reason = code
	o.Message = MessageFor(code)
	o.ShiftStatus = next.Status
	o.Totals = &totals
	o.Tally = tally
	return decision{outcome: o, valid: true, shift: &next}
}

// presenceTally fails closed: any read error denies the check-out.
func (p *ResultProcessor) presenceTally(ctx context.Context, shift *model.EmployeeShift, before time.Time) (Tally, model.GpsCheckPolicy, error) {
	policies, err := p.store.ListPolicies(ctx)
	if err != nil {
		return Tally{}, model.GpsCheckPolicy{}, fmt.Errorf("failed to list policies: %w", err)
	}
	policy := SelectPolicy(policies, shift.ShiftType, ShiftDurationHours(shift, p.location))

	tally, err := p.store.RoundTally(ctx, shift.ID, before)
	if err != nil {
		return Tally{}, policy, fmt.Errorf("failed to tally rounds: %w", err)
	}
	return tally, policy, nil
}

func (p *ResultProcessor) policyFor(ctx context.Context, shift *model.EmployeeShift) model.GpsCheckPolicy {
	policies, err := p.store.ListPolicies(ctx)
	if err != nil {
		p.logger.Warn("failed to list policies, using built-in", "error", err)
		return FallbackPolicy
	}
	return SelectPolicy(policies, shift.ShiftType, ShiftDurationHours(shift, p.location))
}

func (p *ResultProcessor) announce(ctx context.Context, shift *model.EmployeeShift, d decision) {
	topic := TopicCheckFailed
	if d.outcome.Accepted {
		topic = TopicCheckSucceeded
	}
	p.publish(ctx, topic, d.outcome)

	if d.shift == nil || d.shift.Status == shift.Status {
		return
	}
	event := ShiftEvent{
		ShiftID:    shift.ID,
		EmployeeID: shift.EmployeeID,
		ShiftDate:  shift.ShiftDate.Format(time.DateOnly),
		Status:     d.shift.Status,
		Reason:     d.shift.StatusReason,
		Message:    d.outcome.Message,
		At:         d.outcome.At,
	}
	switch d.shift.Status {
	case model.ShiftCompleted:
		p.publish(ctx, TopicShiftCompleted, event)
	case model.ShiftAbsent:
		p.publish(ctx, TopicShiftAbsent, event)
	}
}

func (p *ResultProcessor) publish(ctx context.Context, topic string, payload any) {
	if err := p.publisher.Publish(ctx, topic, payload); err != nil {
		p.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}
