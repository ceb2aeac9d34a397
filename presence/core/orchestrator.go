package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"axiapac.com/presence/presence/model"
	"github.com/google/uuid"
)

const (
	// a shift is "active" from this long before its start
	ActiveWindowLead = 2 * time.Hour
	// until this long after its end, so late check-outs still match
	ActiveWindowLag = 6 * time.Hour
)

type Location struct {
	Lat            float64  `json:"latitude"`
	Lng            float64  `json:"longitude"`
	AccuracyMeters *float64 `json:"accuracyMeters"`
}

type VerificationRequest struct {
	SessionToken string          `json:"sessionToken" binding:"required"`
	EmployeeID   string          `json:"employeeId" binding:"required"`
	CheckType    model.CheckType `json:"checkType"`
	Location     *Location       `json:"location"`
	At           time.Time       `json:"-"`
}

type VerificationTicket struct {
	AttendanceCheckID string          `json:"attendanceCheckId"`
	ShiftID           string          `json:"shiftId"`
	CheckType         model.CheckType `json:"checkType"`
	Geofence          *GeofenceResult `json:"geofence,omitempty"`
	ShiftProvisioned  bool            `json:"shiftProvisioned"`
	Notes             string          `json:"notes,omitempty"`
}

type VerificationRequestedEvent struct {
	EmployeeID        string          `json:"employeeId"`
	AttendanceCheckID string          `json:"attendanceCheckId"`
	ShiftID           string          `json:"shiftId"`
	CheckType         model.CheckType `json:"checkType"`
	RequestTime       time.Time       `json:"requestTime"`
}

type LocationOutOfRangeEvent struct {
	EmployeeID     string     `json:"employeeId"`
	ShiftID        string     `json:"shiftId,omitempty"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	DistanceMeters float64    `json:"distanceMeters"`
	Reason         ReasonCode `json:"reason"`
	Message        string     `json:"message"`
}

type OrchestratorStore interface {
	ShiftStore
	CheckStore
}

type Orchestrator struct {
	broker    *Broker
	offices   OfficeLocator
	store     OrchestratorStore
	publisher Publisher
	location  *time.Location
	now       Clock
	logger    *slog.Logger
}

func NewOrchestrator(broker *Broker, offices OfficeLocator, store OrchestratorStore, publisher Publisher, location *time.Location, now Clock, logger *slog.Logger) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Orchestrator{
		broker:    broker,
		offices:   offices,
		store:     store,
		publisher: publisher,
		location:  location,
		now:       now,
		logger:    logger,
	}
}

func (o *Orchestrator) Start(ctx context.Context, req VerificationRequest) (*VerificationTicket, error) {
	if _, err := o.broker.ValidateSession(ctx, req.SessionToken, req.EmployeeID); err != nil {
		return nil, err
	}

	at := req.At
	if at.IsZero() {
		at = o.now()
	}
	at = at.In(o.location)

	if req.Location != nil && !ValidCoordinates(req.Location.Lat, req.Location.Lng) {
		return nil, fmt.Errorf("%w: %f,%f", ErrInvalidCoordinates, req.Location.Lat, req.Location.Lng)
	}

	shift, provisioned, err := o.resolveShift(ctx, req.EmployeeID, at)
	if err != nil {
		return nil, err
	}
	if shift.Status == model.ShiftOnLeave {
		return nil, NewDomainError(ReasonShiftNotCheckable, "shift %s is on leave", shift.ID)
	}

	checks, err := o.store.ListChecks(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	checkType, err := DetermineCheckType(checks)
	if err != nil {
		return nil, err
	}

	var notes []string
	if req.CheckType != "" && req.CheckType != model.CheckAuto && req.CheckType != checkType {
		notes = append(notes, fmt.Sprintf("requested %s, recorded %s", req.CheckType, checkType))
	}

	record := &model.AttendanceCheckRecord{
		ID:              uuid.NewString(),
		EmployeeID:      req.EmployeeID,
		ShiftID:         shift.ID,
		CheckType:       checkType,
		BeaconValidated: true,
	}

	ticket := &VerificationTicket{ShiftID: shift.ID, CheckType: checkType, ShiftProvisioned: provisioned}

	if req.Location != nil {
		record.Latitude = &req.Location.Lat
		record.Longitude = &req.Location.Lng

		result, err := o.checkLocation(ctx, req.EmployeeID, *req.Location)
		if err != nil {
			o.logger.Warn("skipping geofence", "employee", req.EmployeeID, "error", err)
			notes = append(notes, "office location unavailable")
		} else {
			ticket.Geofence = &result
			record.GpsValidated = result.IsValid
			if result.Reason != ReasonLowAccuracy {
				d := result.DistanceMeters
				record.DistanceMeters = &d
			}
			if !result.IsValid {
				notes = append(notes, fmt.Sprintf("%s: %s", result.Reason, result.Message))
				o.publish(ctx, TopicLocationOutOfRange, LocationOutOfRangeEvent{
					EmployeeID:     req.EmployeeID,
					ShiftID:        shift.ID,
					Latitude:       req.Location.Lat,
					Longitude:      req.Location.Lng,
					DistanceMeters: result.DistanceMeters,
					Reason:         result.Reason,
					Message:        result.Message,
				})
			}
		}
	}

	record.Notes = strings.Join(notes, "; ")
	ticket.Notes = record.Notes

	if err := o.store.CreateCheck(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create attendance check: %w", err)
	}
	ticket.AttendanceCheckID = record.ID

	event := VerificationRequestedEvent{
		EmployeeID:        req.EmployeeID,
		AttendanceCheckID: record.ID,
		ShiftID:           shift.ID,
		CheckType:         checkType,
		RequestTime:       at,
	}
	if err := o.publisher.Publish(ctx, TopicVerificationRequested, event); err != nil {
		return nil, fmt.Errorf("failed to request verification: %w", err)
	}

	o.logger.Info("verification requested", "employee", req.EmployeeID, "shift", shift.ID, "check", record.ID, "type", checkType)
	return ticket, nil
}

func (o *Orchestrator) checkLocation(ctx context.Context, employeeID string, loc Location) (GeofenceResult, error) {
	office, err := o.offices.Office(ctx, employeeID)
	if err != nil {
		return GeofenceResult{}, err
	}
	return ValidateGeofence(GeofenceInput{
		Lat:               loc.Lat,
		Lng:               loc.Lng,
		AccuracyMeters:    loc.AccuracyMeters,
		OfficeLat:         office.Lat,
		OfficeLng:         office.Lng,
		MaxDistanceMeters: office.MaxDistanceMeters,
	}), nil
}

// resolveShift prefers a shift whose window contains at, looking back a day
// for overnight shifts, then any shift dated today, and provisions a default
// shift when the employee has none.
func (o *Orchestrator) resolveShift(ctx context.Context, employeeID string, at time.Time) (*model.EmployeeShift, bool, error) {
	today := dateOf(at)
	shifts, err := o.store.FindShifts(ctx, employeeID, today.AddDate(0, 0, -1), today)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find shifts: %w", err)
	}

	if shift := ActiveShift(shifts, at, o.location); shift != nil {
		return shift, false, nil
	}
	for i := range shifts {
		if sameDay(shifts[i].ShiftDate, today) {
			return &shifts[i], false, nil
		}
	}

	shift := &model.EmployeeShift{
		ID:                           uuid.NewString(),
		EmployeeID:                   employeeID,
		ShiftDate:                    today,
		ShiftType:                    model.DefaultShiftType,
		ScheduledStart:               DefaultShiftStart,
		ScheduledEnd:                 DefaultShiftFinish,
		PresenceVerificationRequired: true,
		PresenceRoundsRequired:       DefaultShiftRounds,
		Status:                       model.ShiftScheduled,
	}
	if err := o.store.CreateShift(ctx, shift); err != nil {
		return nil, false, fmt.Errorf("failed to provision shift: %w", err)
	}
	o.logger.Info("provisioned default shift", "employee", employeeID, "shift", shift.ID, "date", today.Format(time.DateOnly))
	return shift, true, nil
}

func (o *Orchestrator) publish(ctx context.Context, topic string, payload any) {
	if err := o.publisher.Publish(ctx, topic, payload); err != nil {
		o.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}

// ActiveShift returns the shift whose widened window contains at. When two
// windows overlap the one starting later wins.
func ActiveShift(shifts []model.EmployeeShift, at time.Time, loc *time.Location) *model.EmployeeShift {
	var best *model.EmployeeShift
	var bestStart time.Time
	for i := range shifts {
		s := &shifts[i]
		if !InActiveWindow(s, at, loc, ActiveWindowLead, ActiveWindowLag) {
			continue
		}
		start, _, _ := ShiftWindow(s, loc)
		if best == nil || start.After(bestStart) {
			best, bestStart = s, start
		}
	}
	return best
}

// DetermineCheckType derives the check type from the shift's existing
// checks. Rejected attempts do not count. A shift with an accepted
// check-out cannot be checked out again.
func DetermineCheckType(checks []model.AttendanceCheckRecord) (model.CheckType, error) {
	live := 0
	for i := range checks {
		c := &checks[i]
		if c.Processed() && !c.Accepted() {
			continue
		}
		if c.CheckType == model.CheckOut && c.Accepted() {
			return "", NewDomainError(ReasonDuplicateCheckOut, "shift %s is already checked out", c.ShiftID)
		}
		live++
	}
	if live == 0 {
		return model.CheckIn, nil
	}
	return model.CheckOut, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
