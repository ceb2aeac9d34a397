package core

import (
	"context"
	"time"

	"axiapac.com/presence/presence/model"
)

type BeaconFinder interface {
	// FindBeacon returns ErrNotFound when no beacon matches the identity.
	FindBeacon(ctx context.Context, uuid string, major, minor int) (*model.Beacon, error)
}

type ShiftStore interface {
	GetShift(ctx context.Context, id string) (*model.EmployeeShift, error)
	// FindShifts lists an employee's shifts with shift_date in [from, to].
	FindShifts(ctx context.Context, employeeID string, from, to time.Time) ([]model.EmployeeShift, error)
	CreateShift(ctx context.Context, shift *model.EmployeeShift) error
	// ListShiftsByStatus lists shifts in the given statuses with shift_date in [from, to].
	ListShiftsByStatus(ctx context.Context, statuses []model.ShiftStatus, from, to time.Time) ([]model.EmployeeShift, error)
}

type CheckStore interface {
	GetCheck(ctx context.Context, id string) (*model.AttendanceCheckRecord, error)
	ListChecks(ctx context.Context, shiftID string) ([]model.AttendanceCheckRecord, error)
	CreateCheck(ctx context.Context, check *model.AttendanceCheckRecord) error
}

type Tally struct {
	Completed  int     `json:"completed"`
	Valid      int     `json:"valid"`
	Percentage float64 `json:"percentage"`
}

func NewTally(completed, valid int) Tally {
	t := Tally{Completed: completed, Valid: valid}
	if completed > 0 {
		t.Percentage = roundTo(float64(valid)/float64(completed)*100, 2)
	}
	return t
}

type RoundStore interface {
	// AppendRound assigns the next round number for the shift, stores the
	// round and increments the shift's completed counter atomically. With a
	// positive limit it fails with ReasonRoundLimitReached once the shift
	// already holds that many rounds.
	AppendRound(ctx context.Context, round *model.PresenceVerificationRound, limit int) error
	// RoundTally counts rounds captured strictly before the given instant.
	RoundTally(ctx context.Context, shiftID string, before time.Time) (Tally, error)
	ListRounds(ctx context.Context, shiftID string) ([]model.PresenceVerificationRound, error)
}

type PolicyStore interface {
	ListPolicies(ctx context.Context) ([]model.GpsCheckPolicy, error)
}

// VerificationUpdate is everything one biometric result changes. The check
// is written only if it has no result yet; the shift only if its status
// still equals ExpectedStatus and it is not manually edited.
type VerificationUpdate struct {
	Check          *model.AttendanceCheckRecord
	Shift          *model.EmployeeShift
	ExpectedStatus model.ShiftStatus
	Violation      *model.ViolationRecord
}

type VerificationStore interface {
	// SaveVerification returns ErrCheckProcessed if the check already has a
	// result and a ReasonShiftStatusConflict domain error if the shift moved.
	SaveVerification(ctx context.Context, update VerificationUpdate) error
}

type Transition struct {
	Sweep       string
	ShiftID     string
	EmployeeID  string
	From        model.ShiftStatus
	To          model.ShiftStatus
	Reason      string
	Open        model.ViolationType
	Resolve     model.ViolationType
	Description string
}

type SweepStore interface {
	// OpenViolations returns unresolved violation types keyed by shift id.
	OpenViolations(ctx context.Context, shiftIDs []string) (map[string]map[model.ViolationType]bool, error)
	// ApplyTransition reports false when the guarded update matched no row.
	ApplyTransition(ctx context.Context, t Transition, at time.Time) (bool, error)
}

type Store interface {
	BeaconFinder
	ShiftStore
	CheckStore
	RoundStore
	PolicyStore
	VerificationStore
	SweepStore
}
