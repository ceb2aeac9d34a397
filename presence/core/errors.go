package core

import (
	"errors"
	"fmt"
)

type ReasonCode string

const (
	// input / domain rejections
	ReasonInvalidCoordinates ReasonCode = "INVALID_COORDINATES"
	ReasonLowAccuracy        ReasonCode = "GPS_ACCURACY_TOO_LOW"
	ReasonOutOfRange         ReasonCode = "GPS_OUT_OF_RANGE"
	ReasonBeaconNotFound     ReasonCode = "BEACON_NOT_FOUND"
	ReasonBeaconTooFar       ReasonCode = "BEACON_TOO_FAR"
	ReasonInvalidSession     ReasonCode = "INVALID_SESSION"
	ReasonEmployeeMismatch   ReasonCode = "EMPLOYEE_MISMATCH"
	ReasonSessionExpired     ReasonCode = "EXPIRED"
	ReasonDuplicateCheckOut  ReasonCode = "DUPLICATE_CHECK_OUT"
	ReasonShiftNotFound      ReasonCode = "SHIFT_NOT_FOUND"
	ReasonShiftNotActive     ReasonCode = "SHIFT_NOT_IN_PROGRESS"
	ReasonCheckNotFound      ReasonCode = "CHECK_NOT_FOUND"
	ReasonCheckProcessed     ReasonCode = "CHECK_ALREADY_PROCESSED"
	ReasonRoundOutOfWindow   ReasonCode = "GPS_ROUND_OUTSIDE_SHIFT"
	ReasonRoundLimitReached  ReasonCode = "GPS_ROUND_LIMIT_REACHED"

	// verification outcomes
	ReasonCheckedIn           ReasonCode = "CHECKED_IN"
	ReasonCheckedOut          ReasonCode = "CHECKED_OUT"
	ReasonAlreadyCheckedIn    ReasonCode = "ALREADY_CHECKED_IN"
	ReasonCheckInRecorded     ReasonCode = "CHECK_IN_RECORDED"
	ReasonCheckOutRecorded    ReasonCode = "CHECK_OUT_RECORDED"
	ReasonLowConfidence       ReasonCode = "FACE_CONFIDENCE_TOO_LOW"
	ReasonFaceNotVerified     ReasonCode = "FACE_NOT_VERIFIED"
	ReasonVerificationError   ReasonCode = "VERIFICATION_ERROR"
	ReasonRoundsIncomplete    ReasonCode = "GPS_ROUNDS_INCOMPLETE"
	ReasonValidPercentageLow  ReasonCode = "GPS_VALID_PERCENTAGE_TOO_LOW"
	ReasonTallyUnavailable    ReasonCode = "GPS_TALLY_UNAVAILABLE"
	ReasonMissingCheckIn      ReasonCode = "CHECK_IN_MISSING"
	ReasonShiftManuallyEdited ReasonCode = "SHIFT_MANUALLY_EDITED"
	ReasonShiftStatusConflict ReasonCode = "SHIFT_STATUS_CONFLICT"
	ReasonShiftNotCheckable   ReasonCode = "SHIFT_NOT_CHECKABLE"

	// sweep transitions, matching the violation types they open
	ReasonNoCheckIn       ReasonCode = "NO_CHECK_IN"
	ReasonNoCheckOut      ReasonCode = "NO_CHECK_OUT"
	ReasonInsufficientGps ReasonCode = "INSUFFICIENT_GPS"
	ReasonLateCheckIn     ReasonCode = "LATE_CHECK_IN_RECONCILED"
)

// DomainError is a rejection the caller can act on. It never mutates state.
type DomainError struct {
	Code    ReasonCode
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

func NewDomainError(code ReasonCode, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidSession   = &DomainError{Code: ReasonInvalidSession, Message: "session not found"}
	ErrEmployeeMismatch = &DomainError{Code: ReasonEmployeeMismatch, Message: "session belongs to another employee"}
	ErrSessionExpired   = &DomainError{Code: ReasonSessionExpired, Message: "session expired"}
	ErrCheckProcessed   = &DomainError{Code: ReasonCheckProcessed, Message: "attendance check already has a result"}

	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNotFound           = errors.New("not found")
)

// CodeOf extracts the reason code from a domain error, or "".
func CodeOf(err error) ReasonCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
