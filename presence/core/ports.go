package core

import (
	"context"
	"time"
)

const (
	TopicVerificationRequested = "attendance.verification.requested"
	TopicCheckSucceeded        = "attendance.check.succeeded"
	TopicCheckFailed           = "attendance.check.failed"
	TopicShiftCompleted        = "shift.completed"
	TopicShiftAbsent           = "shift.absent"
	TopicLocationOutOfRange    = "presence.location.out_of_range"
	TopicProbeRequested        = "presence.probe.requested"
)

// Publisher delivers a JSON-serializable payload to a topic. Delivery is
// best effort; callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type PublisherFunc func(ctx context.Context, topic string, payload any) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, payload any) error {
	return f(ctx, topic, payload)
}

type Office struct {
	Lat               float64 `json:"latitude"`
	Lng               float64 `json:"longitude"`
	MaxDistanceMeters float64 `json:"maxDistanceMeters"`
}

type OfficeLocator interface {
	Office(ctx context.Context, employeeID string) (Office, error)
}

// SessionCache stores raw session bytes with a TTL. Get returns ErrNotFound
// for a missing or evicted key.
type SessionCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type Clock func() time.Time
