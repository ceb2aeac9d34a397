package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	SessionKeyPrefix        = "proximity_session:"
	DefaultSessionTTL       = 10 * time.Minute
	MaxBeaconDistanceMeters = 100.0
)

type BeaconScan struct {
	EmployeeID string `json:"employeeId" binding:"required"`
	UUID       string `json:"beaconUuid" binding:"required"`
	Major      int    `json:"major" binding:"gte=0,lte=65535"`
	Minor      int    `json:"minor" binding:"gte=0,lte=65535"`
	RSSI       int    `json:"rssi" binding:"required,lt=0"`
}

type ProximitySession struct {
	Token      string    `json:"token"`
	EmployeeID string    `json:"employeeId"`
	BeaconID   string    `json:"beaconId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type SessionGrant struct {
	Token          string    `json:"sessionToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
	BeaconID       string    `json:"beaconId"`
	DistanceMeters float64   `json:"distanceMeters"`
}

type Broker struct {
	beacons BeaconFinder
	cache   SessionCache
	ttl     time.Duration
	now     Clock
	logger  *slog.Logger
}

func NewBroker(beacons BeaconFinder, cache SessionCache, ttl time.Duration, now Clock, logger *slog.Logger) *Broker {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Broker{beacons: beacons, cache: cache, ttl: ttl, now: now, logger: logger}
}

// EstimateBeaconDistance applies the log-distance path-loss model with a
// path-loss exponent of 2.
func EstimateBeaconDistance(txPower, rssi int) float64 {
	return math.Pow(10, float64(txPower-rssi)/20)
}

func (b *Broker) ValidateBeacon(ctx context.Context, scan BeaconScan) (*SessionGrant, error) {
	beacon, err := b.beacons.FindBeacon(ctx, scan.UUID, scan.Major, scan.Minor)
	if errors.Is(err, ErrNotFound) {
		return nil, NewDomainError(ReasonBeaconNotFound, "beacon %s/%d/%d is not registered", scan.UUID, scan.Major, scan.Minor)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find beacon: %w", err)
	}
	if !beacon.IsActive {
		return nil, NewDomainError(ReasonBeaconNotFound, "beacon %s is inactive", beacon.ID)
	}

	distance := roundTo(EstimateBeaconDistance(beacon.TxPower, scan.RSSI), 2)
	if distance > MaxBeaconDistanceMeters {
		return nil, NewDomainError(ReasonBeaconTooFar, "estimated %.2fm from beacon, maximum is %.0fm", distance, MaxBeaconDistanceMeters)
	}

	session := ProximitySession{
		Token:      uuid.NewString(),
		EmployeeID: scan.EmployeeID,
		BeaconID:   beacon.ID,
		ExpiresAt:  b.now().Add(b.ttl),
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	if err := b.cache.Set(ctx, SessionKeyPrefix+session.Token, raw, b.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	b.logger.Debug("proximity session issued", "employee", scan.EmployeeID, "beacon", beacon.ID, "distance", distance)
	return &SessionGrant{
		Token:          session.Token,
		ExpiresAt:      session.ExpiresAt,
		BeaconID:       beacon.ID,
		DistanceMeters: distance,
	}, nil
}

// ValidateSession does not consume the session. It stays readable until it
// expires so a client can retry the verification step.
func (b *Broker) ValidateSession(ctx context.Context, token, employeeID string) (*ProximitySession, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	key := SessionKeyPrefix + token

	raw, err := b.cache.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session ProximitySession
	if err := json.Unmarshal(raw, &session); err != nil {
		b.logger.Warn("discarding unreadable session", "error", err)
		_ = b.cache.Delete(ctx, key)
		return nil, ErrInvalidSession
	}

	if session.EmployeeID != employeeID {
		return nil, ErrEmployeeMismatch
	}

	// the cache evicts on its own clock; ours decides
	if b.now().After(session.ExpiresAt) {
		if err := b.cache.Delete(ctx, key); err != nil {
			b.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}
	return &session, nil
}
