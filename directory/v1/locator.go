package v1

import (
	"context"
	"log/slog"
	"time"

	"axiapac.com/presence/presence/core"
)

const DefaultTimeout = 2500 * time.Millisecond

type OfficeFinder interface {
	Office(ctx context.Context, employeeID string) (*OfficeDTO, error)
}

// FallbackLocator implements core.OfficeLocator over the directory service.
// A slow or failing directory yields the fallback office, never an error.
type FallbackLocator struct {
	directory OfficeFinder
	fallback  core.Office
	timeout   time.Duration
	logger    *slog.Logger
}

func NewFallbackLocator(directory OfficeFinder, fallback core.Office, timeout time.Duration, logger *slog.Logger) *FallbackLocator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackLocator{directory: directory, fallback: fallback, timeout: timeout, logger: logger}
}

var _ core.OfficeLocator = (*FallbackLocator)(nil)

func (l *FallbackLocator) Office(ctx context.Context, employeeID string) (core.Office, error) {
	if l.directory == nil {
		return l.fallback, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	dto, err := l.directory.Office(ctx, employeeID)
	if err != nil {
		l.logger.Warn("directory lookup failed, using fallback office", "employee", employeeID, "error", err)
		return l.fallback, nil
	}

	office := core.Office{Lat: dto.Latitude, Lng: dto.Longitude, MaxDistanceMeters: dto.MaxDistanceMeters}
	if !core.ValidCoordinates(office.Lat, office.Lng) {
		l.logger.Warn("directory returned unusable coordinates, using fallback office", "employee", employeeID)
		return l.fallback, nil
	}
	if office.MaxDistanceMeters <= 0 {
		office.MaxDistanceMeters = l.fallback.MaxDistanceMeters
	}
	return office, nil
}
