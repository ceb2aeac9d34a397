package app

import (
	"context"
	"testing"

	"axiapac.com/presence/config"
	"axiapac.com/presence/infrastructure/communication"
	"axiapac.com/presence/presence/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPublisher(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	p, err := buildPublisher(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Len(t, p.(communication.Fanout), 1)

	cfg.SlackBotToken = "xoxb-test"
	p, err = buildPublisher(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Len(t, p.(communication.Fanout), 2)
}

func TestBuildLocatorFallsBackWithoutDirectory(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"DEFAULT_OFFICE_LAT": "-6.2",
		"DEFAULT_OFFICE_LNG": "106.8",
	})
	require.NoError(t, err)

	locator, err := buildLocator(cfg, nil)
	require.NoError(t, err)
	office, err := locator.Office(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, core.Office{Lat: -6.2, Lng: 106.8, MaxDistanceMeters: 100}, office)
}

func TestSchedulesFromConfig(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"LATE_CHECK_IN_SCHEDULE": "*/5 * * * *"})
	require.NoError(t, err)
	s := (&App{Config: cfg}).Schedules()
	assert.Equal(t, "*/5 * * * *", s.Sweeps[core.SweepLateCheckIn])
	assert.Equal(t, "*/15 * * * *", s.Sweeps[core.SweepMissingCheckIn])
	assert.Equal(t, "0 * * * *", s.Sampler)
	assert.Empty(t, s.Report)
}
