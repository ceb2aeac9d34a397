package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOutcome(&core.Outcome{CheckType: model.CheckOut, Reason: core.ReasonRoundsIncomplete})
	m.ObserveOutcome(&core.Outcome{CheckType: model.CheckOut, Reason: core.ReasonRoundsIncomplete})
	m.ObserveOutcome(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("CHECK_OUT", "GPS_ROUNDS_INCOMPLETE")))
}

func TestObserveSession(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSession(nil)
	m.ObserveSession(core.NewDomainError(core.ReasonBeaconTooFar, "far"))
	m.ObserveSession(errors.New("cache down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("BEACON_TOO_FAR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("error")))
}

func TestObserveSweepAndProbes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSweep(core.SweepReport{Name: core.SweepMissingCheckIn, Transitioned: 3, Failed: 1}, 20*time.Millisecond)
	m.ObserveProbes(4, 1, 3)
	m.ObserveRound(&core.RoundResult{Round: model.PresenceVerificationRound{ValidationStatus: model.RoundInvalid}})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepTransitionsTotal.WithLabelValues(core.SweepMissingCheckIn)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepFailuresTotal.WithLabelValues(core.SweepMissingCheckIn)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SweepDurationSeconds))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ProbesScheduledTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ProbesPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoundsTotal.WithLabelValues("INVALID")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOutcome(&core.Outcome{})
	m.ObserveSession(nil)
	m.ObserveProbes(1, 1, 1)
	m.ObserveSweep(core.SweepReport{}, time.Second)
	m.ObserveRound(nil)
}

func TestTrackActiveSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	TrackActiveSessions(reg, func() (int, error) { return 3, nil })

	expected := `
# HELP presence_active_sessions Proximity sessions not yet expired
# TYPE presence_active_sessions gauge
presence_active_sessions 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "presence_active_sessions"))
}
