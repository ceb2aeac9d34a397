// Package metrics exposes Prometheus counters for verification outcomes,
// proximity sessions, presence probes and sweeps.
package metrics

import (
	"time"

	"axiapac.com/presence/presence/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "presence"

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	// Labels: check_type, reason
	OutcomesTotal *prometheus.CounterVec

	// Labels: result (issued or the rejection code)
	SessionsTotal *prometheus.CounterVec

	// Labels: status (VALID, INVALID)
	RoundsTotal *prometheus.CounterVec

	ProbesScheduledTotal  prometheus.Counter
	ProbesDispatchedTotal prometheus.Counter
	ProbesPending         prometheus.Gauge

	// Labels: sweep
	SweepTransitionsTotal *prometheus.CounterVec
	SweepFailuresTotal    *prometheus.CounterVec
	SweepDurationSeconds  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_outcomes_total",
			Help:      "Processed biometric callbacks by check type and reason",
		}, []string{"check_type", "reason"}),
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proximity_sessions_total",
			Help:      "Beacon scans by result",
		}, []string{"result"}),
		RoundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Presence rounds recorded by validation status",
		}, []string{"status"}),
		ProbesScheduledTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_scheduled_total",
			Help:      "Presence probes queued with jitter",
		}),
		ProbesDispatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_dispatched_total",
			Help:      "Presence probes published to employees",
		}),
		ProbesPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probes_pending",
			Help:      "Presence probes waiting for their jitter",
		}),
		SweepTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_transitions_total",
			Help:      "Shift transitions applied by sweep",
		}, []string{"sweep"}),
		SweepFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Sweep items that failed to apply",
		}, []string{"sweep"}),
		SweepDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Sweep run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"sweep"}),
	}
}

func (m *Metrics) ObserveOutcome(o *core.Outcome) {
	if m == nil || o == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(string(o.CheckType), string(o.Reason)).Inc()
}

// ObserveSession counts a scan. A nil err is an issued session.
func (m *Metrics) ObserveSession(err error) {
	if m == nil {
		return
	}
	result := "issued"
	if err != nil {
		result = string(core.CodeOf(err))
		if result == "" {
			result = "error"
		}
	}
	m.SessionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRound(r *core.RoundResult) {
	if m == nil || r == nil {
		return
	}
	m.RoundsTotal.WithLabelValues(string(r.Round.ValidationStatus)).Inc()
}

func (m *Metrics) ObserveProbes(scheduled, dispatched, pending int) {
	if m == nil {
		return
	}
	m.ProbesScheduledTotal.Add(float64(scheduled))
	m.ProbesDispatchedTotal.Add(float64(dispatched))
	m.ProbesPending.Set(float64(pending))
}

func (m *Metrics) ObserveSweep(report core.SweepReport, took time.Duration) {
	if m == nil {
		return
	}
	m.SweepTransitionsTotal.WithLabelValues(report.Name).Add(float64(report.Transitioned))
	m.SweepFailuresTotal.WithLabelValues(report.Name).Add(float64(report.Failed))
	m.SweepDurationSeconds.WithLabelValues(report.Name).Observe(took.Seconds())
}

// TrackActiveSessions exports the number of live proximity sessions,
// read on every scrape. A failed count reports -1.
func TrackActiveSessions(reg prometheus.Registerer, count func() (int, error)) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Proximity sessions not yet expired",
	}, func() float64 {
		n, err := count()
		if err != nil {
			return -1
		}
		return float64(n)
	})
}
