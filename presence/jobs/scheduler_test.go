package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (f *fakeSweeper) Run(_ context.Context, name string, now time.Time) (*core.SweepReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, name)
	if f.err != nil {
		return nil, f.err
	}
	return &core.SweepReport{Name: name, RanAt: now, Transitioned: 2}, nil
}

type fakeSampler struct {
	ticks      atomic.Int32
	dispatches atomic.Int32
}

func (f *fakeSampler) Tick(context.Context, time.Time) (int, error) {
	f.ticks.Add(1)
	return 3, nil
}

func (f *fakeSampler) Dispatch(context.Context, time.Time) int {
	f.dispatches.Add(1)
	return 1
}

func (f *fakeSampler) Pending() int { return 2 }

var fixedNow = func() time.Time { return time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC) }

func allSweeps(spec string) map[string]string {
	out := map[string]string{}
	for _, name := range core.SweepNames() {
		out[name] = spec
	}
	return out
}

func TestNewRegistersEntries(t *testing.T) {
	report := func(context.Context, time.Time) error { return nil }
	s, err := New(&fakeSweeper{}, &fakeSampler{}, report, nil, Schedules{
		Sweeps:  allSweeps("*/15 * * * *"),
		Sampler: "0 * * * *",
		Report:  "30 0 * * *",
	}, nil, fixedNow, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Entries())

	s, err = New(&fakeSweeper{}, nil, nil, nil, Schedules{Sweeps: map[string]string{core.SweepLateCheckIn: "*/10 * * * *"}}, nil, fixedNow, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(&fakeSweeper{}, nil, nil, nil, Schedules{Sweeps: map[string]string{core.SweepMissingCheckIn: "every minute"}}, nil, fixedNow, nil)
	assert.ErrorContains(t, err, core.SweepMissingCheckIn)
}

func TestSweepJobRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sweeper := &fakeSweeper{}
	s, err := New(sweeper, nil, nil, m, Schedules{}, nil, fixedNow, nil)
	require.NoError(t, err)

	s.SweepJob(core.SweepMissingCheckOut)()
	assert.Equal(t, []string{core.SweepMissingCheckOut}, sweeper.runs)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepTransitionsTotal.WithLabelValues(core.SweepMissingCheckOut)))

	sweeper.err = errors.New("db down")
	s.SweepJob(core.SweepMissingCheckOut)()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepTransitionsTotal.WithLabelValues(core.SweepMissingCheckOut)))
}

func TestReportJobUsesPreviousDay(t *testing.T) {
	var got time.Time
	report := func(_ context.Context, day time.Time) error {
		got = day
		return nil
	}
	s, err := New(nil, nil, report, nil, Schedules{}, nil, fixedNow, nil)
	require.NoError(t, err)

	s.ReportJob()
	assert.Equal(t, "2025-03-09", got.Format(time.DateOnly))
}

func TestDispatchLoop(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sampler := &fakeSampler{}
	s, err := New(nil, sampler, nil, m, Schedules{DispatchInterval: 10 * time.Millisecond}, nil, fixedNow, nil)
	require.NoError(t, err)

	s.TickJob()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ProbesScheduledTotal))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return sampler.dispatches.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := sampler.dispatches.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sampler.dispatches.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProbesPending))
}
