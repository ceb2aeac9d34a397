// Package jobs runs the sweeps, the presence sampler and the daily report
// on cron schedules inside the API process.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/metrics"
	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = 4 * time.Minute

type Schedules struct {
	Sweeps           map[string]string
	Sampler          string
	Report           string
	DispatchInterval time.Duration
}

type Sweeper interface {
	Run(ctx context.Context, name string, now time.Time) (*core.SweepReport, error)
}

type ProbeSampler interface {
	Tick(ctx context.Context, now time.Time) (int, error)
	Dispatch(ctx context.Context, now time.Time) int
	Pending() int
}

// ReportFunc builds the report for one day.
type ReportFunc func(ctx context.Context, day time.Time) error

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	sampler  ProbeSampler
	report   ReportFunc
	metrics  *metrics.Metrics
	location *time.Location
	now      core.Clock
	logger   *slog.Logger

	dispatchInterval time.Duration
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// New registers one entry per non-empty schedule. A job that is still
// running when its next tick fires is skipped.
func New(sweeper Sweeper, sampler ProbeSampler, report ReportFunc, m *metrics.Metrics, schedules Schedules, location *time.Location, now core.Clock, logger *slog.Logger) (*Scheduler, error) {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper:          sweeper,
		sampler:          sampler,
		report:           report,
		metrics:          m,
		location:         location,
		now:              now,
		logger:           logger,
		dispatchInterval: schedules.DispatchInterval,
	}

	for _, name := range core.SweepNames() {
		spec := schedules.Sweeps[name]
		if spec == "" || sweeper == nil {
			continue
		}
		if _, err := s.cron.AddFunc(spec, s.SweepJob(name)); err != nil {
			return nil, fmt.Errorf("schedule sweep %s %q: %w", name, spec, err)
		}
	}
	if schedules.Sampler != "" && sampler != nil {
		if _, err := s.cron.AddFunc(schedules.Sampler, s.TickJob); err != nil {
			return nil, fmt.Errorf("schedule sampler %q: %w", schedules.Sampler, err)
		}
	}
	if schedules.Report != "" && report != nil {
		if _, err := s.cron.AddFunc(schedules.Report, s.ReportJob); err != nil {
			return nil, fmt.Errorf("schedule report %q: %w", schedules.Report, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) SweepJob(name string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
		defer cancel()

		started := time.Now()
		report, err := s.sweeper.Run(ctx, name, s.now())
		if err != nil {
			s.logger.Error("sweep failed", "sweep", name, "error", err)
			return
		}
		s.metrics.ObserveSweep(*report, time.Since(started))
	}
}

func (s *Scheduler) TickJob() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
	defer cancel()

	scheduled, err := s.sampler.Tick(ctx, s.now())
	if err != nil {
		s.logger.Error("sampler tick failed", "error", err)
		return
	}
	s.metrics.ObserveProbes(scheduled, 0, s.sampler.Pending())
}

// ReportJob builds the report for the previous local day.
func (s *Scheduler) ReportJob() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
	defer cancel()

	day := s.now().In(s.location).AddDate(0, 0, -1)
	if err := s.report(ctx, day); err != nil {
		s.logger.Error("daily report failed", "day", day.Format(time.DateOnly), "error", err)
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	sent := s.sampler.Dispatch(ctx, s.now())
	s.metrics.ObserveProbes(0, sent, s.sampler.Pending())
}

// Start runs cron and, when a sampler is set, the probe dispatch loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	if s.sampler == nil || s.dispatchInterval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.dispatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.dispatch(ctx)
			}
		}
	}()
	s.logger.Info("scheduler started", "entries", s.Entries(), "dispatchInterval", s.dispatchInterval)
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
}
