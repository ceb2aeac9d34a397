package app

import (
	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/jobs"
)

func (a *App) Schedules() jobs.Schedules {
	c := a.Config
	return jobs.Schedules{
		Sweeps: map[string]string{
			core.SweepMissingCheckIn:  c.MissingCheckInSchedule,
			core.SweepMissingCheckOut: c.MissingCheckOutSchedule,
			core.SweepInsufficientGps: c.InsufficientGpsSchedule,
			core.SweepLateCheckIn:     c.LateCheckInSchedule,
		},
		Sampler:          c.SamplerSchedule,
		Report:           c.ReportSchedule,
		DispatchInterval: c.DispatchInterval,
	}
}

// Scheduler builds the cron scheduler. The report job is only registered
// when a bucket is configured.
func (a *App) Scheduler() (*jobs.Scheduler, error) {
	schedules := a.Schedules()
	var report jobs.ReportFunc
	if a.Bucket != nil {
		report = a.ReportToBucket
	} else {
		schedules.Report = ""
	}
	return jobs.New(a.Engine, a.Sampler, report, a.Metrics, schedules, a.Config.Location(), nil, a.Logger)
}
