package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"axiapac.com/presence/presence/report"
	web "axiapac.com/presence/web/common"
	"github.com/gin-gonic/gin"
)

type SweepQuery struct {
	At time.Time `form:"at" time_format:"2006-01-02T15:04:05Z07:00"`
}

// RunSweep runs one sweep, or every sweep for name "all".
func (ep *Endpoint) RunSweep(c *gin.Context) {
	var q SweepQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ep.badRequest(c, err)
		return
	}
	at := q.At
	if at.IsZero() {
		at = ep.svc.Now()
	}

	ctx := c.Request.Context()
	name := c.Param("name")
	if name == "all" {
		reports, err := ep.svc.Sweeps.RunAll(ctx, at)
		if err != nil && len(reports) == 0 {
			ep.fail(c, err)
			return
		}
		if err != nil {
			// failed sweeps carry their error in the report
			ep.svc.Logger.Warn("some sweeps failed", "error", err)
		}
		c.JSON(http.StatusOK, web.NewSuccessResponse(reports))
		return
	}

	started := time.Now()
	rep, err := ep.svc.Sweeps.Run(ctx, name, at)
	if err != nil {
		ep.fail(c, err)
		return
	}
	ep.svc.Metrics.ObserveSweep(*rep, time.Since(started))
	c.JSON(http.StatusOK, web.NewSuccessResponse(rep))
}

type DailyReportQuery struct {
	Date web.DateOnly `form:"date"`
}

// DailyReport streams the workbook; the date defaults to yesterday.
func (ep *Endpoint) DailyReport(c *gin.Context) {
	var q DailyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ep.badRequest(c, err)
		return
	}
	day := q.Date.Or(ep.svc.Now().In(ep.svc.Location).AddDate(0, 0, -1))

	var buf bytes.Buffer
	if err := ep.svc.Reports.Write(c.Request.Context(), day, &buf); err != nil {
		ep.fail(c, err)
		return
	}
	filename := fmt.Sprintf("attendance-%s.xlsx", day.Format(time.DateOnly))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
