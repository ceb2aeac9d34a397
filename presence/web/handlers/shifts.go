package handlers

import (
	"net/http"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/model"
	web "axiapac.com/presence/web/common"
	"github.com/gin-gonic/gin"
)

type ShiftDetailDTO struct {
	Shift      *model.EmployeeShift              `json:"shift"`
	ShiftDate  web.DateOnly                      `json:"shiftDate"`
	Checks     []model.AttendanceCheckRecord     `json:"checks"`
	Rounds     []model.PresenceVerificationRound `json:"rounds"`
	Tally      core.Tally                        `json:"tally"`
	Violations []model.ViolationRecord           `json:"violations"`
}

func (ep *Endpoint) GetShift(c *gin.Context) {
	ctx := c.Request.Context()
	shift, err := ep.svc.Shifts.GetShift(ctx, c.Param("id"))
	if err != nil {
		ep.fail(c, err)
		return
	}
	if !selfOrPrivileged(c, shift.EmployeeID) {
		ep.forbidden(c)
		return
	}

	checks, err := ep.svc.Shifts.ListChecks(ctx, shift.ID)
	if err != nil {
		ep.fail(c, err)
		return
	}
	rounds, err := ep.svc.Shifts.ListRounds(ctx, shift.ID)
	if err != nil {
		ep.fail(c, err)
		return
	}
	violations, err := ep.svc.Shifts.ListViolations(ctx, shift.ID)
	if err != nil {
		ep.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, web.NewSuccessResponse(ShiftDetailDTO{
		Shift:      shift,
		ShiftDate:  web.NewDateOnly(shift.ShiftDate),
		Checks:     checks,
		Rounds:     rounds,
		Tally:      core.TallyRounds(rounds),
		Violations: violations,
	}))
}

type ShiftSearchQuery struct {
	EmployeeID string       `form:"employeeId" binding:"required"`
	From       web.DateOnly `form:"from"`
	To         web.DateOnly `form:"to"`
}

// ListShifts defaults to the last seven days.
func (ep *Endpoint) ListShifts(c *gin.Context) {
	var q ShiftSearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ep.badRequest(c, err)
		return
	}
	if !selfOrPrivileged(c, q.EmployeeID) {
		ep.forbidden(c)
		return
	}

	to := q.To.Or(ep.svc.Now().In(ep.svc.Location))
	from := q.From.Or(to.AddDate(0, 0, -6))
	if from.After(to) {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse("'from' must not be after 'to'"))
		return
	}

	shifts, err := ep.svc.Shifts.FindShifts(c.Request.Context(), q.EmployeeID, from, to)
	if err != nil {
		ep.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, web.NewSearchResponse(shifts, int64(len(shifts))).
		WithRange(web.NewDateOnly(from), web.NewDateOnly(to)))
}

func (ep *Endpoint) RecordLocation(c *gin.Context) {
	var sub core.LocationSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		ep.badRequest(c, err)
		return
	}
	if !selfOrPrivileged(c, sub.EmployeeID) {
		ep.forbidden(c)
		return
	}
	sub.ShiftID = c.Param("id")
	if sub.CapturedAt.IsZero() {
		sub.CapturedAt = ep.svc.Now()
	}
	if sub.CapturedAt.After(ep.svc.Now().Add(time.Minute)) {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse("'capturedAt' is in the future"))
		return
	}

	result, err := ep.svc.Rounds.RecordRound(c.Request.Context(), sub)
	if err != nil {
		ep.fail(c, err)
		return
	}
	ep.svc.Metrics.ObserveRound(result)
	c.JSON(http.StatusCreated, web.NewSuccessResponse(result))
}
