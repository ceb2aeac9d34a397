package handlers

import (
	"net/http"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/model"
	web "axiapac.com/presence/web/common"
	"github.com/gin-gonic/gin"
)

func (ep *Endpoint) StartVerification(c *gin.Context) {
	var req core.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ep.badRequest(c, err)
		return
	}
	switch req.CheckType {
	case "", model.CheckAuto, model.CheckIn, model.CheckOut:
	default:
		c.JSON(http.StatusBadRequest, web.NewErrorResponse("Field 'checkType' must be one of [CHECK_IN CHECK_OUT AUTO]"))
		return
	}
	if !selfOrPrivileged(c, req.EmployeeID) {
		ep.forbidden(c)
		return
	}
	req.At = ep.svc.Now()

	ticket, err := ep.svc.Verifications.Start(c.Request.Context(), req)
	if err != nil {
		ep.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, web.NewSuccessResponse(ticket))
}

// ProcessResult answers 200 for accepted and denied outcomes alike; the
// outcome body carries the decision.
func (ep *Endpoint) ProcessResult(c *gin.Context) {
	var result core.VerificationResult
	if err := c.ShouldBindJSON(&result); err != nil {
		ep.badRequest(c, err)
		return
	}

	outcome, err := ep.svc.Results.Process(c.Request.Context(), result)
	if err != nil {
		ep.fail(c, err)
		return
	}
	ep.svc.Metrics.ObserveOutcome(outcome)
	c.JSON(http.StatusOK, web.NewSuccessResponse(outcome))
}
