package handlers

import (
	"net/http"

	"axiapac.com/presence/presence/core"
	web "axiapac.com/presence/web/common"
	"github.com/gin-gonic/gin"
)

func (ep *Endpoint) Scan(c *gin.Context) {
	var scan core.BeaconScan
	if err := c.ShouldBindJSON(&scan); err != nil {
		ep.badRequest(c, err)
		return
	}
	if !selfOrPrivileged(c, scan.EmployeeID) {
		ep.forbidden(c)
		return
	}

	grant, err := ep.svc.Sessions.ValidateBeacon(c.Request.Context(), scan)
	ep.svc.Metrics.ObserveSession(err)
	if err != nil {
		ep.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, web.NewSuccessResponse(grant))
}
