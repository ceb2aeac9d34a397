package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/metrics"
	"axiapac.com/presence/presence/model"
	web "axiapac.com/presence/web/common"
	"axiapac.com/presence/web/middlewares"
	"github.com/gin-gonic/gin"
)

type SessionIssuer interface {
	ValidateBeacon(ctx context.Context, scan core.BeaconScan) (*core.SessionGrant, error)
}

type VerificationStarter interface {
	Start(ctx context.Context, req core.VerificationRequest) (*core.VerificationTicket, error)
}

type ResultProcessor interface {
	Process(ctx context.Context, result core.VerificationResult) (*core.Outcome, error)
}

type RoundRecorder interface {
	RecordRound(ctx context.Context, sub core.LocationSubmission) (*core.RoundResult, error)
}

type SweepRunner interface {
	Run(ctx context.Context, name string, now time.Time) (*core.SweepReport, error)
	RunAll(ctx context.Context, now time.Time) ([]core.SweepReport, error)
}

type ShiftReader interface {
	GetShift(ctx context.Context, id string) (*model.EmployeeShift, error)
	FindShifts(ctx context.Context, employeeID string, from, to time.Time) ([]model.EmployeeShift, error)
	ListChecks(ctx context.Context, shiftID string) ([]model.AttendanceCheckRecord, error)
	ListRounds(ctx context.Context, shiftID string) ([]model.PresenceVerificationRound, error)
	ListViolations(ctx context.Context, shiftID string) ([]model.ViolationRecord, error)
}

type ReportWriter interface {
	Write(ctx context.Context, day time.Time, w io.Writer) error
}

const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

type Services struct {
	Sessions      SessionIssuer
	Verifications VerificationStarter
	Results       ResultProcessor
	Rounds        RoundRecorder
	Sweeps        SweepRunner
	Shifts        ShiftReader
	Reports       ReportWriter
	Metrics       *metrics.Metrics
	Location      *time.Location
	Now           core.Clock
	Logger        *slog.Logger
}

type Endpoint struct {
	svc *Services
}

func Register(r *gin.RouterGroup, svc *Services) {
	if svc.Location == nil {
		svc.Location = time.UTC
	}
	if svc.Now == nil {
		svc.Now = time.Now
	}
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	ep := &Endpoint{svc: svc}

	r.POST("/proximity/scan", ep.Scan)
	r.POST("/verifications", ep.StartVerification)
	r.GET("/shifts", ep.ListShifts)
	r.GET("/shifts/:id", ep.GetShift)
	r.POST("/shifts/:id/locations", ep.RecordLocation)

	// biometric service callback
	r.POST("/verifications/results", middlewares.RequireRole(RoleService, RoleAdmin), ep.ProcessResult)

	ops := r.Group("", middlewares.RequireRole(RoleAdmin))
	ops.POST("/sweeps/:name", ep.RunSweep)
	ops.GET("/reports/daily", ep.DailyReport)
}

// selfOrPrivileged allows employees to act only as themselves.
func selfOrPrivileged(c *gin.Context, employeeID string) bool {
	claims := middlewares.Identity(c)
	if claims == nil {
		return false
	}
	if claims.Role == RoleAdmin || claims.Role == RoleService {
		return true
	}
	return claims.Identity.Subject == employeeID
}

func (ep *Endpoint) forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, web.NewCodedErrorResponse(string(core.ReasonEmployeeMismatch), "token does not belong to this employee"))
}

func (ep *Endpoint) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, web.NewErrorResponse(web.FormatBindingError(err)))
}

// fail maps service errors onto HTTP responses.
func (ep *Endpoint) fail(c *gin.Context, err error) {
	if errors.Is(err, core.ErrInvalidCoordinates) {
		c.JSON(http.StatusBadRequest, web.NewCodedErrorResponse(string(core.ReasonInvalidCoordinates), err.Error()))
		return
	}
	if errors.Is(err, core.ErrUnknownSweep) {
		c.JSON(http.StatusNotFound, web.NewErrorResponse(err.Error()))
		return
	}
	if errors.Is(err, core.ErrSweepRunning) {
		c.JSON(http.StatusConflict, web.NewErrorResponse(err.Error()))
		return
	}
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, web.NewErrorResponse("not found"))
		return
	}

	var de *core.DomainError
	if errors.As(err, &de) {
		status := http.StatusUnprocessableEntity
		switch de.Code {
		case core.ReasonCheckNotFound, core.ReasonShiftNotFound:
			status = http.StatusNotFound
		case core.ReasonCheckProcessed, core.ReasonShiftStatusConflict:
			status = http.StatusConflict
		}
		c.JSON(status, web.NewCodedErrorResponse(string(de.Code), de.Message))
		return
	}

	ep.svc.Logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, web.NewErrorResponse("internal error"))
}
