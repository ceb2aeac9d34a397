package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"axiapac.com/presence/config"
	"axiapac.com/presence/presence/app"
	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/metrics"
	"axiapac.com/presence/presence/web/handlers"
	"axiapac.com/presence/web/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	secret, err := cfg.Secret()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{
		WithSessions: true,
		Registerer:   prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.TrackActiveSessions(prometheus.DefaultRegisterer, func() (int, error) {
		return a.Sessions.Count(core.SessionKeyPrefix)
	})

	scheduler, err := a.Scheduler()
	if err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := r.Group("/api/presence/v1")
	protected.Use(middlewares.Authentication(secret))
	handlers.Register(protected, &handlers.Services{
		Sessions:      a.Broker,
		Verifications: a.Orchestrator,
		Results:       a.Processor,
		Rounds:        a.Sampler,
		Sweeps:        a.Engine,
		Shifts:        a.Store,
		Reports:       a.Report,
		Metrics:       a.Metrics,
		Location:      cfg.Location(),
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
