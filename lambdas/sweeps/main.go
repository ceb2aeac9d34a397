package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"axiapac.com/presence/config"
	"axiapac.com/presence/presence/app"
	"axiapac.com/presence/presence/core"
	"github.com/aws/aws-lambda-go/lambda"
)

type handler struct {
	engines   func(schema string) SweepEngine
	databases func(ctx context.Context) ([]string, error)
	now       core.Clock
	logger    *slog.Logger
}

func (h *handler) HandleRequest(ctx context.Context, raw json.RawMessage) (any, error) {
	h.logger.Info("event received", "event", string(raw))

	ev, err := DecodeEvent(raw)
	if err != nil {
		return nil, err
	}
	if len(ev.Databases) == 1 && ev.Databases[0] == AllDatabases {
		if ev.Databases, err = h.databases(ctx); err != nil {
			return nil, fmt.Errorf("failed to get all databases: %w", err)
		}
	}
	results, err := RunSweeps(ctx, h.engines, ev, h.now(), h.logger)
	if err != nil {
		return nil, err
	}
	if ev.ActionGroup != "" && ev.Function != "" {
		return NewAgentResponse(ev.ActionGroup, ev.Function, results), nil
	}
	return results, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	h := &handler{
		engines:   func(schema string) SweepEngine { return a.EngineFor(schema) },
		databases: a.DM.GetAllDatabases,
		now:       time.Now,
		logger:    logger,
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(h.HandleRequest)
		return
	}

	// local run: every sweep against the configured schema
	results, err := RunSweeps(ctx, h.engines, SweepEvent{}, time.Now(), logger)
	if err != nil {
		logger.Error("sweeps failed", "error", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(out))
}
