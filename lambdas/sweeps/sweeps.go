package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/utils"
)

type SweepEngine interface {
	Run(ctx context.Context, name string, now time.Time) (*core.SweepReport, error)
	RunAll(ctx context.Context, now time.Time) ([]core.SweepReport, error)
}

// AllDatabases as the only entry of Databases runs against every schema on
// the server.
const AllDatabases = "*"

// SweepEvent selects sweeps and schemas. Empty lists mean every sweep and
// the configured schema; a zero At means the invocation time.
type SweepEvent struct {
	Sweeps    []string  `json:"sweeps"`
	Databases []string  `json:"databases"`
	At        time.Time `json:"at"`

	// set when invoked by an agent action group
	ActionGroup string `json:"-"`
	Function    string `json:"-"`
}

type DatabaseResult struct {
	Reports []core.SweepReport `json:"reports"`
	Error   string             `json:"error,omitempty"`
}

type agentParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type agentEvent struct {
	ActionGroup string           `json:"actionGroup"`
	Function    string           `json:"function"`
	Parameters  []agentParameter `json:"parameters"`
}

func (e agentEvent) param(name string) string {
	for _, p := range e.Parameters {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// DecodeEvent accepts either a plain SweepEvent or an agent action group
// event carrying "sweeps", "databases" and "at" parameters.
func DecodeEvent(raw json.RawMessage) (SweepEvent, error) {
	var agent agentEvent
	_ = json.Unmarshal(raw, &agent)

	if agent.ActionGroup == "" {
		var ev SweepEvent
		if len(raw) == 0 || string(raw) == "null" {
			return ev, nil
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			return ev, fmt.Errorf("failed to unmarshal sweep event: %w", err)
		}
		return ev, nil
	}

	ev := SweepEvent{
		Sweeps:      splitList(agent.param("sweeps")),
		Databases:   splitList(agent.param("databases")),
		ActionGroup: agent.ActionGroup,
		Function:    agent.Function,
	}
	if at := agent.param("at"); at != "" {
		t, err := utils.ParseTime(at, time.UTC)
		if err != nil {
			return ev, fmt.Errorf("invalid at %q: %w", at, err)
		}
		ev.At = t
	}
	return ev, nil
}

// RunSweeps runs the selected sweeps per database. A failing database is
// recorded and the rest still run; unknown sweep names fail the whole call.
func RunSweeps(ctx context.Context, engines func(schema string) SweepEngine, ev SweepEvent, now time.Time, logger *slog.Logger) (map[string]DatabaseResult, error) {
	for _, name := range ev.Sweeps {
		if !core.IsSweep(name) {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownSweep, name)
		}
	}
	at := ev.At
	if at.IsZero() {
		at = now
	}
	databases := ev.Databases
	if len(databases) == 0 {
		databases = []string{""}
	}

	results := make(map[string]DatabaseResult, len(databases))
	for _, db := range databases {
		engine := engines(db)
		var res DatabaseResult
		var err error
		if len(ev.Sweeps) == 0 {
			res.Reports, err = engine.RunAll(ctx, at)
		} else {
			for _, name := range ev.Sweeps {
				var report *core.SweepReport
				if report, err = engine.Run(ctx, name, at); err != nil {
					break
				}
				res.Reports = append(res.Reports, *report)
			}
		}
		if err != nil {
			logger.Error("sweeps failed for database", "database", db, "error", err)
			res.Error = err.Error()
		}
		results[db] = res
	}
	return results, nil
}

type agentOutput struct {
	MessageVersion string        `json:"messageVersion"`
	Response       agentResponse `json:"response"`
}

type agentResponse struct {
	ActionGroup      string         `json:"actionGroup"`
	Function         string         `json:"function"`
	FunctionResponse map[string]any `json:"functionResponse"`
}

// NewAgentResponse wraps results in the function response envelope
// expected by agent action groups.
func NewAgentResponse(actionGroup, function string, results any) agentOutput {
	body, _ := json.Marshal(results)
	return agentOutput{
		MessageVersion: "1.0",
		Response: agentResponse{
			ActionGroup: actionGroup,
			Function:    function,
			FunctionResponse: map[string]any{
				"responseBody": map[string]any{
					"TEXT": map[string]string{"body": string(body)},
				},
			},
		},
	}
}
