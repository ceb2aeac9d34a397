package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"axiapac.com/presence/presence/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	ran []string
	at  time.Time
	err error
}

func (f *fakeEngine) Run(_ context.Context, name string, now time.Time) (*core.SweepReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ran = append(f.ran, name)
	f.at = now
	return &core.SweepReport{Name: name, RanAt: now}, nil
}

func (f *fakeEngine) RunAll(ctx context.Context, now time.Time) ([]core.SweepReport, error) {
	var reports []core.SweepReport
	for _, name := range core.SweepNames() {
		r, err := f.Run(ctx, name, now)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent(json.RawMessage(`{"sweeps":["late_check_in"],"databases":["site_a"],"at":"2025-03-10T08:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"late_check_in"}, ev.Sweeps)
	assert.Equal(t, []string{"site_a"}, ev.Databases)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), ev.At)
	assert.Empty(t, ev.ActionGroup)

	ev, err = DecodeEvent(json.RawMessage(`{"actionGroup":"ops","function":"runSweeps","parameters":[
		{"name":"Sweeps","value":"missing_check_in, missing_check_out"},
		{"name":"databases","value":"site_a,,site_b"},
		{"name":"at","value":"2025-03-10T08:00:00Z"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "ops", ev.ActionGroup)
	assert.Equal(t, []string{"missing_check_in", "missing_check_out"}, ev.Sweeps)
	assert.Equal(t, []string{"site_a", "site_b"}, ev.Databases)

	_, err = DecodeEvent(json.RawMessage(`{"actionGroup":"ops","parameters":[{"name":"at","value":"yesterday"}]}`))
	assert.ErrorContains(t, err, "invalid at")

	ev, err = DecodeEvent(nil)
	require.NoError(t, err)
	assert.Empty(t, ev.Sweeps)
}

func TestRunSweeps(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	engines := map[string]*fakeEngine{"": {}, "site_a": {}, "broken": {err: errors.New("db down")}}
	pick := func(schema string) SweepEngine { return engines[schema] }

	results, err := RunSweeps(context.Background(), pick, SweepEvent{}, now, slog.Default())
	require.NoError(t, err)
	assert.Len(t, results[""].Reports, 4)
	assert.Equal(t, now, engines[""].at)

	at := now.Add(-time.Hour)
	results, err = RunSweeps(context.Background(), pick, SweepEvent{
		Sweeps:    []string{core.SweepLateCheckIn},
		Databases: []string{"site_a", "broken"},
		At:        at,
	}, now, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{core.SweepLateCheckIn}, engines["site_a"].ran)
	assert.Equal(t, at, engines["site_a"].at)
	assert.Equal(t, "db down", results["broken"].Error)
	assert.Len(t, results["site_a"].Reports, 1)

	_, err = RunSweeps(context.Background(), pick, SweepEvent{Sweeps: []string{"nope"}}, now, slog.Default())
	assert.ErrorIs(t, err, core.ErrUnknownSweep)
}

func TestNewAgentResponse(t *testing.T) {
	out := NewAgentResponse("ops", "runSweeps", map[string]int{"a": 1})
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messageVersion":"1.0","response":{"actionGroup":"ops","function":"runSweeps",
		"functionResponse":{"responseBody":{"TEXT":{"body":"{\"a\":1}"}}}}}`, string(raw))
}

func TestHandleRequestExpandsAllDatabases(t *testing.T) {
	engines := map[string]*fakeEngine{"site_a": {}, "site_b": {}}
	h := &handler{
		engines:   func(schema string) SweepEngine { return engines[schema] },
		databases: func(context.Context) ([]string, error) { return []string{"site_a", "site_b"}, nil },
		now:       func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
		logger:    slog.Default(),
	}

	out, err := h.HandleRequest(context.Background(), json.RawMessage(`{"sweeps":["missing_check_out"],"databases":["*"]}`))
	require.NoError(t, err)
	results := out.(map[string]DatabaseResult)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{core.SweepMissingCheckOut}, engines["site_b"].ran)

	out, err = h.HandleRequest(context.Background(), json.RawMessage(`{"actionGroup":"ops","function":"runSweeps","parameters":[{"name":"databases","value":"site_a"}]}`))
	require.NoError(t, err)
	assert.IsType(t, agentOutput{}, out)
}
