package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"axiapac.com/presence/infrastructure/devops"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"ABSENCE_RECIPIENTS": "a@example.com,b@example.com",
		"DEFAULT_OFFICE_LAT": "-6.2",
	})
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 2500*time.Millisecond, cfg.DirectoryTimeout)
	assert.Equal(t, 0.85, cfg.ConfidenceThreshold)
	assert.Equal(t, 2*time.Hour, cfg.CheckoutGrace)
	assert.Equal(t, 60*time.Minute, cfg.ProbeMaxJitter)
	assert.Equal(t, 3, cfg.SweepLookbackDays)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.AbsenceRecipients)
	assert.Equal(t, -6.2, cfg.FallbackOffice().Lat)
	assert.Equal(t, 100.0, cfg.FallbackOffice().MaxDistanceMeters)
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())
}

func TestLoadFromRejects(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{name: "threshold above one", environ: map[string]string{"CONFIDENCE_THRESHOLD": "1.5"}},
		{name: "unknown timezone", environ: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "bad duration", environ: map[string]string{"SESSION_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			assert.Error(t, err)
		})
	}
}

type fakeSSM struct {
	value string
}

func (f fakeSSM) GetParameter(context.Context, *ssm.GetParameterInput, ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestResolveDSN(t *testing.T) {
	ctx := context.Background()
	noSSM := func(context.Context) (devops.SSMAPI, error) {
		return nil, errors.New("ssm must not be called")
	}

	cfg := &Config{DSN: "root:pw@tcp(localhost:3306)/presence"}
	dsn, err := cfg.ResolveDSN(ctx, noSSM)
	require.NoError(t, err)
	assert.Equal(t, cfg.DSN, dsn)

	_, err = (&Config{}).ResolveDSN(ctx, noSSM)
	assert.Error(t, err)

	fromSSM := func(context.Context) (devops.SSMAPI, error) {
		return fakeSSM{value: "- name: PROD\n  host: db.internal\n  username: app\n  password: pw\n"}, nil
	}
	cfg = &Config{DBParameter: "databases", DBEnvironment: "prod", DBSchema: "presence"}
	dsn, err = cfg.ResolveDSN(ctx, fromSSM)
	require.NoError(t, err)
	assert.Equal(t, "app:pw@tcp(db.internal:3306)/presence?parseTime=true", dsn)

	cfg.DBEnvironment = "staging"
	_, err = cfg.ResolveDSN(ctx, fromSSM)
	assert.ErrorContains(t, err, "staging")
}
