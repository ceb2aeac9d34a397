package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"axiapac.com/presence/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "IxrAjDoa2FqElO7IhrSrUJELhUckePEPVpaePlS/Xaw="

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--subject", "E42", "--role", "admin", "--expires-in", "10m"})
	require.NoError(t, cmd.Execute())

	secret, err := security.DecodeSecret(testSecret)
	require.NoError(t, err)
	claims, err := security.ParseIdentityToken(string(bytes.TrimSpace(out.Bytes())), secret)
	require.NoError(t, err)
	assert.Equal(t, "E42", claims.Identity.Subject)
	assert.Equal(t, "E42", claims.Name)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenCommandRequiresSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})
	assert.Error(t, cmd.Execute())
}

func TestSweepRejectsBadAt(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"sweep", "all", "--at", "yesterday"})
	assert.ErrorContains(t, cmd.Execute(), "invalid --at")
}

func TestParseAt(t *testing.T) {
	got, err := parseAt("2025-03-10T08:00:00+07:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)))
}

func TestReportDailyNeedsTarget(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"report", "daily"})
	assert.ErrorContains(t, cmd.Execute(), "--out or --s3")
}

func TestPoliciesSeedDryRun(t *testing.T) {
	path := t.TempDir() + "/policies.yaml"
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  - {name: default, isDefault: true, minChecksPerShift: 2, maxChecksPerShift: 3, minValidPercentage: 50}\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"policies", "seed", "-f", path, "--dry-run"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"name": "default"`)
	assert.Contains(t, out.String(), `"isActive": true`)
}

func TestShiftsImportDryRun(t *testing.T) {
	path := t.TempDir() + "/roster.csv"
	require.NoError(t, os.WriteFile(path, []byte("employee_id,date,start,end\nE1,2025-03-10,08:00,17:00\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"shifts", "import", "-f", path, "--dry-run"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"employeeId": "E1"`)
	assert.Contains(t, out.String(), `"status": "SCHEDULED"`)
}
