package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/services"
)

func memoryOptions() []fx.Option {
	cfg := &config.Config{
		Database:  config.DatabaseConfig{Driver: "memory"},
		Logging:   config.LoggingConfig{Level: "error", Format: "json"},
		Ingestion: config.IngestionConfig{InstanceID: "ingestctl-test", Tenants: []string{"tenant-a"}},
		Validation: config.ValidationConfig{
			Default: config.ValidationProfile{
				Version: 1,
				Person:  config.PersonRules{RequireExternalRef: true},
			},
		},
		Outbox: config.OutboxConfig{
			Enabled:     true,
			Interval:    time.Hour,
			Transport:   services.TransportLog,
			BatchSize:   10,
			MaxAttempts: 3,
			BaseBackoff: time.Second,
			MaxBackoff:  time.Minute,
			LeaseTTL:    time.Minute,
		},
		Retention: config.RetentionConfig{Enabled: true, Interval: time.Hour, SnapshotTTL: time.Hour},
	}
	return []fx.Option{fx.Replace(cfg)}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(memoryOptions())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const ingestRequest = `{
  "tenant_id": "tenant-a",
  "source_type": "json",
  "source_config": {
    "records": [
      {"person_id": "p-1", "display_name": "Ann", "email": "ann@example.com"},
      {"person_id": "p-2", "display_name": "Bob", "email": "not-an-email"}
    ]
  }
}`

func TestIngestCmd_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte(ingestRequest), 0o600))

	out, err := execute(t, "", "ingest", "--file", path)
	require.NoError(t, err)

	var result services.IngestionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "tenant-a", result.TenantID)
	assert.Equal(t, 1, result.ProcessedRecords)
	assert.Equal(t, 1, result.RejectedRecords)
	assert.False(t, result.DryRun)
}

func TestIngestCmd_StdinDryRunOverride(t *testing.T) {
	out, err := execute(t, ingestRequest, "ingest", "--file", "-", "--dry-run")
	require.NoError(t, err)

	var result services.IngestionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.DryRun)
}

func TestIngestCmd_Errors(t *testing.T) {
	_, err := execute(t, "", "ingest")
	assert.Error(t, err, "--file is required")

	_, err = execute(t, "{broken", "ingest", "--file", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ingestion request")

	_, err = execute(t, "", "ingest", "--file", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read ingestion request")
}

func TestReplayCmd_UnknownRun(t *testing.T) {
	_, err := execute(t, "", "replay", "run-404", "--tenant", "tenant-a")
	assert.Error(t, err)

	_, err = execute(t, "", "replay", "run-404")
	assert.Error(t, err, "--tenant is required")
}

func TestDispatchAndSweepCmds(t *testing.T) {
	out, err := execute(t, "", "dispatch")
	require.NoError(t, err)
	var report services.DispatchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Claimed)

	out, err = execute(t, "", "sweep")
	require.NoError(t, err)
	var sweep services.RetentionReport
	require.NoError(t, json.Unmarshal([]byte(out), &sweep))
	assert.True(t, sweep.Enabled)
}
