package audience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/container"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/server"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/services"
)

func startService(t *testing.T) *Client {
	t.Helper()

	cfg := &config.Config{
		Database:  config.DatabaseConfig{Driver: "memory"},
		Logging:   config.LoggingConfig{Level: "error", Format: "json"},
		Ingestion: config.IngestionConfig{InstanceID: "sdk-test", Tenants: []string{"tenant-a"}},
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
	}

	var srv *server.Server
	app := fxtest.New(t,
		container.Module,
		fx.Replace(cfg),
		fx.NopLogger,
		fx.Populate(&srv),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL+"/", WithActor("sdk-operator"))
}

func TestClient_IngestionLifecycle(t *testing.T) {
	client := startService(t)
	ctx := context.Background()

	profile, err := client.CreateMappingProfile(ctx, "tenant-a", &MappingProfileCreate{
		Name:          "hr-export",
		SourceType:    "json",
		FieldMappings: map[string]string{"emp_no": "person_id", "full_name": "display_name", "mail": "email"},
	})
	require.NoError(t, err)
	assert.True(t, profile.IsActive)
	assert.Equal(t, 1, profile.Version)

	result, err := client.Ingest(ctx, &IngestRequest{
		TenantID:         "tenant-a",
		SourceType:       "json",
		MappingProfileID: profile.ID,
		SourceConfig: map[string]interface{}{
			"records": []interface{}{
				map[string]interface{}{"emp_no": "e-1", "full_name": "Ann", "mail": "ann@example.com"},
				map[string]interface{}{"emp_no": "e-2", "full_name": "Bob", "mail": "bob-at-example"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedRecords)
	assert.Equal(t, 1, result.RejectedRecords)

	run, err := client.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", run.Status)
	require.NotNil(t, run.MappingProfileID)
	assert.Equal(t, profile.ID, *run.MappingProfileID)

	runs, err := client.ListRuns(ctx, "tenant-a", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	page, err := client.ListRejections(ctx, result.RunID, &ListOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Items[0].RowNumber)

	dryRun := true
	replay, err := client.Replay(ctx, "tenant-a", result.RunID, &dryRun)
	require.NoError(t, err)
	assert.True(t, replay.DryRun)
	assert.NotEqual(t, result.RunID, replay.RunID)

	deactivated, err := client.DeactivateMappingProfile(ctx, "tenant-a", profile.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	events, err := client.GetMappingProfileEvents(ctx, "tenant-a", profile.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "CREATED", events[0].EventType)
	assert.Equal(t, "sdk-operator", events[1].Actor)

	active, err := client.GetMappingProfiles(ctx, "tenant-a", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	outbox, err := client.GetOutboxStatus(ctx)
	require.NoError(t, err)
	assert.Positive(t, outbox.Pending)

	health, err := client.GetSystemHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Components, "database")
}

func TestClient_Errors(t *testing.T) {
	client := startService(t)
	ctx := context.Background()

	_, err := client.GetRun(ctx, "missing")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, err = client.Ingest(ctx, &IngestRequest{TenantID: "tenant-unknown", SourceType: "json"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, err = client.Ingest(ctx, &IngestRequest{
		TenantID:     "tenant-a",
		SourceType:   "rest",
		SourceConfig: map[string]interface{}{},
	})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "configuration", apiErr.Kind)
	assert.NotEmpty(t, apiErr.RunID)

	validation, err := client.ValidateMapping(ctx, "json", map[string]string{"a": "not_a_field"})
	require.NoError(t, err)
	assert.False(t, validation.Valid)
}
