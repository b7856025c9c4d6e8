package services

import (
	"context"
	"sync"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/connectors"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories/memory"

	"github.com/stretchr/testify/mock"
)

const testTenant = "tenant-a"

func testConfig() *config.Config {
	return &config.Config{
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
		Ingestion: config.IngestionConfig{
			InstanceID: "dispatcher-test",
			Tenants:    []string{testTenant, "tenant-b"},
		},
		Validation: config.ValidationConfig{
			Default: config.ValidationProfile{
				Version:    1,
				Person:     config.PersonRules{RequireExternalRef: true},
				Group:      config.GroupRules{RequireExternalRef: true},
				Membership: config.MembershipRules{RequireExternalRefs: true, RequireExistingReferences: true},
			},
		},
		Outbox: config.OutboxConfig{
			Enabled:     true,
			Interval:    time.Second,
			Transport:   TransportLog,
			BatchSize:   10,
			MaxAttempts: 3,
			BaseBackoff: time.Second,
			MaxBackoff:  10 * time.Second,
			LeaseTTL:    time.Minute,
		},
		Retention: config.RetentionConfig{
			Enabled:            true,
			Interval:           time.Hour,
			SnapshotTTL:        24 * time.Hour,
			MappingEventTTL:    48 * time.Hour,
			PublishedOutboxTTL: time.Hour,
			DeadOutboxTTL:      72 * time.Hour,
		},
	}
}

func testLogger(cfg *config.Config) *logger.Logger {
	return logger.NewLogger(cfg)
}

// fakeClock is a settable clock shared by services under test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires every service against one in-memory store
type testEnv struct {
	cfg        *config.Config
	store      *memory.Store
	clock      *fakeClock
	registry   *connectors.Registry
	profiles   *MappingProfileService
	ingestion  *IngestionService
	dispatcher *OutboxDispatcher
	sweeper    *RetentionSweeper
	metrics    *Metrics
}

func newTestEnv(cfg *config.Config, transport Transport) *testEnv {
	log := testLogger(cfg)
	store := memory.NewStore()
	clock := newFakeClock()
	metrics := NewMetrics()
	registry := connectors.NewRegistry(cfg, log)
	tenants := NewTenantDirectory(cfg)
	validationSvc := models.NewValidationService()

	profiles := NewMappingProfileService(log, store.MappingProfiles(), store.MappingProfileEvents(), registry, tenants, nil, validationSvc)
	profiles.now = clock.Now

	ingestion := NewIngestionService(log, cfg, registry, profiles, NewValidationEngine(validationSvc), tenants,
		store.Runs(), store.Snapshots(), store.Rejections(), store.Canonical(), store.Outbox(), metrics)
	ingestion.now = clock.Now

	if transport == nil {
		transport = NewLogTransport(log)
	}
	dispatcher := NewOutboxDispatcher(log, cfg, store.Outbox(), transport, metrics)
	dispatcher.now = clock.Now

	sweeper := NewRetentionSweeper(log, cfg, store.Snapshots(), store.MappingProfileEvents(), store.Outbox(), metrics)
	sweeper.now = clock.Now

	return &testEnv{
		cfg:        cfg,
		store:      store,
		clock:      clock,
		registry:   registry,
		profiles:   profiles,
		ingestion:  ingestion,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		metrics:    metrics,
	}
}

func jsonSource(records ...map[string]interface{}) models.JSONMap {
	list := make([]interface{}, 0, len(records))
	for _, r := range records {
		list = append(list, r)
	}
	return models.JSONMap{"records": list}
}

// MockTransport is a testify mock of Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Name() string {
	return "mock"
}

func (m *MockTransport) Publish(ctx context.Context, event *models.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockProfileCache is a testify mock of ProfileCache
type MockProfileCache struct {
	mock.Mock
}

func (m *MockProfileCache) GetMappingProfile(ctx context.Context, id string) (*models.MappingProfile, error) {
	args := m.Called(ctx, id)
	profile, _ := args.Get(0).(*models.MappingProfile)
	return profile, args.Error(1)
}

func (m *MockProfileCache) SetMappingProfile(ctx context.Context, profile *models.MappingProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileCache) InvalidateMappingProfile(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// panicConnector panics on every load
type panicConnector struct{}

func (panicConnector) SourceType() string { return "EXPLODING" }

func (panicConnector) LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error) {
	panic("source exploded")
}

// contextRuns fails every write once the caller's context is done, as the
// gorm store does
type contextRuns struct {
	repositories.IngestionRunRepository
}

func (r contextRuns) Update(ctx context.Context, run *models.IngestionRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.IngestionRunRepository.Update(ctx, run)
}

// withContextRuns rebuilds the ingestion service over contextRuns
func (e *testEnv) withContextRuns() {
	log := testLogger(e.cfg)
	validationSvc := models.NewValidationService()
	ingestion := NewIngestionService(log, e.cfg, e.registry, e.profiles, NewValidationEngine(validationSvc),
		NewTenantDirectory(e.cfg), contextRuns{e.store.Runs()}, e.store.Snapshots(), e.store.Rejections(),
		e.store.Canonical(), e.store.Outbox(), e.metrics)
	ingestion.now = e.clock.Now
	e.ingestion = ingestion
}

// blockingConnector waits for the caller's context to end
type blockingConnector struct{}

func (blockingConnector) SourceType() string { return "BLOCKING" }

func (blockingConnector) LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// cancellingConnector cancels the run's context after handing out its records
type cancellingConnector struct {
	cancel context.CancelFunc
}

func (cancellingConnector) SourceType() string { return "CANCELLING" }

func (c cancellingConnector) LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error) {
	c.cancel()
	record := models.SourceRecord{RowNumber: 1}
	for k, v := range map[string]string{"person_id": "p-1", "display_name": "Ann", "email": "ann@example.com"} {
		v := v
		record.Set(k, &v)
	}
	return []models.SourceRecord{record}, nil
}
