package container

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/connectors"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/database"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/handlers"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories/memory"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/security"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/server"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/services"
)

// Repositories groups the persistence ports of the pipeline
type Repositories struct {
	fx.Out

	MappingProfiles      repositories.MappingProfileRepository
	MappingProfileEvents repositories.MappingProfileEventRepository
	Runs                 repositories.IngestionRunRepository
	Snapshots            repositories.SnapshotRepository
	Rejections           repositories.RejectionRepository
	Canonical            repositories.CanonicalRepository
	Outbox               repositories.OutboxRepository
}

// NewRepositories selects gorm or in-memory stores by database.driver
func NewRepositories(db *database.Connection) Repositories {
	if db.IsMemory() {
		store := memory.NewStore()
		return Repositories{
			MappingProfiles:      store.MappingProfiles(),
			MappingProfileEvents: store.MappingProfileEvents(),
			Runs:                 store.Runs(),
			Snapshots:            store.Snapshots(),
			Rejections:           store.Rejections(),
			Canonical:            store.Canonical(),
			Outbox:               store.Outbox(),
		}
	}

	return Repositories{
		MappingProfiles:      repositories.NewMappingProfileRepository(db),
		MappingProfileEvents: repositories.NewMappingProfileEventRepository(db),
		Runs:                 repositories.NewIngestionRunRepository(db),
		Snapshots:            repositories.NewSnapshotRepository(db),
		Rejections:           repositories.NewRejectionRepository(db),
		Canonical:            repositories.NewCanonicalRepository(db),
		Outbox:               repositories.NewOutboxRepository(db),
	}
}

// NewProfileCache returns the redis cache, or nil when caching is disabled
func NewProfileCache(cfg *config.Config, client *redis.Client) services.ProfileCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	return services.NewCacheService(client, cfg)
}

// NewScheduler creates the scheduler with the dispatcher, retention and
// scheduled ingestion jobs registered
func NewScheduler(
	log *logger.Logger,
	cfg *config.Config,
	metrics *services.Metrics,
	dispatcher *services.OutboxDispatcher,
	sweeper *services.RetentionSweeper,
	ingestion *services.IngestionService,
) (*services.Scheduler, error) {
	scheduler := services.NewScheduler(log, metrics)
	if err := services.RegisterDefaultJobs(scheduler, cfg, dispatcher, sweeper, ingestion); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// CoreModule provides everything but the HTTP surface
var CoreModule = fx.Options(
	// Configuration
	fx.Provide(config.LoadConfig),

	// Logging
	fx.Provide(logger.NewLogger),

	// Database
	fx.Provide(database.NewConnection),
	fx.Provide(database.NewMigrator),
	fx.Provide(database.NewRedisClient),

	// Repositories
	fx.Provide(NewRepositories),

	// Models (for validation and serialization)
	fx.Provide(models.NewValidationService),

	// Connectors
	fx.Provide(connectors.NewRegistry),

	// Services
	fx.Provide(services.NewMetrics),
	fx.Provide(services.NewTenantDirectory),
	fx.Provide(NewProfileCache),
	fx.Provide(services.NewMappingProfileService),
	fx.Provide(services.NewValidationEngine),
	fx.Provide(services.NewIngestionService),
	fx.Provide(services.NewTransport),
	fx.Provide(services.NewOutboxDispatcher),
	fx.Provide(services.NewRetentionSweeper),
	fx.Provide(NewScheduler),

	// Invoke migrations on startup
	fx.Invoke(func(migrator *database.Migrator) error {
		return migrator.Up()
	}),
)

// HTTPModule provides handlers, middleware and the server
var HTTPModule = fx.Options(
	// Handlers
	fx.Provide(func(
		log *logger.Logger,
		ingestion *services.IngestionService,
		profiles *services.MappingProfileService,
		metrics *services.Metrics,
	) *handlers.ManagementAPIHandler {
		return handlers.NewManagementAPIHandler(log, ingestion, profiles, metrics.Registry())
	}),
	fx.Provide(func(metrics *services.Metrics, outbox repositories.OutboxRepository) *handlers.MetricsHandler {
		return handlers.NewMetricsHandler(metrics.Handler(), outbox)
	}),
	fx.Provide(NewHealthHandler),

	// Security
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config) *security.RateLimiter {
		limiter := security.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				limiter.StartCleanup(5 * time.Minute)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				limiter.Stop()
				return nil
			},
		})
		return limiter
	}),
	fx.Provide(security.NewSecurityMiddleware),

	// Server
	fx.Provide(server.NewServer),
)

// Module provides dependency injection configuration
var Module = fx.Options(
	CoreModule,
	HTTPModule,
)

// NewHealthHandler registers probes for the stores the configuration uses
func NewHealthHandler(cfg *config.Config, db *database.Connection, client *redis.Client) *handlers.HealthHandler {
	health := handlers.NewHealthHandler()

	health.RegisterHealthCheck("database", true, func(ctx context.Context) error {
		if db.IsMemory() {
			return nil
		}
		sqlDB, err := db.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	if cfg.Cache.Enabled || cfg.Outbox.Transport == services.TransportRedis {
		// Non-critical: cache misses fall back to the store and delivery retries
		health.RegisterHealthCheck("redis", false, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	return health
}

// handler ports are satisfied by the services
var (
	_ handlers.IngestionAPI        = (*services.IngestionService)(nil)
	_ handlers.MappingProfileAPI   = (*services.MappingProfileService)(nil)
	_ handlers.OutboxStatusCounter = repositories.OutboxRepository(nil)
)
