package main

import (
	"context"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/container"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/database"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/server"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/services"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		container.Module,
		fx.Invoke(func(
			lc fx.Lifecycle,
			cfg *config.Config,
			log *logger.Logger,
			srv *server.Server,
			scheduler *services.Scheduler,
			db *database.Connection,
			redisClient *redis.Client,
		) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.WithFields(map[string]interface{}{
						"port":      cfg.Server.Port,
						"database":  cfg.Database.Driver,
						"transport": cfg.Outbox.Transport,
						"jobs":      scheduler.Jobs(),
					}).Info("Starting audience ingestion service")

					scheduler.Start()

					// Start server in background
					go func() {
						if err := srv.Start(context.Background()); err != nil {
							log.WithError(err).Error("Server stopped unexpectedly")
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Info("Shutting down audience ingestion service")

					shutdown := services.NewShutdownCoordinator(log, 0)
					shutdown.RegisterShutdownHook("http_server", func(context.Context) error {
						return srv.Stop()
					})
					shutdown.RegisterShutdownHook("scheduler", func(context.Context) error {
						scheduler.Stop()
						return nil
					})
					shutdown.RegisterShutdownHook("redis", func(context.Context) error {
						return redisClient.Close()
					})
					shutdown.RegisterShutdownHook("database", func(context.Context) error {
						return db.Close()
					})
					return shutdown.Shutdown(ctx)
				},
			})
		}),
	)

	app.Run()
}
