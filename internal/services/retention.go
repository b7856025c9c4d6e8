package services

import (
	"context"
	"fmt"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
)

// RetentionReport counts rows removed by one sweep
type RetentionReport struct {
	Enabled         bool  `json:"enabled"`
	Snapshots       int64 `json:"snapshots"`
	MappingEvents   int64 `json:"mapping_events"`
	PublishedOutbox int64 `json:"published_outbox"`
	DeadOutbox      int64 `json:"dead_outbox"`
}

// RetentionSweeper deletes expired snapshots, profile events and terminal
// outbox rows. Events still in flight are never touched.
type RetentionSweeper struct {
	logger    *logger.Logger
	cfg       config.RetentionConfig
	snapshots repositories.SnapshotRepository
	events    repositories.MappingProfileEventRepository
	outbox    repositories.OutboxRepository
	metrics   *Metrics
	now       func() time.Time
}

// NewRetentionSweeper creates a retention sweeper
func NewRetentionSweeper(
	log *logger.Logger,
	cfg *config.Config,
	snapshots repositories.SnapshotRepository,
	events repositories.MappingProfileEventRepository,
	outbox repositories.OutboxRepository,
	metrics *Metrics,
) *RetentionSweeper {
	return &RetentionSweeper{
		logger:    log,
		cfg:       cfg.Retention,
		snapshots: snapshots,
		events:    events,
		outbox:    outbox,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Sweep runs one retention pass. A zero TTL keeps that category forever.
func (s *RetentionSweeper) Sweep(ctx context.Context) (RetentionReport, error) {
	report := RetentionReport{Enabled: s.cfg.Enabled}
	if !s.cfg.Enabled {
		return report, nil
	}
	now := s.now().UTC()

	var err error
	if s.cfg.SnapshotTTL > 0 {
		if report.Snapshots, err = s.snapshots.DeleteOlderThan(ctx, now.Add(-s.cfg.SnapshotTTL)); err != nil {
			return report, fmt.Errorf("failed to sweep snapshots: %w", err)
		}
	}
	if s.cfg.MappingEventTTL > 0 {
		if report.MappingEvents, err = s.events.DeleteOlderThan(ctx, now.Add(-s.cfg.MappingEventTTL)); err != nil {
			return report, fmt.Errorf("failed to sweep mapping profile events: %w", err)
		}
	}
	if s.cfg.PublishedOutboxTTL > 0 {
		if report.PublishedOutbox, err = s.outbox.DeleteOlderThan(ctx, models.OutboxStatusPublished, now.Add(-s.cfg.PublishedOutboxTTL)); err != nil {
			return report, fmt.Errorf("failed to sweep published outbox events: %w", err)
		}
	}
	if s.cfg.DeadOutboxTTL > 0 {
		if report.DeadOutbox, err = s.outbox.DeleteOlderThan(ctx, models.OutboxStatusDead, now.Add(-s.cfg.DeadOutboxTTL)); err != nil {
			return report, fmt.Errorf("failed to sweep dead outbox events: %w", err)
		}
	}

	s.metrics.observeRetention("snapshots", report.Snapshots)
	s.metrics.observeRetention("mapping_events", report.MappingEvents)
	s.metrics.observeRetention("published_outbox", report.PublishedOutbox)
	s.metrics.observeRetention("dead_outbox", report.DeadOutbox)

	s.logger.WithField("snapshots", report.Snapshots).
		WithField("mapping_events", report.MappingEvents).
		WithField("published_outbox", report.PublishedOutbox).
		WithField("dead_outbox", report.DeadOutbox).
		Info("Retention sweep completed")
	return report, nil
}
