package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DispatchReport counts the outcomes of one dispatch pass
type DispatchReport struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Retried   int `json:"retried"`
	Dead      int `json:"dead"`
	Lost      int `json:"lost"`
}

// OutboxDispatcher delivers due outbox events through a single transport
// with at-least-once semantics.
type OutboxDispatcher struct {
	logger    *logger.Logger
	cfg       config.OutboxConfig
	outbox    repositories.OutboxRepository
	transport Transport
	metrics   *Metrics
	owner     string
	now       func() time.Time
}

// NewOutboxDispatcher creates a dispatcher. The lease owner is the configured
// instance id, or host name plus a random suffix.
func NewOutboxDispatcher(log *logger.Logger, cfg *config.Config, outbox repositories.OutboxRepository, transport Transport, metrics *Metrics) *OutboxDispatcher {
	owner := cfg.Ingestion.InstanceID
	if owner == "" {
		host, _ := os.Hostname()
		owner = fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
	}
	return &OutboxDispatcher{
		logger:    log,
		cfg:       cfg.Outbox,
		outbox:    outbox,
		transport: transport,
		metrics:   metrics,
		owner:     owner,
		now:       time.Now,
	}
}

// Owner returns the lease owner token of this dispatcher
func (d *OutboxDispatcher) Owner() string {
	return d.owner
}

// BackoffDelay returns min(base * 2^(attempt-1), max) for attempt >= 1
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if max > 0 && delay >= max {
			return max
		}
		if delay > time.Duration(1<<62)/2 {
			break
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// DispatchOnce claims a batch of due events and resolves each one
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport

	now := d.now().UTC()
	events, err := d.outbox.ClaimDue(ctx, d.owner, now, d.leaseTTL(), d.batchSize())
	if err != nil {
		return report, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	report.Claimed = len(events)

	for _, event := range events {
		status, err := d.deliver(ctx, event)
		if err != nil {
			return report, err
		}
		switch status {
		case models.OutboxStatusPublished:
			report.Published++
		case models.OutboxStatusRetry:
			report.Retried++
		case models.OutboxStatusDead:
			report.Dead++
		default:
			report.Lost++
		}
	}

	if report.Claimed > 0 {
		d.logger.WithField("claimed", report.Claimed).
			WithField("published", report.Published).
			WithField("retried", report.Retried).
			WithField("dead", report.Dead).
			WithField("transport", d.transport.Name()).
			Info("Outbox dispatch pass completed")
	}
	return report, nil
}

// deliver publishes one event and records the result under the lease. An
// empty status means the lease was lost to another dispatcher.
func (d *OutboxDispatcher) deliver(ctx context.Context, event *models.OutboxEvent) (models.OutboxStatus, error) {
	log := d.logger.WithOutboxEvent(event.ID, event.EventType).WithField("tenant_id", event.TenantID)

	// expired leases are charged on claim, so the budget can run out before a publish
	if event.AttemptCount >= d.maxAttempts() {
		failure := repositories.OutboxFailure{
			Status:       models.OutboxStatusDead,
			AttemptCount: event.AttemptCount,
			LastError:    event.LastError,
			UpdatedAt:    d.now().UTC(),
		}
		return d.recordFailure(ctx, log, event, failure, errors.New(event.LastError))
	}

	publishErr := d.transport.Publish(ctx, event)
	now := d.now().UTC()

	if publishErr == nil {
		err := d.outbox.MarkPublished(ctx, event.ID, d.owner, now)
		if errors.Is(err, repositories.ErrConflict) || errors.Is(err, repositories.ErrNotFound) {
			log.Warn("Outbox lease lost before publish was recorded")
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to mark outbox event %s published: %w", event.ID, err)
		}
		d.metrics.observeDispatch(d.transport.Name(), string(models.OutboxStatusPublished))
		return models.OutboxStatusPublished, nil
	}

	return d.recordFailure(ctx, log, event, d.resolveFailure(event, publishErr, now), publishErr)
}

func (d *OutboxDispatcher) recordFailure(ctx context.Context, log *logrus.Entry, event *models.OutboxEvent, failure repositories.OutboxFailure, cause error) (models.OutboxStatus, error) {
	if err := d.outbox.MarkFailed(ctx, event.ID, d.owner, failure); err != nil {
		if errors.Is(err, repositories.ErrConflict) || errors.Is(err, repositories.ErrNotFound) {
			log.Warn("Outbox lease lost before failure was recorded")
			return "", nil
		}
		return "", fmt.Errorf("failed to record outbox failure of %s: %w", event.ID, err)
	}

	entry := log.WithError(cause).WithField("attempt_count", failure.AttemptCount)
	if failure.Status == models.OutboxStatusDead {
		entry.Error("Outbox event exhausted its attempts")
	} else {
		entry.WithField("next_attempt_at", failure.NextAttemptAt).Warn("Outbox delivery failed, will retry")
	}
	d.metrics.observeDispatch(d.transport.Name(), string(failure.Status))
	return failure.Status, nil
}

func (d *OutboxDispatcher) resolveFailure(event *models.OutboxEvent, cause error, now time.Time) repositories.OutboxFailure {
	attempts := event.AttemptCount + 1
	failure := repositories.OutboxFailure{
		AttemptCount: attempts,
		LastError:    cause.Error(),
		UpdatedAt:    now,
	}
	if attempts >= d.maxAttempts() {
		failure.Status = models.OutboxStatusDead
		return failure
	}
	next := now.Add(BackoffDelay(attempts, d.cfg.BaseBackoff, d.cfg.MaxBackoff))
	failure.Status = models.OutboxStatusRetry
	failure.NextAttemptAt = &next
	return failure
}

func (d *OutboxDispatcher) batchSize() int {
	if d.cfg.BatchSize <= 0 {
		return 100
	}
	return d.cfg.BatchSize
}

func (d *OutboxDispatcher) maxAttempts() int {
	if d.cfg.MaxAttempts <= 0 {
		return 1
	}
	return d.cfg.MaxAttempts
}

func (d *OutboxDispatcher) leaseTTL() time.Duration {
	if d.cfg.LeaseTTL <= 0 {
		return 2 * time.Minute
	}
	return d.cfg.LeaseTTL
}
