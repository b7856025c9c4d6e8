package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"github.com/go-redis/redis/v8"
)

// Transport names accepted by outbox.transport
const (
	TransportLog     = "log"
	TransportWebhook = "webhook"
	TransportRedis   = "redis"
)

// NewTransport builds the transport selected by configuration
func NewTransport(cfg *config.Config, redisClient *redis.Client, log *logger.Logger) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Outbox.Transport)) {
	case "", TransportLog:
		return NewLogTransport(log), nil
	case TransportWebhook:
		return NewWebhookTransport(cfg.Outbox.Webhook)
	case TransportRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis transport requires a redis client")
		}
		return NewRedisStreamTransport(redisClient, cfg.Outbox.Broker), nil
	}
	return nil, fmt.Errorf("unsupported outbox transport: %s", cfg.Outbox.Transport)
}

// envelope is the message body every transport delivers
type envelope struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Attempt       int             `json:"attempt"`
	CreatedAt     time.Time       `json:"created_at"`
	Payload       json.RawMessage `json:"payload"`
}

func newEnvelope(event *models.OutboxEvent) envelope {
	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return envelope{
		ID:            event.ID,
		TenantID:      event.TenantID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Attempt:       event.AttemptCount + 1,
		CreatedAt:     event.CreatedAt,
		Payload:       payload,
	}
}

// LogTransport writes events to the application log
type LogTransport struct {
	logger *logger.Logger
}

// NewLogTransport creates a log transport
func NewLogTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{logger: log}
}

// Name returns log
func (t *LogTransport) Name() string {
	return TransportLog
}

// Publish logs the event
func (t *LogTransport) Publish(ctx context.Context, event *models.OutboxEvent) error {
	t.logger.WithOutboxEvent(event.ID, event.EventType).
		WithField("tenant_id", event.TenantID).
		WithField("aggregate_type", event.AggregateType).
		WithField("aggregate_id", event.AggregateID).
		WithField("payload", string(event.Payload)).
		Info("Outbox event published")
	return nil
}

// WebhookTransport POSTs events to an HTTP endpoint
type WebhookTransport struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewWebhookTransport creates a webhook transport
func NewWebhookTransport(cfg config.WebhookConfig) (*WebhookTransport, error) {
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fmt.Errorf("webhook transport requires an http or https url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &WebhookTransport{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

// Name returns webhook
func (t *WebhookTransport) Name() string {
	return TransportWebhook
}

// Publish delivers the event; any non-2xx response is a failure
func (t *WebhookTransport) Publish(ctx context.Context, event *models.OutboxEvent) error {
	body, err := json.Marshal(newEnvelope(event))
	if err != nil {
		return models.NewTransportError(err, "failed to encode event %s", event.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return models.NewTransportError(err, "failed to build webhook request")
	}
	t.setHeaders(req, event)

	resp, err := t.client.Do(req)
	if err != nil {
		return models.NewTransportError(stripRequestURL(err), "webhook delivery failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.NewTransportError(nil, "webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// setHeaders sets HTTP headers on the request
func (t *WebhookTransport) setHeaders(req *http.Request, event *models.OutboxEvent) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", event.ID)
	req.Header.Set("X-Event-Type", event.EventType)
	req.Header.Set("Idempotency-Key", event.ID)

	for key, value := range t.cfg.Headers {
		req.Header.Set(key, value)
	}

	if t.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}
}

// stripRequestURL keeps webhook credentials carried in the URL out of errors
func stripRequestURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// streamAdder is the part of the redis client the stream transport needs
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamTransport appends events to a Redis stream acting as the message broker
type RedisStreamTransport struct {
	client streamAdder
	cfg    config.BrokerConfig
}

// NewRedisStreamTransport creates a redis stream transport
func NewRedisStreamTransport(client streamAdder, cfg config.BrokerConfig) *RedisStreamTransport {
	return &RedisStreamTransport{client: client, cfg: cfg}
}

// Name returns redis
func (t *RedisStreamTransport) Name() string {
	return TransportRedis
}

// stream resolves the stream key; the routing key, when set, narrows the topic
func (t *RedisStreamTransport) stream() string {
	topic := t.cfg.Topic
	if topic == "" {
		topic = "audience.events"
	}
	if t.cfg.Exchange != "" {
		topic = t.cfg.Exchange + ":" + topic
	}
	if t.cfg.RoutingKey != "" {
		topic = topic + ":" + t.cfg.RoutingKey
	}
	return topic
}

// Publish appends the event to the stream
func (t *RedisStreamTransport) Publish(ctx context.Context, event *models.OutboxEvent) error {
	body, err := json.Marshal(newEnvelope(event))
	if err != nil {
		return models.NewTransportError(err, "failed to encode event %s", event.ID)
	}

	args := &redis.XAddArgs{
		Stream: t.stream(),
		Values: map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.EventType,
			"tenant_id":  event.TenantID,
			"body":       string(body),
		},
	}
	if t.cfg.MaxLen > 0 {
		args.MaxLen = t.cfg.MaxLen
		args.Approx = true
	}

	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		return models.NewTransportError(err, "failed to append event to stream %s", args.Stream)
	}
	return nil
}
