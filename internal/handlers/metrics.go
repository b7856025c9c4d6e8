package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// OutboxStatusCounter reports the outbox backlog
type OutboxStatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error)
}

// MetricsHandler handles metrics endpoints
type MetricsHandler struct {
	prometheus http.Handler
	outbox     OutboxStatusCounter
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(prometheus http.Handler, outbox OutboxStatusCounter) *MetricsHandler {
	return &MetricsHandler{
		prometheus: prometheus,
		outbox:     outbox,
	}
}

// OutboxStatusResponse represents the outbox backlog response
type OutboxStatusResponse struct {
	Counts    models.OutboxBacklog `json:"counts"`
	Pending   int64                `json:"pending"`
	Timestamp time.Time            `json:"timestamp"`
}

// HandlePrometheus handles GET /metrics
func (h *MetricsHandler) HandlePrometheus(w http.ResponseWriter, r *http.Request) {
	h.prometheus.ServeHTTP(w, r)
}

// HandleOutboxStatus handles GET /api/v1/outbox/status
func (h *MetricsHandler) HandleOutboxStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.outbox.CountByStatus(r.Context())
	if err != nil {
		http.Error(w, "Failed to count outbox events", http.StatusInternalServerError)
		return
	}

	backlog := models.OutboxBacklog(counts)
	response := OutboxStatusResponse{
		Counts:    backlog,
		Pending:   backlog.Pending(),
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
