package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheckFunc probes one component. A nil error means healthy.
type HealthCheckFunc func(ctx context.Context) error

type registeredCheck struct {
	check    HealthCheckFunc
	critical bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	mu     sync.RWMutex
	checks map[string]registeredCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]registeredCheck)}
}

// RegisterHealthCheck adds a component probe. Failing critical components
// make the service unready; the others only degrade it.
func (h *HealthHandler) RegisterHealthCheck(component string, critical bool, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[component] = registeredCheck{check: check, critical: critical}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     models.HealthStatus            `json:"status"`
	Timestamp  time.Time                      `json:"timestamp"`
	Components map[string]*models.HealthCheck `json:"components"`
}

// HandleHealthCheck handles the main health check endpoint
func (h *HealthHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	components, ready := h.runChecks(r.Context())

	overallStatus := models.HealthStatusHealthy
	for _, component := range components {
		if !component.IsHealthy() {
			overallStatus = models.HealthStatusDegraded
		}
	}
	if !ready {
		overallStatus = models.HealthStatusUnhealthy
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now().UTC(),
		Components: components,
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}

// HandleLivenessProbe handles Kubernetes liveness probe
func (h *HealthHandler) HandleLivenessProbe(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleReadinessProbe handles Kubernetes readiness probe
func (h *HealthHandler) HandleReadinessProbe(w http.ResponseWriter, r *http.Request) {
	if _, ready := h.runChecks(r.Context()); !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Service Unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// HandleComponentHealth handles health check for a specific component
func (h *HealthHandler) HandleComponentHealth(w http.ResponseWriter, r *http.Request) {
	component := r.URL.Query().Get("component")
	if component == "" {
		http.Error(w, "Component parameter is required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	registered, ok := h.checks[component]
	h.mu.RUnlock()
	if !ok {
		http.Error(w, "Unknown component", http.StatusNotFound)
		return
	}

	healthCheck := probe(r.Context(), component, registered.check)

	w.Header().Set("Content-Type", "application/json")
	if !healthCheck.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(healthCheck)
}

// Components lists the registered component names
func (h *HealthHandler) Components() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]*models.HealthCheck, bool) {
	h.mu.RLock()
	checks := make(map[string]registeredCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ready   = true
		results = make(map[string]*models.HealthCheck, len(checks))
	)
	for name, registered := range checks {
		wg.Add(1)
		go func(name string, registered registeredCheck) {
			defer wg.Done()
			result := probe(ctx, name, registered.check)

			mu.Lock()
			defer mu.Unlock()
			results[name] = result
			if registered.critical && !result.IsHealthy() {
				ready = false
			}
		}(name, registered)
	}
	wg.Wait()

	return results, ready
}

func probe(ctx context.Context, component string, check HealthCheckFunc) *models.HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)

	result := &models.HealthCheck{
		Component: component,
		Status:    models.HealthStatusHealthy,
		Duration:  time.Since(start).Milliseconds(),
		Timestamp: start.UTC(),
	}
	if err != nil {
		result.Status = models.HealthStatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
