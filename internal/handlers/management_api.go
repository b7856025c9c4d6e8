package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/services"
)

const actorHeader = "X-Actor"

// IngestionAPI is the part of the ingestion service exposed over HTTP
type IngestionAPI interface {
	Ingest(ctx context.Context, req services.IngestRequest) (*services.IngestionResult, error)
	Replay(ctx context.Context, req services.ReplayRequest) (*services.IngestionResult, error)
	GetRun(ctx context.Context, runID string) (*models.IngestionRun, error)
	ListRuns(ctx context.Context, tenantID string, limit int) ([]*models.IngestionRun, error)
	ListRejections(ctx context.Context, runID string, page, pageSize int) (*services.RejectionPage, error)
}

// MappingProfileAPI is the part of the mapping profile service exposed over HTTP
type MappingProfileAPI interface {
	CreateProfile(ctx context.Context, req services.CreateMappingProfileRequest) (*models.MappingProfile, error)
	UpdateProfile(ctx context.Context, req services.UpdateMappingProfileRequest) (*models.MappingProfile, error)
	DeactivateProfile(ctx context.Context, tenantID, profileID, actor string) (*models.MappingProfile, error)
	GetProfile(ctx context.Context, tenantID, profileID string) (*models.MappingProfile, error)
	ListProfiles(ctx context.Context, tenantID string, includeInactive bool) ([]*models.MappingProfile, error)
	ListProfileEvents(ctx context.Context, tenantID, profileID string) ([]*models.MappingProfileEvent, error)
	ValidateMapping(sourceType string, fieldMappings map[string]string) services.MappingValidationResult
}

// ManagementAPIHandler serves the ingestion and mapping profile REST API
type ManagementAPIHandler struct {
	logger    *logger.Logger
	ingestion IngestionAPI
	profiles  MappingProfileAPI

	apiUsageCounter *prometheus.CounterVec
}

// NewManagementAPIHandler creates a new management API handler. A nil
// registry keeps the usage counter private, which tests rely on.
func NewManagementAPIHandler(
	logger *logger.Logger,
	ingestion IngestionAPI,
	profiles MappingProfileAPI,
	registry *prometheus.Registry,
) *ManagementAPIHandler {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &ManagementAPIHandler{
		logger:    logger,
		ingestion: ingestion,
		profiles:  profiles,
		apiUsageCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "management_api_requests_total",
			Help: "Total number of management API requests",
		}, []string{"method", "route", "status"}),
	}
}

// RegisterRoutes registers all management API routes
func (h *ManagementAPIHandler) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(h.usageAnalyticsMiddleware)

	// Ingestion runs
	v1.HandleFunc("/ingestions", h.Ingest).Methods("POST")
	v1.HandleFunc("/ingestions/{runId}/replay", h.Replay).Methods("POST")
	v1.HandleFunc("/tenants/{tenantId}/runs", h.ListRuns).Methods("GET")
	v1.HandleFunc("/runs/{runId}", h.GetRun).Methods("GET")
	v1.HandleFunc("/runs/{runId}/rejections", h.ListRejections).Methods("GET")

	// Mapping profiles
	v1.HandleFunc("/mapping-profiles/validate", h.ValidateMapping).Methods("POST")
	v1.HandleFunc("/tenants/{tenantId}/mapping-profiles", h.CreateMappingProfile).Methods("POST")
	v1.HandleFunc("/tenants/{tenantId}/mapping-profiles", h.ListMappingProfiles).Methods("GET")
	v1.HandleFunc("/tenants/{tenantId}/mapping-profiles/{id}", h.GetMappingProfile).Methods("GET")
	v1.HandleFunc("/tenants/{tenantId}/mapping-profiles/{id}", h.UpdateMappingProfile).Methods("PUT")
	v1.HandleFunc("/tenants/{tenantId}/mapping-profiles/{id}/deactivate", h.DeactivateMappingProfile).Methods("POST")
	v1.HandleFunc("/tenants/{tenantId}/mapping-profiles/{id}/events", h.ListMappingProfileEvents).Methods("GET")
}

// Ingestion handlers

func (h *ManagementAPIHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req services.IngestRequest
	data, err := readBody(r, &req)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// inline records keep the field order they were sent in
	if records := gjson.GetBytes(data, "source_config.records"); records.IsArray() && req.SourceConfig != nil {
		req.SourceConfig["records"] = json.RawMessage(records.Raw)
	}

	result, err := h.ingestion.Ingest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Ingestion failed", err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, result)
}

func (h *ManagementAPIHandler) Replay(w http.ResponseWriter, r *http.Request) {
	var req services.ReplayRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	req.RunID = mux.Vars(r)["runId"]

	result, err := h.ingestion.Replay(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Replay failed", err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, result)
}

func (h *ManagementAPIHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)

	runs, err := h.ingestion.ListRuns(r.Context(), mux.Vars(r)["tenantId"], limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list runs", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, runs)
}

func (h *ManagementAPIHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.ingestion.GetRun(r.Context(), mux.Vars(r)["runId"])
	if err != nil {
		h.writeServiceError(w, "Failed to get run", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, run)
}

func (h *ManagementAPIHandler) ListRejections(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 0)

	result, err := h.ingestion.ListRejections(r.Context(), mux.Vars(r)["runId"], page, pageSize)
	if err != nil {
		h.writeServiceError(w, "Failed to list rejections", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// Mapping profile handlers

type validateMappingRequest struct {
	SourceType    string            `json:"source_type"`
	FieldMappings map[string]string `json:"field_mappings"`
}

func (h *ManagementAPIHandler) ValidateMapping(w http.ResponseWriter, r *http.Request) {
	var req validateMappingRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, h.profiles.ValidateMapping(req.SourceType, req.FieldMappings))
}

func (h *ManagementAPIHandler) CreateMappingProfile(w http.ResponseWriter, r *http.Request) {
	var req services.CreateMappingProfileRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.TenantID = mux.Vars(r)["tenantId"]
	req.Actor = actorFrom(r, req.Actor)

	profile, err := h.profiles.CreateProfile(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Failed to create mapping profile", err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, profile)
}

func (h *ManagementAPIHandler) ListMappingProfiles(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	profiles, err := h.profiles.ListProfiles(r.Context(), mux.Vars(r)["tenantId"], includeInactive)
	if err != nil {
		h.writeServiceError(w, "Failed to list mapping profiles", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, profiles)
}

func (h *ManagementAPIHandler) GetMappingProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	profile, err := h.profiles.GetProfile(r.Context(), vars["tenantId"], vars["id"])
	if err != nil {
		h.writeServiceError(w, "Failed to get mapping profile", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, profile)
}

func (h *ManagementAPIHandler) UpdateMappingProfile(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateMappingProfileRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	vars := mux.Vars(r)
	req.TenantID = vars["tenantId"]
	req.ProfileID = vars["id"]
	req.Actor = actorFrom(r, req.Actor)

	profile, err := h.profiles.UpdateProfile(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Failed to update mapping profile", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, profile)
}

func (h *ManagementAPIHandler) DeactivateMappingProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	profile, err := h.profiles.DeactivateProfile(r.Context(), vars["tenantId"], vars["id"], actorFrom(r, ""))
	if err != nil {
		h.writeServiceError(w, "Failed to deactivate mapping profile", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, profile)
}

func (h *ManagementAPIHandler) ListMappingProfileEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	events, err := h.profiles.ListProfileEvents(r.Context(), vars["tenantId"], vars["id"])
	if err != nil {
		h.writeServiceError(w, "Failed to list mapping profile events", err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, events)
}

// Middleware

func (h *ManagementAPIHandler) usageAnalyticsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		// Label by route template so ids do not explode cardinality
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		h.apiUsageCounter.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()

		h.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"route":       route,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Management API request")
	})
}

// Helper methods

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotFound),
		errors.Is(err, services.ErrTenantNotFound),
		errors.Is(err, services.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrConflict),
		errors.Is(err, services.ErrDuplicateProfileName):
		return http.StatusConflict
	}

	switch models.KindOf(err) {
	case models.ErrorKindConfiguration, models.ErrorKindValidation:
		return http.StatusBadRequest
	case models.ErrorKindSourceFetch, models.ErrorKindTransport:
		return http.StatusBadGateway
	case models.ErrorKindPersistenceConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *ManagementAPIHandler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	response := map[string]interface{}{
		"error":     message,
		"status":    status,
		"details":   err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	var ie *models.IngestionError
	if errors.As(err, &ie) {
		response["kind"] = ie.Kind
		if ie.RunID != "" {
			response["run_id"] = ie.RunID
		}
	}

	entry := h.logger.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}
	h.writeJSONResponse(w, status, response)
}

func (h *ManagementAPIHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *ManagementAPIHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err != nil {
		h.logger.WithError(err).Warn(message)
		response["details"] = err.Error()
	}

	h.writeJSONResponse(w, statusCode, response)
}

// decodeBody decodes JSON keeping numbers as json.Number, so source configs
// carry integer ids through unchanged
func decodeBody(r *http.Request, dest interface{}) error {
	_, err := readBody(r, dest)
	return err
}

// readBody is decodeBody that also returns the raw body
func readBody(r *http.Request, dest interface{}) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return data, decoder.Decode(dest)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}

func actorFrom(r *http.Request, fallback string) string {
	if actor := r.Header.Get(actorHeader); actor != "" {
		return actor
	}
	return fallback
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
