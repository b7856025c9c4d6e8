// Package audience provides a Go client for the audience ingestion management API
package audience

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the management API of an ingestion service
type Client struct {
	baseURL    string
	httpClient *http.Client
	actor      string
	version    string
}

// ClientOption represents a client configuration option
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithActor sets the actor recorded on mapping profile events
func WithActor(actor string) ClientOption {
	return func(c *Client) {
		c.actor = actor
	}
}

// WithVersion sets the API version
func WithVersion(version string) ClientOption {
	return func(c *Client) {
		c.version = version
	}
}

// NewClient creates a new management API client
func NewClient(baseURL string, options ...ClientOption) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		version: "v1",
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// IngestRequest starts an ingestion run
type IngestRequest struct {
	TenantID         string                 `json:"tenant_id"`
	SourceType       string                 `json:"source_type"`
	SourceConfig     map[string]interface{} `json:"source_config"`
	MappingProfileID string                 `json:"mapping_profile_id,omitempty"`
	DryRun           bool                   `json:"dry_run"`
}

// IngestionResult summarises a completed run
type IngestionResult struct {
	TenantID         string `json:"tenant_id"`
	RunID            string `json:"run_id"`
	DryRun           bool   `json:"dry_run"`
	ProcessedRecords int    `json:"processed_records"`
	RejectedRecords  int    `json:"rejected_records"`
}

// Run is the stored record of an ingestion run
type Run struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	SourceType       string     `json:"source_type"`
	MappingProfileID *string    `json:"mapping_profile_id,omitempty"`
	Status           string     `json:"status"`
	DryRun           bool       `json:"dry_run"`
	ReplayOfRunID    *string    `json:"replay_of_run_id,omitempty"`
	ProcessedRecords int        `json:"processed_records"`
	RejectedRecords  int        `json:"rejected_records"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// Rejection is one row a run refused
type Rejection struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	TenantID  string    `json:"tenant_id"`
	RowNumber int       `json:"row_number"`
	Reason    string    `json:"reason"`
	RowData   string    `json:"row_data"`
	CreatedAt time.Time `json:"created_at"`
}

// RejectionPage is one page of a run's rejections in row order
type RejectionPage struct {
	Items    []*Rejection `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// MappingProfile translates source field names to canonical field names
type MappingProfile struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenant_id"`
	Name          string            `json:"name"`
	SourceType    string            `json:"source_type"`
	FieldMappings map[string]string `json:"field_mappings"`
	IsActive      bool              `json:"is_active"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// MappingProfileCreate represents the data needed to create a mapping profile
type MappingProfileCreate struct {
	Name          string            `json:"name"`
	SourceType    string            `json:"source_type"`
	FieldMappings map[string]string `json:"field_mappings"`
}

// MappingProfileUpdate carries the fields to change; empty fields are kept
type MappingProfileUpdate struct {
	Name          string            `json:"name,omitempty"`
	SourceType    string            `json:"source_type,omitempty"`
	FieldMappings map[string]string `json:"field_mappings,omitempty"`
	IsActive      *bool             `json:"is_active,omitempty"`
}

// MappingProfileEvent is an audit entry of a profile mutation
type MappingProfileEvent struct {
	ID        string          `json:"id"`
	ProfileID string          `json:"profile_id"`
	TenantID  string          `json:"tenant_id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// MappingValidation is the outcome of a mapping dry check
type MappingValidation struct {
	Normalized map[string]string `json:"normalized"`
	Valid      bool              `json:"valid"`
	Errors     []string          `json:"errors,omitempty"`
}

// SystemHealth represents system health status
type SystemHealth struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// ComponentHealth represents individual component health
type ComponentHealth struct {
	Component string    `json:"component"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Duration  int64     `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboxStatus reports the outbox backlog by status
type OutboxStatus struct {
	Counts    map[string]int64 `json:"counts"`
	Pending   int64            `json:"pending"`
	Timestamp time.Time        `json:"timestamp"`
}

// Error represents an API error response
type Error struct {
	Message   string    `json:"error"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("API error %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// Ingestion Methods

// Ingest runs an ingestion and returns its summary. A failed run is returned
// as *Error with RunID set.
func (c *Client) Ingest(ctx context.Context, req *IngestRequest) (*IngestionResult, error) {
	var result IngestionResult
	err := c.makeRequest(ctx, "POST", "/ingestions", req, &result)
	return &result, err
}

// Replay re-runs a stored run from its snapshot. A nil dryRun keeps the
// original run's flag.
func (c *Client) Replay(ctx context.Context, tenantID, runID string, dryRun *bool) (*IngestionResult, error) {
	var result IngestionResult
	body := map[string]interface{}{"tenant_id": tenantID}
	if dryRun != nil {
		body["dry_run"] = *dryRun
	}
	path := fmt.Sprintf("/ingestions/%s/replay", url.PathEscape(runID))
	err := c.makeRequest(ctx, "POST", path, body, &result)
	return &result, err
}

// GetRun retrieves a run
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	var result Run
	path := fmt.Sprintf("/runs/%s", url.PathEscape(runID))
	err := c.makeRequest(ctx, "GET", path, nil, &result)
	return &result, err
}

// ListRuns retrieves a tenant's runs, newest first. limit <= 0 uses the server default.
func (c *Client) ListRuns(ctx context.Context, tenantID string, limit int) ([]*Run, error) {
	var result []*Run

	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	path := withQuery(fmt.Sprintf("/tenants/%s/runs", url.PathEscape(tenantID)), params)

	err := c.makeRequest(ctx, "GET", path, nil, &result)
	return result, err
}

// ListOptions pages through rejections
type ListOptions struct {
	Page     int
	PageSize int
}

// ListRejections retrieves a page of a run's rejections
func (c *Client) ListRejections(ctx context.Context, runID string, opts *ListOptions) (*RejectionPage, error) {
	var result RejectionPage

	params := url.Values{}
	if opts != nil {
		if opts.Page > 0 {
			params.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			params.Set("page_size", strconv.Itoa(opts.PageSize))
		}
	}
	path := withQuery(fmt.Sprintf("/runs/%s/rejections", url.PathEscape(runID)), params)

	err := c.makeRequest(ctx, "GET", path, nil, &result)
	return &result, err
}

// Mapping Profile Methods

// ValidateMapping checks a field mapping without storing it
func (c *Client) ValidateMapping(ctx context.Context, sourceType string, fieldMappings map[string]string) (*MappingValidation, error) {
	var result MappingValidation
	body := map[string]interface{}{"source_type": sourceType, "field_mappings": fieldMappings}
	err := c.makeRequest(ctx, "POST", "/mapping-profiles/validate", body, &result)
	return &result, err
}

// CreateMappingProfile creates a mapping profile for a tenant
func (c *Client) CreateMappingProfile(ctx context.Context, tenantID string, profile *MappingProfileCreate) (*MappingProfile, error) {
	var result MappingProfile
	err := c.makeRequest(ctx, "POST", c.profilesPath(tenantID, ""), profile, &result)
	return &result, err
}

// GetMappingProfiles retrieves a tenant's mapping profiles
func (c *Client) GetMappingProfiles(ctx context.Context, tenantID string, includeInactive bool) ([]*MappingProfile, error) {
	var result []*MappingProfile

	params := url.Values{}
	if includeInactive {
		params.Set("include_inactive", "true")
	}

	err := c.makeRequest(ctx, "GET", withQuery(c.profilesPath(tenantID, ""), params), nil, &result)
	return result, err
}

// GetMappingProfile retrieves a specific mapping profile
func (c *Client) GetMappingProfile(ctx context.Context, tenantID, id string) (*MappingProfile, error) {
	var result MappingProfile
	err := c.makeRequest(ctx, "GET", c.profilesPath(tenantID, id), nil, &result)
	return &result, err
}

// UpdateMappingProfile updates an existing mapping profile
func (c *Client) UpdateMappingProfile(ctx context.Context, tenantID, id string, update *MappingProfileUpdate) (*MappingProfile, error) {
	var result MappingProfile
	err := c.makeRequest(ctx, "PUT", c.profilesPath(tenantID, id), update, &result)
	return &result, err
}

// DeactivateMappingProfile deactivates a mapping profile
func (c *Client) DeactivateMappingProfile(ctx context.Context, tenantID, id string) (*MappingProfile, error) {
	var result MappingProfile
	err := c.makeRequest(ctx, "POST", c.profilesPath(tenantID, id)+"/deactivate", nil, &result)
	return &result, err
}

// GetMappingProfileEvents retrieves a profile's audit trail, oldest first
func (c *Client) GetMappingProfileEvents(ctx context.Context, tenantID, id string) ([]*MappingProfileEvent, error) {
	var result []*MappingProfileEvent
	err := c.makeRequest(ctx, "GET", c.profilesPath(tenantID, id)+"/events", nil, &result)
	return result, err
}

// Operations Methods

// GetSystemHealth retrieves the aggregated health report. An unhealthy
// service still returns its report.
func (c *Client) GetSystemHealth(ctx context.Context) (*SystemHealth, error) {
	var result SystemHealth
	err := c.do(ctx, "GET", c.baseURL+"/health", nil, &result, http.StatusServiceUnavailable)
	return &result, err
}

// GetOutboxStatus retrieves the outbox backlog
func (c *Client) GetOutboxStatus(ctx context.Context) (*OutboxStatus, error) {
	var result OutboxStatus
	err := c.makeRequest(ctx, "GET", "/outbox/status", nil, &result)
	return &result, err
}

// Private helper methods

func (c *Client) profilesPath(tenantID, id string) string {
	path := fmt.Sprintf("/tenants/%s/mapping-profiles", url.PathEscape(tenantID))
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return path
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	return c.do(ctx, method, fmt.Sprintf("%s/api/%s%s", c.baseURL, c.version, path), body, result)
}

// do sends the request. Statuses listed in accept are decoded into result
// instead of being reported as errors.
func (c *Client) do(ctx context.Context, method, url string, body interface{}, result interface{}, accept ...int) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 && !accepted(resp.StatusCode, accept) {
		apiErr := Error{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		return &apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

func accepted(status int, accept []int) bool {
	for _, s := range accept {
		if s == status {
			return true
		}
	}
	return false
}
