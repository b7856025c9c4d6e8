package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/connectors"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// finalizeTimeout bounds the terminal run update, which runs detached
	// from the caller's context
	finalizeTimeout = 10 * time.Second
)

// IngestRequest starts a new ingestion run
type IngestRequest struct {
	TenantID         string         `json:"tenant_id"`
	SourceType       string         `json:"source_type"`
	SourceConfig     models.JSONMap `json:"source_config"`
	MappingProfileID string         `json:"mapping_profile_id,omitempty"`
	DryRun           bool           `json:"dry_run"`
}

// ReplayRequest re-executes a stored run. DryRun defaults to the original run's flag.
type ReplayRequest struct {
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	DryRun   *bool  `json:"dry_run,omitempty"`
}

// IngestionResult summarizes a finished run
type IngestionResult struct {
	TenantID         string `json:"tenant_id"`
	RunID            string `json:"run_id"`
	DryRun           bool   `json:"dry_run"`
	ProcessedRecords int    `json:"processed_records"`
	RejectedRecords  int    `json:"rejected_records"`
}

// RejectionPage is one page of a run's rejections, ordered by row number
type RejectionPage struct {
	Items    []*models.IngestionRejection `json:"items"`
	Total    int64                        `json:"total"`
	Page     int                          `json:"page"`
	PageSize int                          `json:"page_size"`
}

// IngestionService orchestrates ingestion runs
type IngestionService struct {
	logger     *logger.Logger
	config     *config.Config
	registry   *connectors.Registry
	profiles   *MappingProfileService
	engine     *ValidationEngine
	tenants    TenantDirectory
	runs       repositories.IngestionRunRepository
	snapshots  repositories.SnapshotRepository
	rejections repositories.RejectionRepository
	canonical  repositories.CanonicalRepository
	outbox     repositories.OutboxRepository
	metrics    *Metrics
	now        func() time.Time
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	logger *logger.Logger,
	cfg *config.Config,
	registry *connectors.Registry,
	profiles *MappingProfileService,
	engine *ValidationEngine,
	tenants TenantDirectory,
	runs repositories.IngestionRunRepository,
	snapshots repositories.SnapshotRepository,
	rejections repositories.RejectionRepository,
	canonical repositories.CanonicalRepository,
	outbox repositories.OutboxRepository,
	metrics *Metrics,
) *IngestionService {
	return &IngestionService{
		logger:     logger,
		config:     cfg,
		registry:   registry,
		profiles:   profiles,
		engine:     engine,
		tenants:    tenants,
		runs:       runs,
		snapshots:  snapshots,
		rejections: rejections,
		canonical:  canonical,
		outbox:     outbox,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Ingest fetches records from a source and runs them through the pipeline.
// Runs that fail after creation return an *models.IngestionError carrying the run id.
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) (*IngestionResult, error) {
	if err := s.requireTenant(ctx, req.TenantID); err != nil {
		return nil, err
	}

	sourceType := connectors.NormalizeSourceType(req.SourceType)
	run := s.newRun(req.TenantID, sourceType, req.DryRun, optional(req.MappingProfileID), nil)
	log := s.logger.WithRun(run.TenantID, run.ID).WithField("source_type", sourceType)

	if err := s.start(ctx, run); err != nil {
		return nil, err
	}
	log.WithField("dry_run", run.DryRun).Info("Ingestion run started")

	connector, err := s.registry.Get(sourceType)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	profile, err := s.profiles.ResolveForRun(ctx, req.TenantID, req.MappingProfileID)
	if err != nil {
		return nil, s.fail(ctx, run, profileError(req.MappingProfileID, err))
	}
	if profile != nil && profile.SourceType != sourceType {
		return nil, s.fail(ctx, run, models.NewConfigurationError(
			"mapping profile %s is defined for %s sources, not %s", profile.ID, profile.SourceType, sourceType))
	}

	records, err := s.fetch(ctx, connector, req.SourceConfig)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	if err := s.saveSnapshot(ctx, run, redactSourceConfig(req.SourceConfig), records); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	return s.process(ctx, run, records, mappingsOf(profile))
}

// Replay re-executes the pipeline over the snapshot of a previous run. The
// connector is never invoked; the new run gets its own snapshot.
func (s *IngestionService) Replay(ctx context.Context, req ReplayRequest) (*IngestionResult, error) {
	original, err := s.runs.GetByID(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	if req.TenantID != "" && original.TenantID != req.TenantID {
		return nil, repositories.ErrNotFound
	}
	if err := s.requireTenant(ctx, original.TenantID); err != nil {
		return nil, err
	}

	snapshot, err := s.snapshots.GetByRunID(ctx, original.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot of run %s: %w", original.ID, err)
	}

	records, err := decodeSnapshotRecords(snapshot)
	if err != nil {
		return nil, err
	}

	dryRun := original.DryRun
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	run := s.newRun(original.TenantID, snapshot.SourceType, dryRun, snapshot.MappingProfileID, &original.ID)
	if err := s.start(ctx, run); err != nil {
		return nil, err
	}
	s.logger.WithRun(run.TenantID, run.ID).
		WithField("replay_of_run_id", original.ID).
		WithField("dry_run", dryRun).
		Info("Replay run started")

	var profileID string
	if snapshot.MappingProfileID != nil {
		profileID = *snapshot.MappingProfileID
	}
	profile, err := s.profiles.ResolveForReplay(ctx, run.TenantID, profileID)
	if err != nil {
		return nil, s.fail(ctx, run, profileError(profileID, err))
	}

	if err := s.saveSnapshot(ctx, run, snapshot.SourceConfig, records); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	return s.process(ctx, run, records, mappingsOf(profile))
}

// GetRun returns a run by id
func (s *IngestionService) GetRun(ctx context.Context, runID string) (*models.IngestionRun, error) {
	return s.runs.GetByID(ctx, runID)
}

// ListRuns returns the most recent runs of a tenant
func (s *IngestionService) ListRuns(ctx context.Context, tenantID string, limit int) ([]*models.IngestionRun, error) {
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.runs.ListByTenant(ctx, tenantID, clampLimit(limit))
}

// ListRejections returns one page of a run's rejections. Pages are 1-indexed.
func (s *IngestionService) ListRejections(ctx context.Context, runID string, page, pageSize int) (*RejectionPage, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	pageSize = clampLimit(pageSize)

	items, total, err := s.rejections.ListByRun(ctx, runID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	if items == nil {
		items = []*models.IngestionRejection{}
	}
	return &RejectionPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (s *IngestionService) requireTenant(ctx context.Context, tenantID string) error {
	ok, err := s.tenants.Exists(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to resolve tenant: %w", err)
	}
	if !ok {
		return ErrTenantNotFound
	}
	return nil
}

func (s *IngestionService) newRun(tenantID, sourceType string, dryRun bool, profileID, replayOf *string) *models.IngestionRun {
	return &models.IngestionRun{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		SourceType:       sourceType,
		MappingProfileID: profileID,
		Status:           models.RunStatusPending,
		DryRun:           dryRun,
		ReplayOfRunID:    replayOf,
		StartedAt:        s.now().UTC(),
	}
}

// start persists the run as PENDING and moves it to RUNNING
func (s *IngestionService) start(ctx context.Context, run *models.IngestionRun) error {
	if err := s.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("failed to create ingestion run: %w", err)
	}
	if err := transition(run, models.RunStatusRunning); err != nil {
		return err
	}
	if err := s.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("failed to start ingestion run %s: %w", run.ID, err)
	}
	return nil
}

// finalize records a terminal run state. A cancelled or expired caller
// context must not leave the run RUNNING.
func (s *IngestionService) finalize(ctx context.Context, run *models.IngestionRun) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	return s.runs.Update(ctx, run)
}

func transition(run *models.IngestionRun, next models.RunStatus) error {
	if !run.Status.CanTransitionTo(next) {
		return fmt.Errorf("ingestion run %s cannot move from %s to %s", run.ID, run.Status, next)
	}
	run.Status = next
	return nil
}

// fail ends the run as FAILED with the counts reached so far and returns the
// cause annotated with tenant and run.
func (s *IngestionService) fail(ctx context.Context, run *models.IngestionRun, cause error) error {
	var ie *models.IngestionError
	if errors.As(cause, &ie) {
		cause = ie.WithRun(run.TenantID, run.ID)
	} else {
		cause = fmt.Errorf("ingestion run %s of tenant %s failed: %w", run.ID, run.TenantID, cause)
	}

	ended := s.now().UTC()
	run.ErrorMessage = cause.Error()
	run.EndedAt = &ended
	if err := transition(run, models.RunStatusFailed); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.finalize(ctx, run); err != nil {
		s.logger.WithRun(run.TenantID, run.ID).WithError(err).Error("Failed to record failed ingestion run")
	}

	s.logger.WithRun(run.TenantID, run.ID).
		WithField("error_kind", models.KindOf(cause)).
		WithField("processed_records", run.ProcessedRecords).
		WithField("rejected_records", run.RejectedRecords).
		WithError(cause).
		Warn("Ingestion run failed")
	s.metrics.observeRun(run.SourceType, string(run.Status), run.DryRun, run.ProcessedRecords, run.RejectedRecords, ended.Sub(run.StartedAt).Seconds())
	return cause
}

// fetch loads records, turning connector panics and unclassified errors into fetch errors
func (s *IngestionService) fetch(ctx context.Context, connector connectors.Connector, cfg models.JSONMap) (records []models.SourceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = models.NewSourceFetchError(nil, "%s connector panicked: %v", connector.SourceType(), r)
		}
	}()

	if cfg == nil {
		cfg = models.JSONMap{}
	}
	records, err = connector.LoadRecords(ctx, cfg)
	if err != nil {
		if models.KindOf(err) == "" {
			err = models.NewSourceFetchError(err, "%s source could not be read", connector.SourceType())
		}
		return nil, err
	}
	return records, nil
}

func (s *IngestionService) saveSnapshot(ctx context.Context, run *models.IngestionRun, sourceConfig models.JSONMap, records []models.SourceRecord) error {
	if records == nil {
		records = []models.SourceRecord{}
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot records: %w", err)
	}
	snapshot := &models.IngestionSnapshot{
		RunID:            run.ID,
		TenantID:         run.TenantID,
		SourceType:       run.SourceType,
		MappingProfileID: run.MappingProfileID,
		SourceConfig:     sourceConfig.Clone(),
		SourceRecords:    encoded,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.snapshots.Create(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

func decodeSnapshotRecords(snapshot *models.IngestionSnapshot) ([]models.SourceRecord, error) {
	var records []models.SourceRecord
	if err := json.Unmarshal(snapshot.SourceRecords, &records); err != nil {
		return nil, fmt.Errorf("snapshot of run %s is unreadable: %w", snapshot.RunID, err)
	}
	return records, nil
}

// process maps, validates and persists every record, then enqueues outbox
// events and completes the run. A failing record never stops the loop.
func (s *IngestionService) process(ctx context.Context, run *models.IngestionRun, records []models.SourceRecord, mappings models.FieldMappings) (*IngestionResult, error) {
	log := s.logger.WithRun(run.TenantID, run.ID)
	profile := s.config.Validation.ProfileFor(run.TenantID)
	refs := newRunReferences(s.canonical)
	changes := newChangeSet()

	for _, record := range records {
		mapped := applyMapping(record, mappings)

		outcome, err := s.engine.Validate(ctx, run.TenantID, mapped, profile, refs)
		if err != nil {
			return nil, s.fail(ctx, run, fmt.Errorf("reference lookup for row %d: %w", record.RowNumber, err))
		}
		if !outcome.Valid {
			if err := s.reject(ctx, run, record, outcome.Reason); err != nil {
				return nil, s.fail(ctx, run, err)
			}
			continue
		}

		if !run.DryRun {
			change, err := s.persist(ctx, run, outcome.Record)
			if errors.Is(err, repositories.ErrConflict) {
				conflict := models.NewPersistenceConflictError(record.RowNumber, err).WithRun(run.TenantID, run.ID)
				if err := s.reject(ctx, run, record, conflict.Error()); err != nil {
					return nil, s.fail(ctx, run, err)
				}
				continue
			}
			if err != nil {
				return nil, s.fail(ctx, run, fmt.Errorf("persisting row %d: %w", record.RowNumber, err))
			}
			changes.add(change)
		}

		refs.accept(outcome.Record)
		run.ProcessedRecords++
	}

	if !run.DryRun && changes.len() > 0 {
		events, err := changes.events(run.TenantID, run.ID, s.now().UTC())
		if err != nil {
			return nil, s.fail(ctx, run, err)
		}
		if err := s.outbox.Enqueue(ctx, events); err != nil {
			return nil, s.fail(ctx, run, fmt.Errorf("failed to enqueue outbox events: %w", err))
		}
		s.metrics.observeEnqueued(len(events))
		log.WithField("events", len(events)).Debug("Enqueued outbox events")
	}

	ended := s.now().UTC()
	run.EndedAt = &ended
	if err := transition(run, models.RunStatusSucceeded); err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, run); err != nil {
		run.Status = models.RunStatusRunning
		run.EndedAt = nil
		return nil, s.fail(ctx, run, fmt.Errorf("failed to complete ingestion run: %w", err))
	}

	log.WithFields(logrus.Fields{
		"processed_records": run.ProcessedRecords,
		"rejected_records":  run.RejectedRecords,
		"dry_run":           run.DryRun,
	}).Info("Ingestion run succeeded")
	s.metrics.observeRun(run.SourceType, string(run.Status), run.DryRun, run.ProcessedRecords, run.RejectedRecords, ended.Sub(run.StartedAt).Seconds())

	return &IngestionResult{
		TenantID:         run.TenantID,
		RunID:            run.ID,
		DryRun:           run.DryRun,
		ProcessedRecords: run.ProcessedRecords,
		RejectedRecords:  run.RejectedRecords,
	}, nil
}

func (s *IngestionService) reject(ctx context.Context, run *models.IngestionRun, record models.SourceRecord, reason string) error {
	rejection := &models.IngestionRejection{
		ID:        uuid.New().String(),
		RunID:     run.ID,
		TenantID:  run.TenantID,
		RowNumber: record.RowNumber,
		Reason:    reason,
		RowData:   record.RawData,
		CreatedAt: s.now().UTC(),
	}
	if err := s.rejections.Create(ctx, rejection); err != nil {
		return fmt.Errorf("failed to record rejection of row %d: %w", record.RowNumber, err)
	}
	run.RejectedRecords++

	s.logger.WithRun(run.TenantID, run.ID).
		WithField("row_number", record.RowNumber).
		WithField("reason", reason).
		Debug("Record rejected")
	return nil
}

// persist upserts the canonical entity of record. A conflicting concurrent
// write is retried once before it is reported.
func (s *IngestionService) persist(ctx context.Context, run *models.IngestionRun, record ValidatedRecord) (aggregateChange, error) {
	change, err := s.upsert(ctx, run, record)
	if errors.Is(err, repositories.ErrConflict) {
		change, err = s.upsert(ctx, run, record)
	}
	return change, err
}

func (s *IngestionService) upsert(ctx context.Context, run *models.IngestionRun, record ValidatedRecord) (aggregateChange, error) {
	now := s.now().UTC()

	switch record.Kind {
	case RecordKindPerson:
		stored, err := s.canonical.UpsertPerson(ctx, &models.Person{
			ID:          uuid.New().String(),
			TenantID:    run.TenantID,
			ExternalRef: record.PersonRef,
			DisplayName: record.DisplayName,
			Email:       record.Email,
			Active:      record.Active,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return aggregateChange{}, err
		}
		return aggregateChange{aggregateType: models.AggregatePerson, eventType: models.EventPersonUpserted, id: stored.ID, entity: stored}, nil

	case RecordKindGroup:
		stored, err := s.canonical.UpsertGroup(ctx, &models.Group{
			ID:          uuid.New().String(),
			TenantID:    run.TenantID,
			ExternalRef: record.GroupRef,
			Type:        record.GroupType,
			Name:        record.GroupName,
			Active:      record.Active,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return aggregateChange{}, err
		}
		return aggregateChange{aggregateType: models.AggregateGroup, eventType: models.EventGroupUpserted, id: stored.ID, entity: stored}, nil

	default:
		stored, err := s.canonical.UpsertMembership(ctx, &models.Membership{
			ID:        uuid.New().String(),
			TenantID:  run.TenantID,
			PersonID:  record.PersonRef,
			GroupID:   record.GroupRef,
			Role:      record.Role,
			ValidFrom: record.ValidFrom,
			ValidTo:   record.ValidTo,
			Active:    record.Active,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return aggregateChange{}, err
		}
		return aggregateChange{aggregateType: models.AggregateMembership, eventType: models.EventMembershipUpserted, id: stored.ID, entity: stored}, nil
	}
}

func profileError(profileID string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return &models.IngestionError{Kind: models.ErrorKindConfiguration, Message: fmt.Sprintf("mapping profile %s not found", profileID), Err: err}
	case errors.Is(err, ErrProfileInactive):
		return &models.IngestionError{Kind: models.ErrorKindConfiguration, Message: fmt.Sprintf("mapping profile %s cannot be used", profileID), Err: err}
	}
	return err
}

func mappingsOf(profile *models.MappingProfile) models.FieldMappings {
	if profile == nil {
		return nil
	}
	return profile.FieldMappings
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var secretKeys = []string{"password", "token", "secret", "api_key", "apikey", "authorization"}

// redactSourceConfig masks credentials before the source config is stored
// with a snapshot. Replays never call the connector, so nothing is lost.
func redactSourceConfig(cfg models.JSONMap) models.JSONMap {
	if cfg == nil {
		return models.JSONMap{}
	}
	return redactMap(cfg)
}

func redactMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if isSecretKey(k) {
			out[k] = "***"
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = redactMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
