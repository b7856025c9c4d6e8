package repositories

import (
	"context"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/database"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// ingestionRunRepository implements IngestionRunRepository
type ingestionRunRepository struct {
	db *database.Connection
}

// NewIngestionRunRepository creates a new ingestion run repository
func NewIngestionRunRepository(db *database.Connection) IngestionRunRepository {
	return &ingestionRunRepository{db: db}
}

// Create creates a new run
func (r *ingestionRunRepository) Create(ctx context.Context, run *models.IngestionRun) error {
	return translateError(r.db.WithContext(ctx).Create(run).Error)
}

// Update saves run status and counters
func (r *ingestionRunRepository) Update(ctx context.Context, run *models.IngestionRun) error {
	return translateError(r.db.WithContext(ctx).Save(run).Error)
}

// GetByID retrieves a run by ID
func (r *ingestionRunRepository) GetByID(ctx context.Context, id string) (*models.IngestionRun, error) {
	var run models.IngestionRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &run, nil
}

// ListByTenant retrieves the most recent runs of a tenant
func (r *ingestionRunRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.IngestionRun, error) {
	var runs []*models.IngestionRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// snapshotRepository implements SnapshotRepository
type snapshotRepository struct {
	db *database.Connection
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.Connection) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Create inserts the snapshot of a run; a second snapshot for the same run is a conflict
func (r *snapshotRepository) Create(ctx context.Context, snapshot *models.IngestionSnapshot) error {
	return translateError(r.db.WithContext(ctx).Create(snapshot).Error)
}

// GetByRunID retrieves the snapshot of a run
func (r *snapshotRepository) GetByRunID(ctx context.Context, runID string) (*models.IngestionSnapshot, error) {
	var snapshot models.IngestionSnapshot
	if err := r.db.WithContext(ctx).First(&snapshot, "run_id = ?", runID).Error; err != nil {
		return nil, translateError(err)
	}
	return &snapshot, nil
}

// DeleteOlderThan removes snapshots created before cutoff
func (r *snapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IngestionSnapshot{})
	return result.RowsAffected, result.Error
}

// rejectionRepository implements RejectionRepository
type rejectionRepository struct {
	db *database.Connection
}

// NewRejectionRepository creates a new rejection repository
func NewRejectionRepository(db *database.Connection) RejectionRepository {
	return &rejectionRepository{db: db}
}

// Create appends a rejection
func (r *rejectionRepository) Create(ctx context.Context, rejection *models.IngestionRejection) error {
	return translateError(r.db.WithContext(ctx).Create(rejection).Error)
}

// ListByRun retrieves a page of rejections ordered by row number, with the total count
func (r *rejectionRepository) ListByRun(ctx context.Context, runID string, offset, limit int) ([]*models.IngestionRejection, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.IngestionRejection{}).Where("run_id = ?", runID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rejections []*models.IngestionRejection
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("row_number ASC, created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&rejections).Error
	return rejections, total, err
}
