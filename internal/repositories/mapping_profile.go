package repositories

import (
	"context"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/database"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// mappingProfileRepository implements MappingProfileRepository
type mappingProfileRepository struct {
	db *database.Connection
}

// NewMappingProfileRepository creates a new mapping profile repository
func NewMappingProfileRepository(db *database.Connection) MappingProfileRepository {
	return &mappingProfileRepository{db: db}
}

// Create creates a new mapping profile
func (r *mappingProfileRepository) Create(ctx context.Context, profile *models.MappingProfile) error {
	return translateError(r.db.WithContext(ctx).Create(profile).Error)
}

// GetByID retrieves a mapping profile by ID
func (r *mappingProfileRepository) GetByID(ctx context.Context, id string) (*models.MappingProfile, error) {
	var profile models.MappingProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &profile, nil
}

// GetByTenantAndName retrieves a mapping profile by its unique name within a tenant
func (r *mappingProfileRepository) GetByTenantAndName(ctx context.Context, tenantID, name string) (*models.MappingProfile, error) {
	var profile models.MappingProfile
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&profile).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &profile, nil
}

// ListByTenant retrieves the tenant's profiles ordered by name
func (r *mappingProfileRepository) ListByTenant(ctx context.Context, tenantID string, includeInactive bool) ([]*models.MappingProfile, error) {
	var profiles []*models.MappingProfile
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&profiles).Error
	return profiles, err
}

// Update saves all fields of an existing profile
func (r *mappingProfileRepository) Update(ctx context.Context, profile *models.MappingProfile) error {
	return translateError(r.db.WithContext(ctx).Save(profile).Error)
}

// mappingProfileEventRepository implements MappingProfileEventRepository
type mappingProfileEventRepository struct {
	db *database.Connection
}

// NewMappingProfileEventRepository creates a new mapping profile event repository
func NewMappingProfileEventRepository(db *database.Connection) MappingProfileEventRepository {
	return &mappingProfileEventRepository{db: db}
}

// Append inserts an event; events are never updated
func (r *mappingProfileEventRepository) Append(ctx context.Context, event *models.MappingProfileEvent) error {
	return translateError(r.db.WithContext(ctx).Create(event).Error)
}

// ListByProfile retrieves a profile's events oldest first
func (r *mappingProfileEventRepository) ListByProfile(ctx context.Context, profileID string) ([]*models.MappingProfileEvent, error) {
	var events []*models.MappingProfileEvent
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// DeleteOlderThan removes events created before cutoff
func (r *mappingProfileEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.MappingProfileEvent{})
	return result.RowsAffected, result.Error
}
