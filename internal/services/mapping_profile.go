package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/connectors"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"

	"github.com/google/uuid"
)

// CreateMappingProfileRequest describes a new mapping profile
type CreateMappingProfileRequest struct {
	TenantID      string            `json:"tenant_id"`
	Name          string            `json:"name"`
	SourceType    string            `json:"source_type"`
	FieldMappings map[string]string `json:"field_mappings"`
	Actor         string            `json:"actor"`
}

// UpdateMappingProfileRequest replaces the mutable fields of a profile
type UpdateMappingProfileRequest struct {
	TenantID      string            `json:"tenant_id"`
	ProfileID     string            `json:"profile_id"`
	Name          string            `json:"name"`
	SourceType    string            `json:"source_type"`
	FieldMappings map[string]string `json:"field_mappings"`
	IsActive      *bool             `json:"is_active,omitempty"`
	Actor         string            `json:"actor"`
}

// MappingProfileService manages tenant mapping profiles and their audit trail
type MappingProfileService struct {
	logger        *logger.Logger
	profiles      repositories.MappingProfileRepository
	events        repositories.MappingProfileEventRepository
	registry      *connectors.Registry
	tenants       TenantDirectory
	cache         ProfileCache
	validationSvc *models.ValidationService
	now           func() time.Time
}

// NewMappingProfileService creates a new mapping profile service. A nil cache disables caching.
func NewMappingProfileService(
	logger *logger.Logger,
	profiles repositories.MappingProfileRepository,
	events repositories.MappingProfileEventRepository,
	registry *connectors.Registry,
	tenants TenantDirectory,
	cache ProfileCache,
	validationSvc *models.ValidationService,
) *MappingProfileService {
	return &MappingProfileService{
		logger:        logger,
		profiles:      profiles,
		events:        events,
		registry:      registry,
		tenants:       tenants,
		cache:         cache,
		validationSvc: validationSvc,
		now:           time.Now,
	}
}

// ValidateMapping normalizes and checks a candidate mapping without persisting it
func (s *MappingProfileService) ValidateMapping(sourceType string, fieldMappings map[string]string) MappingValidationResult {
	result := normalizeMappings(fieldMappings)
	if !s.registry.Has(sourceType) {
		result.Errors = append([]string{fmt.Sprintf("source type %q is not supported", sourceType)}, result.Errors...)
		result.Valid = false
	}
	return result
}

// CreateProfile creates a mapping profile and records a CREATED event
func (s *MappingProfileService) CreateProfile(ctx context.Context, req CreateMappingProfileRequest) (*models.MappingProfile, error) {
	s.logger.WithTenant(req.TenantID).
		WithField("profile_name", req.Name).
		Info("Creating mapping profile")

	if err := s.requireTenant(ctx, req.TenantID); err != nil {
		return nil, err
	}

	result := s.ValidateMapping(req.SourceType, req.FieldMappings)
	if !result.Valid {
		return nil, invalidMappingError(result)
	}

	now := s.now().UTC()
	profile := &models.MappingProfile{
		ID:            uuid.New().String(),
		TenantID:      req.TenantID,
		Name:          strings.TrimSpace(req.Name),
		SourceType:    connectors.NormalizeSourceType(req.SourceType),
		FieldMappings: models.FieldMappings(result.Normalized),
		IsActive:      true,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.validationSvc.ValidateStruct(profile); err != nil {
		return nil, models.NewConfigurationError("%v", err)
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrDuplicateProfileName
		}
		return nil, fmt.Errorf("failed to create mapping profile: %w", err)
	}

	if err := s.appendEvent(ctx, models.MappingProfileCreated, req.Actor, nil, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile replaces name, source type and mappings, bumping the version
func (s *MappingProfileService) UpdateProfile(ctx context.Context, req UpdateMappingProfileRequest) (*models.MappingProfile, error) {
	s.logger.WithTenant(req.TenantID).
		WithField("profile_id", req.ProfileID).
		Info("Updating mapping profile")

	before, err := s.GetProfile(ctx, req.TenantID, req.ProfileID)
	if err != nil {
		return nil, err
	}

	sourceType := req.SourceType
	if strings.TrimSpace(sourceType) == "" {
		sourceType = before.SourceType
	}
	mappings := req.FieldMappings
	if mappings == nil {
		mappings = before.FieldMappings
	}
	result := s.ValidateMapping(sourceType, mappings)
	if !result.Valid {
		return nil, invalidMappingError(result)
	}

	after := before.Clone()
	if name := strings.TrimSpace(req.Name); name != "" {
		after.Name = name
	}
	after.SourceType = connectors.NormalizeSourceType(sourceType)
	after.FieldMappings = models.FieldMappings(result.Normalized)
	if req.IsActive != nil {
		after.IsActive = *req.IsActive
	}
	after.Version = before.Version + 1
	after.UpdatedAt = s.now().UTC()

	if err := s.validationSvc.ValidateStruct(after); err != nil {
		return nil, models.NewConfigurationError("%v", err)
	}

	if err := s.profiles.Update(ctx, after); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrDuplicateProfileName
		}
		return nil, fmt.Errorf("failed to update mapping profile: %w", err)
	}
	s.invalidate(ctx, after.ID)

	if err := s.appendEvent(ctx, models.MappingProfileUpdated, req.Actor, before, after); err != nil {
		return nil, err
	}
	return after, nil
}

// DeactivateProfile marks a profile inactive. Deactivating an inactive profile is a no-op.
func (s *MappingProfileService) DeactivateProfile(ctx context.Context, tenantID, profileID, actor string) (*models.MappingProfile, error) {
	s.logger.WithTenant(tenantID).
		WithField("profile_id", profileID).
		Info("Deactivating mapping profile")

	before, err := s.GetProfile(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	if !before.IsActive {
		return before, nil
	}

	after := before.Clone()
	after.IsActive = false
	after.Version = before.Version + 1
	after.UpdatedAt = s.now().UTC()

	if err := s.profiles.Update(ctx, after); err != nil {
		return nil, fmt.Errorf("failed to deactivate mapping profile: %w", err)
	}
	s.invalidate(ctx, after.ID)

	if err := s.appendEvent(ctx, models.MappingProfileDeactivated, actor, before, after); err != nil {
		return nil, err
	}
	return after, nil
}

// GetProfile returns a tenant-owned profile. Profiles of other tenants are reported as not found.
func (s *MappingProfileService) GetProfile(ctx context.Context, tenantID, profileID string) (*models.MappingProfile, error) {
	profile, err := s.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.TenantID != tenantID {
		return nil, repositories.ErrNotFound
	}
	return profile, nil
}

// ListProfiles lists a tenant's profiles
func (s *MappingProfileService) ListProfiles(ctx context.Context, tenantID string, includeInactive bool) ([]*models.MappingProfile, error) {
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.profiles.ListByTenant(ctx, tenantID, includeInactive)
}

// ListProfileEvents returns the audit trail of a tenant-owned profile, oldest first
func (s *MappingProfileService) ListProfileEvents(ctx context.Context, tenantID, profileID string) ([]*models.MappingProfileEvent, error) {
	if _, err := s.GetProfile(ctx, tenantID, profileID); err != nil {
		return nil, err
	}
	return s.events.ListByProfile(ctx, profileID)
}

// ResolveForRun returns the mappings to apply to a new run. An empty profile
// id selects the identity mapping, reported as nil.
func (s *MappingProfileService) ResolveForRun(ctx context.Context, tenantID, profileID string) (*models.MappingProfile, error) {
	if profileID == "" {
		return nil, nil
	}
	profile, err := s.GetProfile(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, ErrProfileInactive
	}
	return profile, nil
}

// ResolveForReplay returns the profile of a historic run; the active flag is ignored.
func (s *MappingProfileService) ResolveForReplay(ctx context.Context, tenantID, profileID string) (*models.MappingProfile, error) {
	if profileID == "" {
		return nil, nil
	}
	return s.GetProfile(ctx, tenantID, profileID)
}

func (s *MappingProfileService) load(ctx context.Context, profileID string) (*models.MappingProfile, error) {
	if s.cache != nil {
		profile, err := s.cache.GetMappingProfile(ctx, profileID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.WithError(err).WithField("profile_id", profileID).Warn("Mapping profile cache unavailable")
		}
	}

	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetMappingProfile(ctx, profile); err != nil {
			s.logger.WithError(err).WithField("profile_id", profileID).Warn("Failed to cache mapping profile")
		}
	}
	return profile, nil
}

func (s *MappingProfileService) invalidate(ctx context.Context, profileID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateMappingProfile(ctx, profileID); err != nil {
		s.logger.WithError(err).WithField("profile_id", profileID).Warn("Failed to invalidate cached mapping profile")
	}
}

func (s *MappingProfileService) requireTenant(ctx context.Context, tenantID string) error {
	ok, err := s.tenants.Exists(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to resolve tenant: %w", err)
	}
	if !ok {
		return ErrTenantNotFound
	}
	return nil
}

func (s *MappingProfileService) appendEvent(ctx context.Context, eventType models.MappingProfileEventType, actor string, before, after *models.MappingProfile) error {
	if strings.TrimSpace(actor) == "" {
		actor = "system"
	}
	payload, err := json.Marshal(map[string]interface{}{
		"before": before,
		"after":  after,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mapping profile event: %w", err)
	}

	event := &models.MappingProfileEvent{
		ID:        uuid.New().String(),
		ProfileID: after.ID,
		TenantID:  after.TenantID,
		EventType: eventType,
		Actor:     actor,
		Payload:   payload,
		CreatedAt: after.UpdatedAt,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append mapping profile event: %w", err)
	}
	return nil
}

func invalidMappingError(result MappingValidationResult) error {
	return models.NewConfigurationError("invalid field mappings: %s", strings.Join(result.Errors, "; "))
}
