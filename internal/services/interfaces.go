package services

import (
	"context"
	"errors"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

var (
	// ErrTenantNotFound is returned when an operation names an unknown tenant
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrProfileInactive is returned when an inactive mapping profile is used for a new run
	ErrProfileInactive = errors.New("mapping profile is inactive")
	// ErrDuplicateProfileName is returned when a tenant already has a profile with the same name
	ErrDuplicateProfileName = errors.New("mapping profile name already exists for tenant")
	// ErrSnapshotNotFound is returned when a run has no stored snapshot to replay
	ErrSnapshotNotFound = errors.New("ingestion snapshot not found")
)

// ProfileCache caches resolved mapping profiles by id
type ProfileCache interface {
	GetMappingProfile(ctx context.Context, id string) (*models.MappingProfile, error)
	SetMappingProfile(ctx context.Context, profile *models.MappingProfile) error
	InvalidateMappingProfile(ctx context.Context, id string) error
}

// TenantDirectory answers whether a tenant exists
type TenantDirectory interface {
	Exists(ctx context.Context, tenantID string) (bool, error)
}

// ReferenceLookup is a read-only view of canonical people and groups
type ReferenceLookup interface {
	LookupPerson(ctx context.Context, tenantID, externalRef string) (ReferenceState, error)
	LookupGroup(ctx context.Context, tenantID, externalRef string) (ReferenceState, error)
}

// ReferenceState describes a referenced canonical entity
type ReferenceState struct {
	Exists bool
	Active bool
	Type   string
}

// Transport delivers one outbox event to an external system
type Transport interface {
	Name() string
	Publish(ctx context.Context, event *models.OutboxEvent) error
}
