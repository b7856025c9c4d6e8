package repositories

import (
	"context"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// MappingProfileRepository defines the interface for mapping profile data operations
type MappingProfileRepository interface {
	Create(ctx context.Context, profile *models.MappingProfile) error
	GetByID(ctx context.Context, id string) (*models.MappingProfile, error)
	GetByTenantAndName(ctx context.Context, tenantID, name string) (*models.MappingProfile, error)
	ListByTenant(ctx context.Context, tenantID string, includeInactive bool) ([]*models.MappingProfile, error)
	Update(ctx context.Context, profile *models.MappingProfile) error
}

// MappingProfileEventRepository is the append-only mapping profile audit log
type MappingProfileEventRepository interface {
	Append(ctx context.Context, event *models.MappingProfileEvent) error
	ListByProfile(ctx context.Context, profileID string) ([]*models.MappingProfileEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// IngestionRunRepository defines the interface for ingestion run data operations
type IngestionRunRepository interface {
	Create(ctx context.Context, run *models.IngestionRun) error
	Update(ctx context.Context, run *models.IngestionRun) error
	GetByID(ctx context.Context, id string) (*models.IngestionRun, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.IngestionRun, error)
}

// SnapshotRepository stores the immutable input of every run
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.IngestionSnapshot) error
	GetByRunID(ctx context.Context, runID string) (*models.IngestionSnapshot, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RejectionRepository is the append-only log of rejected records
type RejectionRepository interface {
	Create(ctx context.Context, rejection *models.IngestionRejection) error
	ListByRun(ctx context.Context, runID string, offset, limit int) ([]*models.IngestionRejection, int64, error)
}

// CanonicalRepository upserts canonical entities by natural key. Upserts are
// atomic per record and return the stored row.
type CanonicalRepository interface {
	UpsertPerson(ctx context.Context, person *models.Person) (*models.Person, error)
	UpsertGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	UpsertMembership(ctx context.Context, membership *models.Membership) (*models.Membership, error)
	FindPerson(ctx context.Context, tenantID, externalRef string) (*models.Person, error)
	FindGroup(ctx context.Context, tenantID, externalRef string) (*models.Group, error)
	FindMembership(ctx context.Context, tenantID, personID, groupID, role string) (*models.Membership, error)
}

// OutboxRepository persists integration events and their delivery state
type OutboxRepository interface {
	Enqueue(ctx context.Context, events []*models.OutboxEvent) error
	// ClaimDue leases up to limit due events to owner, oldest first.
	ClaimDue(ctx context.Context, owner string, now time.Time, leaseTTL time.Duration, limit int) ([]*models.OutboxEvent, error)
	// MarkPublished and MarkFailed return ErrConflict when owner no longer holds the lease.
	MarkPublished(ctx context.Context, id, owner string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id, owner string, update OutboxFailure) error
	GetByID(ctx context.Context, id string) (*models.OutboxEvent, error)
	CountByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error)
	DeleteOlderThan(ctx context.Context, status models.OutboxStatus, cutoff time.Time) (int64, error)
}

// OutboxFailure is the resolution of a failed delivery attempt
type OutboxFailure struct {
	Status        models.OutboxStatus
	AttemptCount  int
	NextAttemptAt *time.Time
	LastError     string
	UpdatedAt     time.Time
}
