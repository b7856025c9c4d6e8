package repositories

import (
	"context"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/database"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"gorm.io/gorm/clause"
)

// canonicalRepository implements CanonicalRepository
type canonicalRepository struct {
	db *database.Connection
}

// NewCanonicalRepository creates a new canonical entity repository
func NewCanonicalRepository(db *database.Connection) CanonicalRepository {
	return &canonicalRepository{db: db}
}

// UpsertPerson inserts or updates a person by (tenant_id, external_ref)
func (r *canonicalRepository) UpsertPerson(ctx context.Context, person *models.Person) (*models.Person, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "active", "updated_at"}),
	}).Create(person).Error
	if err != nil {
		return nil, translateError(err)
	}
	return r.FindPerson(ctx, person.TenantID, person.ExternalRef)
}

// UpsertGroup inserts or updates a group by (tenant_id, external_ref)
func (r *canonicalRepository) UpsertGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "name", "active", "updated_at"}),
	}).Create(group).Error
	if err != nil {
		return nil, translateError(err)
	}
	return r.FindGroup(ctx, group.TenantID, group.ExternalRef)
}

// UpsertMembership inserts or updates a membership by (tenant_id, person_id, group_id, role)
func (r *canonicalRepository) UpsertMembership(ctx context.Context, membership *models.Membership) (*models.Membership, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"}, {Name: "person_id"}, {Name: "group_id"}, {Name: "role"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"valid_from", "valid_to", "active", "updated_at"}),
	}).Create(membership).Error
	if err != nil {
		return nil, translateError(err)
	}
	return r.FindMembership(ctx, membership.TenantID, membership.PersonID, membership.GroupID, membership.Role)
}

// FindPerson retrieves a person by natural key
func (r *canonicalRepository) FindPerson(ctx context.Context, tenantID, externalRef string) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_ref = ?", tenantID, externalRef).
		First(&person).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &person, nil
}

// FindGroup retrieves a group by natural key
func (r *canonicalRepository) FindGroup(ctx context.Context, tenantID, externalRef string) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_ref = ?", tenantID, externalRef).
		First(&group).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &group, nil
}

// FindMembership retrieves a membership by natural key
func (r *canonicalRepository) FindMembership(ctx context.Context, tenantID, personID, groupID, role string) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND person_id = ? AND group_id = ? AND role = ?", tenantID, personID, groupID, role).
		First(&membership).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &membership, nil
}
