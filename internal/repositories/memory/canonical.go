package memory

import (
	"context"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
)

type canonicalStore struct {
	*Store
}

func (s *canonicalStore) UpsertPerson(ctx context.Context, person *models.Person) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := naturalKey{person.TenantID, person.ExternalRef}
	if existing, ok := s.people[key]; ok {
		existing.DisplayName = person.DisplayName
		existing.Email = person.Email
		existing.Active = person.Active
		existing.UpdatedAt = person.UpdatedAt
		stored := *existing
		return &stored, nil
	}
	stored := *person
	s.people[key] = &stored
	out := stored
	return &out, nil
}

func (s *canonicalStore) UpsertGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := naturalKey{group.TenantID, group.ExternalRef}
	if existing, ok := s.groups[key]; ok {
		existing.Type = group.Type
		existing.Name = group.Name
		existing.Active = group.Active
		existing.UpdatedAt = group.UpdatedAt
		stored := *existing
		return &stored, nil
	}
	stored := *group
	s.groups[key] = &stored
	out := stored
	return &out, nil
}

func (s *canonicalStore) UpsertMembership(ctx context.Context, membership *models.Membership) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{membership.TenantID, membership.PersonID, membership.GroupID, membership.Role}
	if existing, ok := s.memberships[key]; ok {
		existing.ValidFrom = membership.ValidFrom
		existing.ValidTo = membership.ValidTo
		existing.Active = membership.Active
		existing.UpdatedAt = membership.UpdatedAt
		stored := *existing
		return &stored, nil
	}
	stored := *membership
	s.memberships[key] = &stored
	out := stored
	return &out, nil
}

func (s *canonicalStore) FindPerson(ctx context.Context, tenantID, externalRef string) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	person, ok := s.people[naturalKey{tenantID, externalRef}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *person
	return &out, nil
}

func (s *canonicalStore) FindGroup(ctx context.Context, tenantID, externalRef string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[naturalKey{tenantID, externalRef}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *group
	return &out, nil
}

func (s *canonicalStore) FindMembership(ctx context.Context, tenantID, personID, groupID, role string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership, ok := s.memberships[membershipKey{tenantID, personID, groupID, role}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *membership
	return &out, nil
}
