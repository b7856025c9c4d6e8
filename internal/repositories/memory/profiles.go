package memory

import (
	"context"
	"sort"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
)

type mappingProfileStore struct {
	*Store
}

func (s *mappingProfileStore) Create(ctx context.Context, profile *models.MappingProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.ID]; exists {
		return repositories.ErrConflict
	}
	if s.nameTaken(profile.TenantID, profile.Name, "") {
		return repositories.ErrConflict
	}
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

func (s *mappingProfileStore) nameTaken(tenantID, name, exceptID string) bool {
	for id, p := range s.profiles {
		if id != exceptID && p.TenantID == tenantID && p.Name == name {
			return true
		}
	}
	return false
}

func (s *mappingProfileStore) GetByID(ctx context.Context, id string) (*models.MappingProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *mappingProfileStore) GetByTenantAndName(ctx context.Context, tenantID, name string) (*models.MappingProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.TenantID == tenantID && p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *mappingProfileStore) ListByTenant(ctx context.Context, tenantID string, includeInactive bool) ([]*models.MappingProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.MappingProfile
	for _, p := range s.profiles {
		if p.TenantID != tenantID || (!includeInactive && !p.IsActive) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *mappingProfileStore) Update(ctx context.Context, profile *models.MappingProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.ID]; !ok {
		return repositories.ErrNotFound
	}
	if s.nameTaken(profile.TenantID, profile.Name, profile.ID) {
		return repositories.ErrConflict
	}
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

type mappingProfileEventStore struct {
	*Store
}

func (s *mappingProfileEventStore) Append(ctx context.Context, event *models.MappingProfileEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	copied.Payload = append([]byte(nil), event.Payload...)
	s.profileEvents = append(s.profileEvents, &copied)
	return nil
}

func (s *mappingProfileEventStore) ListByProfile(ctx context.Context, profileID string) ([]*models.MappingProfileEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.MappingProfileEvent
	for _, e := range s.profileEvents {
		if e.ProfileID == profileID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *mappingProfileEventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.profileEvents[:0]
	var deleted int64
	for _, e := range s.profileEvents {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.profileEvents = kept
	return deleted, nil
}
