package services

import (
	"context"
	"errors"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
)

// runReferences overlays the natural keys accepted earlier in a run on top of
// the canonical store, so a dry run sees the same references a real run would.
type runReferences struct {
	canonical repositories.CanonicalRepository
	people    map[string]ReferenceState
	groups    map[string]ReferenceState
}

func newRunReferences(canonical repositories.CanonicalRepository) *runReferences {
	return &runReferences{
		canonical: canonical,
		people:    make(map[string]ReferenceState),
		groups:    make(map[string]ReferenceState),
	}
}

func (r *runReferences) LookupPerson(ctx context.Context, tenantID, externalRef string) (ReferenceState, error) {
	if state, ok := r.people[externalRef]; ok {
		return state, nil
	}
	person, err := r.canonical.FindPerson(ctx, tenantID, externalRef)
	if errors.Is(err, repositories.ErrNotFound) {
		return ReferenceState{}, nil
	}
	if err != nil {
		return ReferenceState{}, err
	}
	return ReferenceState{Exists: true, Active: person.Active}, nil
}

func (r *runReferences) LookupGroup(ctx context.Context, tenantID, externalRef string) (ReferenceState, error) {
	if state, ok := r.groups[externalRef]; ok {
		return state, nil
	}
	group, err := r.canonical.FindGroup(ctx, tenantID, externalRef)
	if errors.Is(err, repositories.ErrNotFound) {
		return ReferenceState{}, nil
	}
	if err != nil {
		return ReferenceState{}, err
	}
	return ReferenceState{Exists: true, Active: group.Active, Type: group.Type}, nil
}

// accept records the state an accepted record leaves behind
func (r *runReferences) accept(record ValidatedRecord) {
	switch record.Kind {
	case RecordKindPerson:
		r.people[record.PersonRef] = ReferenceState{Exists: true, Active: record.Active}
	case RecordKindGroup:
		r.groups[record.GroupRef] = ReferenceState{Exists: true, Active: record.Active, Type: record.GroupType}
	}
}
