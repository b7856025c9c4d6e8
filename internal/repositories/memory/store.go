// Package memory provides in-process implementations of the repository
// interfaces. Every store shares one mutex so upserts and outbox claims are
// atomic, mirroring the row locks of the SQL stores.
package memory

import (
	"sync"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
)

// Store holds all in-memory tables
type Store struct {
	mu  sync.Mutex
	seq int64

	profiles      map[string]*models.MappingProfile
	profileEvents []*models.MappingProfileEvent
	runs          map[string]*runRow
	snapshots     map[string]*models.IngestionSnapshot
	rejections    []*rejectionRow
	people        map[naturalKey]*models.Person
	groups        map[naturalKey]*models.Group
	memberships   map[membershipKey]*models.Membership
	outbox        map[string]*outboxRow
}

type naturalKey struct {
	tenantID    string
	externalRef string
}

type membershipKey struct {
	tenantID string
	personID string
	groupID  string
	role     string
}

type runRow struct {
	seq int64
	run models.IngestionRun
}

type rejectionRow struct {
	seq       int64
	rejection models.IngestionRejection
}

type outboxRow struct {
	seq   int64
	event models.OutboxEvent
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		profiles:    make(map[string]*models.MappingProfile),
		runs:        make(map[string]*runRow),
		snapshots:   make(map[string]*models.IngestionSnapshot),
		people:      make(map[naturalKey]*models.Person),
		groups:      make(map[naturalKey]*models.Group),
		memberships: make(map[membershipKey]*models.Membership),
		outbox:      make(map[string]*outboxRow),
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// MappingProfiles returns the mapping profile repository view of the store
func (s *Store) MappingProfiles() repositories.MappingProfileRepository {
	return &mappingProfileStore{s}
}

// MappingProfileEvents returns the mapping profile event repository view of the store
func (s *Store) MappingProfileEvents() repositories.MappingProfileEventRepository {
	return &mappingProfileEventStore{s}
}

// Runs returns the ingestion run repository view of the store
func (s *Store) Runs() repositories.IngestionRunRepository {
	return &runStore{s}
}

// Snapshots returns the snapshot repository view of the store
func (s *Store) Snapshots() repositories.SnapshotRepository {
	return &snapshotStore{s}
}

// Rejections returns the rejection repository view of the store
func (s *Store) Rejections() repositories.RejectionRepository {
	return &rejectionStore{s}
}

// Canonical returns the canonical entity repository view of the store
func (s *Store) Canonical() repositories.CanonicalRepository {
	return &canonicalStore{s}
}

// Outbox returns the outbox repository view of the store
func (s *Store) Outbox() repositories.OutboxRepository {
	return &outboxStore{s}
}

// Counts reports the number of canonical rows, for tests and diagnostics
func (s *Store) Counts() (people, groups, memberships, outbox int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.people), len(s.groups), len(s.memberships), len(s.outbox)
}

// OutboxEvents returns copies of all outbox events in insertion order
func (s *Store) OutboxEvents() []*models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := sortedOutbox(s.outbox)
	out := make([]*models.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		event := row.event
		out = append(out, &event)
	}
	return out
}
