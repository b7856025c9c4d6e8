package memory

import (
	"context"
	"sort"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
)

type outboxStore struct {
	*Store
}

func sortedOutbox(rows map[string]*outboxRow) []*outboxRow {
	out := make([]*outboxRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].event.CreatedAt.Equal(out[j].event.CreatedAt) {
			return out[i].event.CreatedAt.Before(out[j].event.CreatedAt)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (s *outboxStore) Enqueue(ctx context.Context, events []*models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if _, exists := s.outbox[e.ID]; exists {
			return repositories.ErrConflict
		}
	}
	for _, e := range events {
		copied := *e
		copied.Payload = append([]byte(nil), e.Payload...)
		s.outbox[e.ID] = &outboxRow{seq: s.next(), event: copied}
	}
	return nil
}

func (s *outboxStore) ClaimDue(ctx context.Context, owner string, now time.Time, leaseTTL time.Duration, limit int) ([]*models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leaseExpiresAt := now.Add(leaseTTL)
	var claimed []*models.OutboxEvent
	for _, row := range sortedOutbox(s.outbox) {
		if limit > 0 && len(claimed) >= limit {
			break
		}
		if !row.event.IsDue(now) {
			continue
		}
		if row.event.Status == models.OutboxStatusDispatching {
			row.event.AttemptCount++
			row.event.LastError = models.LeaseExpiredError
		}
		row.event.Status = models.OutboxStatusDispatching
		row.event.LeaseOwner = owner
		row.event.LeaseExpiresAt = &leaseExpiresAt
		row.event.NextAttemptAt = nil
		row.event.UpdatedAt = now
		event := row.event
		claimed = append(claimed, &event)
	}
	return claimed, nil
}

func (s *outboxStore) leased(id, owner string) (*outboxRow, error) {
	row, ok := s.outbox[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if row.event.Status != models.OutboxStatusDispatching || row.event.LeaseOwner != owner {
		return nil, repositories.ErrConflict
	}
	return row, nil
}

func (s *outboxStore) MarkPublished(ctx context.Context, id, owner string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.leased(id, owner)
	if err != nil {
		return err
	}
	row.event.Status = models.OutboxStatusPublished
	row.event.PublishedAt = &publishedAt
	row.event.LeaseOwner = ""
	row.event.LeaseExpiresAt = nil
	row.event.UpdatedAt = publishedAt
	return nil
}

func (s *outboxStore) MarkFailed(ctx context.Context, id, owner string, update repositories.OutboxFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.leased(id, owner)
	if err != nil {
		return err
	}
	row.event.Status = update.Status
	row.event.AttemptCount = update.AttemptCount
	row.event.NextAttemptAt = update.NextAttemptAt
	row.event.LastError = update.LastError
	row.event.LeaseOwner = ""
	row.event.LeaseExpiresAt = nil
	row.event.UpdatedAt = update.UpdatedAt
	return nil
}

func (s *outboxStore) GetByID(ctx context.Context, id string) (*models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	event := row.event
	return &event, nil
}

func (s *outboxStore) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.OutboxStatus]int64)
	for _, row := range s.outbox {
		counts[row.event.Status]++
	}
	return counts, nil
}

func (s *outboxStore) DeleteOlderThan(ctx context.Context, status models.OutboxStatus, cutoff time.Time) (int64, error) {
	if !status.IsTerminal() {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, row := range s.outbox {
		if row.event.Status == status && row.event.UpdatedAt.Before(cutoff) {
			delete(s.outbox, id)
			deleted++
		}
	}
	return deleted, nil
}
