package memory

import (
	"context"
	"sort"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/repositories"
)

type runStore struct {
	*Store
}

func (s *runStore) Create(ctx context.Context, run *models.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return repositories.ErrConflict
	}
	s.runs[run.ID] = &runRow{seq: s.next(), run: *run}
	return nil
}

func (s *runStore) Update(ctx context.Context, run *models.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.runs[run.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	row.run = *run
	return nil
}

func (s *runStore) GetByID(ctx context.Context, id string) (*models.IngestionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.runs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	run := row.run
	return &run, nil
}

func (s *runStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.IngestionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []*runRow
	for _, row := range s.runs {
		if row.run.TenantID == tenantID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].run.StartedAt.Equal(rows[j].run.StartedAt) {
			return rows[i].run.StartedAt.After(rows[j].run.StartedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]*models.IngestionRun, 0, len(rows))
	for _, row := range rows {
		run := row.run
		out = append(out, &run)
	}
	return out, nil
}

type snapshotStore struct {
	*Store
}

func (s *snapshotStore) Create(ctx context.Context, snapshot *models.IngestionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[snapshot.RunID]; exists {
		return repositories.ErrConflict
	}
	copied := *snapshot
	copied.SourceConfig = snapshot.SourceConfig.Clone()
	copied.SourceRecords = append([]byte(nil), snapshot.SourceRecords...)
	s.snapshots[snapshot.RunID] = &copied
	return nil
}

func (s *snapshotStore) GetByRunID(ctx context.Context, runID string) (*models.IngestionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[runID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *snapshot
	copied.SourceConfig = snapshot.SourceConfig.Clone()
	copied.SourceRecords = append([]byte(nil), snapshot.SourceRecords...)
	return &copied, nil
}

func (s *snapshotStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for runID, snapshot := range s.snapshots {
		if snapshot.CreatedAt.Before(cutoff) {
			delete(s.snapshots, runID)
			deleted++
		}
	}
	return deleted, nil
}

type rejectionStore struct {
	*Store
}

func (s *rejectionStore) Create(ctx context.Context, rejection *models.IngestionRejection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[rejection.RunID]; !ok {
		return repositories.ErrNotFound
	}
	s.rejections = append(s.rejections, &rejectionRow{seq: s.next(), rejection: *rejection})
	return nil
}

func (s *rejectionStore) ListByRun(ctx context.Context, runID string, offset, limit int) ([]*models.IngestionRejection, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []*rejectionRow
	for _, row := range s.rejections {
		if row.rejection.RunID == runID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].rejection.RowNumber != rows[j].rejection.RowNumber {
			return rows[i].rejection.RowNumber < rows[j].rejection.RowNumber
		}
		return rows[i].seq < rows[j].seq
	})

	total := int64(len(rows))
	if offset >= len(rows) {
		return []*models.IngestionRejection{}, total, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]*models.IngestionRejection, 0, len(rows))
	for _, row := range rows {
		rejection := row.rejection
		out = append(out, &rejection)
	}
	return out, total, nil
}
