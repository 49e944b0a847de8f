package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// RunSummaryStore is an in-memory implementation of storage.RunSummaryStore.
type RunSummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunSummaryStore creates a new in-memory run summary store.
func NewRunSummaryStore() *RunSummaryStore {
	return &RunSummaryStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(_ context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	summaryCopy := *r
	summaryCopy.ReportingDate = storage.DateOnly(r.ReportingDate)
	s.data[r.RunID] = &summaryCopy
	return nil
}

// GetByID retrieves a summary. Returns ErrNotFound if it does not exist.
func (s *RunSummaryStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	summaryCopy := *r
	return &summaryCopy, nil
}

// GetByReportingDate retrieves summaries ordered by created_at ASC.
func (s *RunSummaryStore) GetByReportingDate(_ context.Context, reportingDate time.Time) ([]*domain.RunSummary, error) {
	date := storage.DateOnly(reportingDate)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunSummary
	for _, r := range s.data {
		if r.ReportingDate.Equal(date) {
			summaryCopy := *r
			result = append(result, &summaryCopy)
		}
	}
	sortSummaries(result)
	return result, nil
}

// Latest returns the most recently created summary.
func (s *RunSummaryStore) Latest(_ context.Context) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.RunSummary
	for _, r := range s.data {
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) ||
			(r.CreatedAt.Equal(latest.CreatedAt) && r.RunID > latest.RunID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	summaryCopy := *latest
	return &summaryCopy, nil
}

func sortSummaries(rs []*domain.RunSummary) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].RunID < rs[j].RunID
	})
}

// Verify interface compliance at compile time.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)
