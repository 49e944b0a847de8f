package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// LoanStore is an in-memory implementation of storage.LoanStore.
type LoanStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Loan // keyed by storage.LoanKey
}

// NewLoanStore creates a new in-memory loan store.
func NewLoanStore() *LoanStore {
	return &LoanStore{
		data: make(map[string]*domain.Loan),
	}
}

// Insert adds a record. Returns ErrDuplicateKey if the key exists.
func (s *LoanStore) Insert(_ context.Context, l *domain.Loan) error {
	if err := storage.CheckLoan(l); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.LoanKey(l.ReportingDate, l.LoanID)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = normalize(l)
	return nil
}

// InsertBulk adds records atomically. Fails the entire batch on any duplicate.
func (s *LoanStore) InsertBulk(_ context.Context, loans []*domain.Loan) error {
	if len(loans) == 0 {
		return nil
	}
	if err := storage.CheckBatch(loans); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range loans {
		if _, exists := s.data[storage.LoanKey(l.ReportingDate, l.LoanID)]; exists {
			return storage.ErrDuplicateKey
		}
	}
	for _, l := range loans {
		s.data[storage.LoanKey(l.ReportingDate, l.LoanID)] = normalize(l)
	}
	return nil
}

// ReplaceSnapshot deletes every record of reportingDate and inserts loans.
func (s *LoanStore) ReplaceSnapshot(_ context.Context, reportingDate time.Time, loans []*domain.Loan) error {
	if err := storage.CheckSnapshot(reportingDate, loans); err != nil {
		return err
	}
	date := storage.DateOnly(reportingDate)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, l := range s.data {
		if l.ReportingDate.Equal(date) {
			delete(s.data, key)
		}
	}
	for _, l := range loans {
		s.data[storage.LoanKey(l.ReportingDate, l.LoanID)] = normalize(l)
	}
	return nil
}

// GetByID retrieves one record. Returns ErrNotFound if it does not exist.
func (s *LoanStore) GetByID(_ context.Context, reportingDate time.Time, loanID string) (*domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[storage.LoanKey(reportingDate, loanID)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return l.Clone(), nil
}

// GetByReportingDate retrieves a snapshot ordered by loan_id ASC.
func (s *LoanStore) GetByReportingDate(_ context.Context, reportingDate time.Time) ([]*domain.Loan, error) {
	return s.filter(storage.DateOnly(reportingDate), func(*domain.Loan) bool { return true }), nil
}

// GetByStage retrieves enriched records of one stage ordered by loan_id ASC.
func (s *LoanStore) GetByStage(_ context.Context, reportingDate time.Time, stage domain.Stage) ([]*domain.Loan, error) {
	return s.filter(storage.DateOnly(reportingDate), func(l *domain.Loan) bool {
		return l.Risk != nil && l.Risk.Stage == stage
	}), nil
}

// ReportingDates lists stored reporting dates ascending.
func (s *LoanStore) ReportingDates(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[time.Time]struct{})
	for _, l := range s.data {
		seen[l.ReportingDate] = struct{}{}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *LoanStore) filter(date time.Time, keep func(*domain.Loan) bool) []*domain.Loan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Loan
	for _, l := range s.data {
		if l.ReportingDate.Equal(date) && keep(l) {
			result = append(result, l.Clone())
		}
	}

	// Sort by loan_id ASC
	sort.Slice(result, func(i, j int) bool {
		return result[i].LoanID < result[j].LoanID
	})
	return result
}

// normalize stores a copy with date-only timestamps and recomputed flags,
// matching what a SQL backend would return.
func normalize(l *domain.Loan) *domain.Loan {
	c := l.Clone()
	c.ReportingDate = storage.DateOnly(c.ReportingDate)
	c.OriginationDate = storage.DateOnly(c.OriginationDate)
	if c.Risk != nil {
		c.Risk.Flags = domain.DeriveFlags(c)
	}
	return c
}

// Verify interface compliance at compile time.
var _ storage.LoanStore = (*LoanStore)(nil)
