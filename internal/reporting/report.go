package reporting

import (
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/metrics"
)

// DefaultWatchlistSize is the number of high-risk loans shown in the report.
const DefaultWatchlistSize = 10

// Report is the IFRS 9 portfolio report of one reporting date.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	ReportingDate time.Time
	Currency      string

	// Reproducibility, empty when no run summary is known.
	Run *domain.RunSummary

	Analysis *metrics.Analysis

	// Watchlist rows shown in the Markdown report (top N of Analysis.Watchlist).
	Watchlist []*domain.Loan

	// Data quality messages (skipped records, rejected rows).
	DataQuality []string
}
