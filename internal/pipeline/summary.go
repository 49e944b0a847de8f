package pipeline

import (
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/idhash"
	"ifrs9-risk-lab/internal/storage"
)

// BuildSummary aggregates an engine run into a run summary. The run id is
// derived from the inputs and the engine calibration so that identical runs
// share an id.
func BuildSummary(
	reportingDate time.Time,
	seed uint64,
	dataSource string,
	paramsDigest string,
	inputs []*domain.Loan,
	enriched []*domain.Loan,
	rejected int,
	createdAt time.Time,
) *domain.RunSummary {
	s := &domain.RunSummary{
		RunID:         idhash.ComputeRunID(reportingDate, seed, dataSource, paramsDigest, idhash.ComputePortfolioDigest(inputs)),
		ReportingDate: storage.DateOnly(reportingDate),
		Seed:          seed,
		DataSource:    dataSource,
		TotalLoans:    len(enriched),
		RejectedLoans: rejected,
		CreatedAt:     createdAt.UTC(),
	}

	for _, l := range enriched {
		s.TotalExposure += l.OutstandingBalance
		s.TotalECL += l.Risk.ECLAmount
		if l.Risk.Flags != 0 {
			s.FlaggedLoans++
		}
		switch l.Risk.Stage {
		case domain.Stage1:
			s.Stage1Count++
		case domain.Stage2:
			s.Stage2Count++
		case domain.Stage3:
			s.Stage3Count++
		}
	}
	if s.TotalExposure > 0 {
		s.CoverageRatio = s.TotalECL / s.TotalExposure * 100
	}
	return s
}
