package domain

import "time"

// RunSummary is the persisted outcome of one engine run over a reporting
// date. Corresponds to the run_summaries table.
type RunSummary struct {
	RunID         string // deterministic, see idhash.RunID
	ReportingDate time.Time
	Seed          uint64
	DataSource    string // "generator" | "csv" | "store"

	TotalLoans    int
	RejectedLoans int
	FlaggedLoans  int

	TotalExposure float64
	TotalECL      float64
	CoverageRatio float64 // total ECL / total exposure * 100, 0 if no exposure

	Stage1Count int
	Stage2Count int
	Stage3Count int

	CreatedAt time.Time
}

// StageCount returns the number of loans in stage s.
func (r *RunSummary) StageCount(s Stage) int {
	switch s {
	case Stage1:
		return r.Stage1Count
	case Stage2:
		return r.Stage2Count
	case Stage3:
		return r.Stage3Count
	}
	return 0
}
