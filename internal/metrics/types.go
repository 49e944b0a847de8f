package metrics

import (
	"math"

	"ifrs9-risk-lab/internal/domain"
)

// PortfolioSummary is the headline view of one snapshot.
type PortfolioSummary struct {
	TotalLoans     int
	TotalExposure  float64
	TotalECL       float64
	AvgECLRate     float64 // mean of per-loan ecl_rate, percent
	MedianECLRate  float64
	P90ECLRate     float64
	StdDevECLRate  float64
	CoverageRatio  float64 // total ECL / total exposure, percent
	AvgCreditScore float64
	Stage1Count    int
	Stage2Count    int
	Stage3Count    int
	FlaggedLoans   int
}

// StageCount returns the number of loans in stage s.
func (s *PortfolioSummary) StageCount(stage domain.Stage) int {
	switch stage {
	case domain.Stage1:
		return s.Stage1Count
	case domain.Stage2:
		return s.Stage2Count
	case domain.Stage3:
		return s.Stage3Count
	}
	return 0
}

// StageRow aggregates one IFRS 9 stage.
type StageRow struct {
	Stage       domain.Stage
	Count       int
	Exposure    float64
	ECL         float64
	CoveragePct float64
}

// ProductRow aggregates one product type.
type ProductRow struct {
	Product    domain.ProductType
	Count      int
	Exposure   float64
	ECL        float64
	MeanPD12M  float64
	MeanLGD    float64
	MeanScore  float64
	ECLRatePct float64
}

// CreditBandRow aggregates one current-score band.
type CreditBandRow struct {
	Band         string
	Count        int
	Exposure     float64
	ECL          float64
	MeanPD12M    float64
	PortfolioPct float64 // share of loan count
	ECLSharePct  float64 // share of total ECL
}

// VintageRow aggregates one origination year.
type VintageRow struct {
	Year           int
	Count          int
	Exposure       float64
	ECL            float64
	Stage3Count    int
	DefaultRatePct float64 // stage 3 share of the vintage
	ECLRatePct     float64
}

// GeographyRow aggregates one region.
type GeographyRow struct {
	Region     string
	Count      int
	Exposure   float64
	ECL        float64
	ECLRatePct float64
}

// CorrelationMatrix is a symmetric Pearson matrix. Undefined entries are NaN.
type CorrelationMatrix struct {
	Labels []string
	Values [][]float64
}

// At returns the correlation between two labels, or NaN if unknown.
func (m *CorrelationMatrix) At(a, b string) float64 {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Values[i][j]
}

func (m *CorrelationMatrix) index(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// CorrelationPair is one off-diagonal entry.
type CorrelationPair struct {
	A, B  string
	Value float64
}

// Analysis is the full analytics result for one snapshot.
type Analysis struct {
	Summary     PortfolioSummary
	Staging     []StageRow      // ascending stage
	Products    []ProductRow    // descending ECL rate
	CreditBands []CreditBandRow // ascending score
	Vintages    []VintageRow    // ascending year
	Geography   []GeographyRow  // ascending ECL rate
	Correlation CorrelationMatrix
	Watchlist   []*domain.Loan // stage 3 or ecl_rate above threshold, descending ECL
	Flagged     []*domain.Loan // records enriched through a fallback path
}
