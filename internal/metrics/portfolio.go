package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"ifrs9-risk-lab/internal/domain"
)

var (
	// ErrNoLoans is returned when there is nothing to analyze.
	ErrNoLoans = errors.New("no loans available for analysis")

	// ErrNotEnriched is returned when a record has no risk metrics.
	ErrNotEnriched = errors.New("loan not enriched")
)

// HighRiskECLRate is the ecl_rate (percent) above which a loan joins the watchlist.
const HighRiskECLRate = 10.0

// CorrelationColumns are the numeric fields of the correlation matrix.
var CorrelationColumns = []string{
	"outstanding_balance",
	"credit_score_current",
	"days_past_due",
	"pd_12m",
	"pd_lifetime",
	"lgd",
	"ecl_amount",
	"ecl_rate",
}

// creditBands are half-open [min, next min) ranges of the current score.
var creditBands = []struct {
	label string
	min   int
}{
	{"Very Poor (<600)", 0},
	{"Poor (600-649)", 600},
	{"Fair (650-699)", 650},
	{"Good (700-749)", 700},
	{"Excellent (750+)", 750},
}

// CreditBand returns the band label for a current credit score.
func CreditBand(score int) string {
	label := creditBands[0].label
	for _, b := range creditBands {
		if score >= b.min {
			label = b.label
		}
	}
	return label
}

// Analyze computes every portfolio view from enriched loans.
func Analyze(loans []*domain.Loan) (*Analysis, error) {
	if len(loans) == 0 {
		return nil, ErrNoLoans
	}
	for _, l := range loans {
		if l == nil || l.Risk == nil {
			id := ""
			if l != nil {
				id = l.LoanID
			}
			return nil, fmt.Errorf("%w: %s", ErrNotEnriched, id)
		}
	}

	return &Analysis{
		Summary:     computeSummary(loans),
		Staging:     computeStaging(loans),
		Products:    computeProducts(loans),
		CreditBands: computeCreditBands(loans),
		Vintages:    computeVintages(loans),
		Geography:   computeGeography(loans),
		Correlation: computeCorrelation(loans),
		Watchlist:   computeWatchlist(loans),
		Flagged:     computeFlagged(loans),
	}, nil
}

func computeSummary(loans []*domain.Loan) PortfolioSummary {
	rates := make([]float64, len(loans))
	var s PortfolioSummary
	scoreSum := 0.0

	for i, l := range loans {
		s.TotalExposure += l.OutstandingBalance
		s.TotalECL += l.Risk.ECLAmount
		scoreSum += float64(l.CreditScoreCurrent)
		rates[i] = l.Risk.ECLRate

		switch l.Risk.Stage {
		case domain.Stage1:
			s.Stage1Count++
		case domain.Stage2:
			s.Stage2Count++
		case domain.Stage3:
			s.Stage3Count++
		}
		if l.Risk.Flags != 0 {
			s.FlaggedLoans++
		}
	}

	s.TotalLoans = len(loans)
	s.CoverageRatio = ratePct(s.TotalECL, s.TotalExposure)
	s.AvgCreditScore = scoreSum / float64(len(loans))
	s.AvgECLRate = computeMean(rates)
	s.StdDevECLRate = computeStddev(rates, s.AvgECLRate)

	sorted := make([]float64, len(rates))
	copy(sorted, rates)
	sort.Float64s(sorted)
	s.MedianECLRate = computePercentile(sorted, 0.50)
	s.P90ECLRate = computePercentile(sorted, 0.90)
	return s
}

// group accumulates the sums shared by every breakdown.
type group struct {
	count    int
	exposure float64
	ecl      float64
	pd12     float64
	lgd      float64
	score    float64
	stage3   int
}

func (g *group) add(l *domain.Loan) {
	g.count++
	g.exposure += l.OutstandingBalance
	g.ecl += l.Risk.ECLAmount
	g.pd12 += l.Risk.PD12M
	g.lgd += l.Risk.LGD
	g.score += float64(l.CreditScoreCurrent)
	if l.Risk.Stage == domain.Stage3 {
		g.stage3++
	}
}

func (g *group) mean(sum float64) float64 {
	if g.count == 0 {
		return 0
	}
	return sum / float64(g.count)
}

func groupBy[K comparable](loans []*domain.Loan, key func(*domain.Loan) K) map[K]*group {
	groups := make(map[K]*group)
	for _, l := range loans {
		k := key(l)
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
		}
		g.add(l)
	}
	return groups
}

func computeStaging(loans []*domain.Loan) []StageRow {
	groups := groupBy(loans, func(l *domain.Loan) domain.Stage { return l.Risk.Stage })

	rows := make([]StageRow, 0, len(groups))
	for _, stage := range domain.AllStages() {
		g, ok := groups[stage]
		if !ok {
			continue
		}
		rows = append(rows, StageRow{
			Stage:       stage,
			Count:       g.count,
			Exposure:    g.exposure,
			ECL:         g.ecl,
			CoveragePct: ratePct(g.ecl, g.exposure),
		})
	}
	return rows
}

func computeProducts(loans []*domain.Loan) []ProductRow {
	groups := groupBy(loans, func(l *domain.Loan) domain.ProductType { return l.ProductType })

	rows := make([]ProductRow, 0, len(groups))
	for product, g := range groups {
		rows = append(rows, ProductRow{
			Product:    product,
			Count:      g.count,
			Exposure:   g.exposure,
			ECL:        g.ecl,
			MeanPD12M:  g.mean(g.pd12),
			MeanLGD:    g.mean(g.lgd),
			MeanScore:  g.mean(g.score),
			ECLRatePct: ratePct(g.ecl, g.exposure),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ECLRatePct != rows[j].ECLRatePct {
			return rows[i].ECLRatePct > rows[j].ECLRatePct
		}
		return rows[i].Product < rows[j].Product
	})
	return rows
}

func computeCreditBands(loans []*domain.Loan) []CreditBandRow {
	groups := groupBy(loans, func(l *domain.Loan) string { return CreditBand(l.CreditScoreCurrent) })

	totalECL := 0.0
	for _, l := range loans {
		totalECL += l.Risk.ECLAmount
	}

	var rows []CreditBandRow
	for _, b := range creditBands {
		g, ok := groups[b.label]
		if !ok {
			continue
		}
		rows = append(rows, CreditBandRow{
			Band:         b.label,
			Count:        g.count,
			Exposure:     g.exposure,
			ECL:          g.ecl,
			MeanPD12M:    g.mean(g.pd12),
			PortfolioPct: ratePct(float64(g.count), float64(len(loans))),
			ECLSharePct:  ratePct(g.ecl, totalECL),
		})
	}
	return rows
}

func computeVintages(loans []*domain.Loan) []VintageRow {
	groups := groupBy(loans, func(l *domain.Loan) int { return l.VintageYear() })

	rows := make([]VintageRow, 0, len(groups))
	for year, g := range groups {
		rows = append(rows, VintageRow{
			Year:           year,
			Count:          g.count,
			Exposure:       g.exposure,
			ECL:            g.ecl,
			Stage3Count:    g.stage3,
			DefaultRatePct: ratePct(float64(g.stage3), float64(g.count)),
			ECLRatePct:     ratePct(g.ecl, g.exposure),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	return rows
}

func computeGeography(loans []*domain.Loan) []GeographyRow {
	groups := groupBy(loans, func(l *domain.Loan) string { return l.Geography })

	rows := make([]GeographyRow, 0, len(groups))
	for region, g := range groups {
		rows = append(rows, GeographyRow{
			Region:     region,
			Count:      g.count,
			Exposure:   g.exposure,
			ECL:        g.ecl,
			ECLRatePct: ratePct(g.ecl, g.exposure),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ECLRatePct != rows[j].ECLRatePct {
			return rows[i].ECLRatePct < rows[j].ECLRatePct
		}
		return rows[i].Region < rows[j].Region
	})
	return rows
}

func computeCorrelation(loans []*domain.Loan) CorrelationMatrix {
	cols := make([][]float64, len(CorrelationColumns))
	for i := range cols {
		cols[i] = make([]float64, len(loans))
	}
	for j, l := range loans {
		cols[0][j] = l.OutstandingBalance
		cols[1][j] = float64(l.CreditScoreCurrent)
		cols[2][j] = float64(l.DaysPastDue)
		cols[3][j] = l.Risk.PD12M
		cols[4][j] = l.Risk.PDLifetime
		cols[5][j] = l.Risk.LGD
		cols[6][j] = l.Risk.ECLAmount
		cols[7][j] = l.Risk.ECLRate
	}

	n := len(cols)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := computePearson(cols[i], cols[j])
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			values[i][j], values[j][i] = r, r
		}
	}

	labels := make([]string, n)
	copy(labels, CorrelationColumns)
	return CorrelationMatrix{Labels: labels, Values: values}
}

// StrongestPairs returns the k off-diagonal pairs with the largest
// correlation, skipping undefined entries.
func (m *CorrelationMatrix) StrongestPairs(k int) []CorrelationPair {
	var pairs []CorrelationPair
	for i := range m.Labels {
		for j := i + 1; j < len(m.Labels); j++ {
			v := m.Values[i][j]
			if math.IsNaN(v) {
				continue
			}
			pairs = append(pairs, CorrelationPair{A: m.Labels[i], B: m.Labels[j], Value: v})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Value > pairs[j].Value })
	if k >= 0 && len(pairs) > k {
		pairs = pairs[:k]
	}
	return pairs
}

// IsHighRisk reports whether an enriched loan belongs on the watchlist.
func IsHighRisk(l *domain.Loan) bool {
	return l.Risk != nil && (l.Risk.Stage == domain.Stage3 || l.Risk.ECLRate > HighRiskECLRate)
}

func computeWatchlist(loans []*domain.Loan) []*domain.Loan {
	var list []*domain.Loan
	for _, l := range loans {
		if IsHighRisk(l) {
			list = append(list, l)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Risk.ECLAmount != list[j].Risk.ECLAmount {
			return list[i].Risk.ECLAmount > list[j].Risk.ECLAmount
		}
		return list[i].LoanID < list[j].LoanID
	})
	return list
}

func computeFlagged(loans []*domain.Loan) []*domain.Loan {
	var flagged []*domain.Loan
	for _, l := range loans {
		if l.Risk.Flags != 0 {
			flagged = append(flagged, l)
		}
	}
	return flagged
}
