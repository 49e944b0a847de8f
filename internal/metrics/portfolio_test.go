package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"ifrs9-risk-lab/internal/domain"
)

var reportingDate = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

func makeLoan(id string, product domain.ProductType, score, dpd int, balance float64, originated time.Time, region string, risk domain.RiskMetrics) *domain.Loan {
	r := risk
	return &domain.Loan{
		LoanID:                 id,
		ReportingDate:          reportingDate,
		ProductType:            product,
		OriginationDate:        originated,
		OriginalAmount:         balance * 1.2,
		OutstandingBalance:     balance,
		CreditScoreOrigination: score,
		CreditScoreCurrent:     score,
		DaysPastDue:            dpd,
		InterestRate:           5,
		Geography:              region,
		Risk:                   &r,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixturePortfolio: one loan per stage path, totals exposure 135000 and ECL 6520.
func fixturePortfolio() []*domain.Loan {
	return []*domain.Loan{
		makeLoan("LN0000001", domain.ProductMortgage, 760, 0, 100000, date(2020, 3, 1), "North",
			domain.RiskMetrics{PD12M: 0.01, PDLifetime: 0.03, LGD: 0.2, Stage: domain.Stage1, ECLAmount: 200, ECLRate: 0.2}),
		makeLoan("LN0000002", domain.ProductPersonalLoan, 640, 45, 10000, date(2021, 6, 1), "South",
			domain.RiskMetrics{PD12M: 0.15, PDLifetime: 0.45, LGD: 0.6, Stage: domain.Stage2, ECLAmount: 2700, ECLRate: 27}),
		makeLoan("LN0000003", domain.ProductCreditCard, 580, 120, 5000, date(2021, 1, 10), "North",
			domain.RiskMetrics{PD12M: 1, PDLifetime: 1, LGD: 0.7, Stage: domain.Stage3, ECLAmount: 3500, ECLRate: 70}),
		makeLoan("LN0000004", domain.ProductAutoLoan, 700, 0, 20000, date(2022, 5, 5), "East",
			domain.RiskMetrics{PD12M: 0.02, PDLifetime: 0.06, LGD: 0.3, Stage: domain.Stage1, ECLAmount: 120, ECLRate: 0.6}),
	}
}

func TestAnalyze_RejectsEmptyAndUnenriched(t *testing.T) {
	if _, err := Analyze(nil); !errors.Is(err, ErrNoLoans) {
		t.Errorf("expected ErrNoLoans, got %v", err)
	}

	loans := fixturePortfolio()
	loans[2].Risk = nil
	_, err := Analyze(loans)
	if !errors.Is(err, ErrNotEnriched) {
		t.Fatalf("expected ErrNotEnriched, got %v", err)
	}
}

func TestAnalyze_Summary(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	s := a.Summary

	if s.TotalLoans != 4 {
		t.Errorf("expected 4 loans, got %d", s.TotalLoans)
	}
	if !almostEqual(s.TotalExposure, 135000) {
		t.Errorf("expected exposure 135000, got %f", s.TotalExposure)
	}
	if !almostEqual(s.TotalECL, 6520) {
		t.Errorf("expected ECL 6520, got %f", s.TotalECL)
	}
	if !almostEqual(s.CoverageRatio, 6520.0/135000.0*100) {
		t.Errorf("unexpected coverage ratio %f", s.CoverageRatio)
	}
	if !almostEqual(s.AvgECLRate, 24.45) {
		t.Errorf("expected mean ECL rate 24.45, got %f", s.AvgECLRate)
	}
	if !almostEqual(s.MedianECLRate, 13.8) {
		t.Errorf("expected median ECL rate 13.8, got %f", s.MedianECLRate)
	}
	if !almostEqual(s.AvgCreditScore, 670) {
		t.Errorf("expected mean score 670, got %f", s.AvgCreditScore)
	}
	if s.StageCount(domain.Stage1) != 2 || s.StageCount(domain.Stage2) != 1 || s.StageCount(domain.Stage3) != 1 {
		t.Errorf("unexpected stage counts %d/%d/%d", s.Stage1Count, s.Stage2Count, s.Stage3Count)
	}
	if s.FlaggedLoans != 0 {
		t.Errorf("expected no flagged loans, got %d", s.FlaggedLoans)
	}
}

func TestAnalyze_Staging(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(a.Staging) != 3 {
		t.Fatalf("expected 3 stage rows, got %d", len(a.Staging))
	}
	stage1 := a.Staging[0]
	if stage1.Stage != domain.Stage1 || stage1.Count != 2 {
		t.Errorf("unexpected first row %+v", stage1)
	}
	if !almostEqual(stage1.CoveragePct, 320.0/120000.0*100) {
		t.Errorf("unexpected stage 1 coverage %f", stage1.CoveragePct)
	}
	if !almostEqual(a.Staging[2].CoveragePct, 70) {
		t.Errorf("expected stage 3 coverage 70, got %f", a.Staging[2].CoveragePct)
	}
}

func TestAnalyze_ProductsSortedByECLRateDesc(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	want := []domain.ProductType{
		domain.ProductCreditCard,
		domain.ProductPersonalLoan,
		domain.ProductAutoLoan,
		domain.ProductMortgage,
	}
	if len(a.Products) != len(want) {
		t.Fatalf("expected %d product rows, got %d", len(want), len(a.Products))
	}
	for i, p := range want {
		if a.Products[i].Product != p {
			t.Errorf("row %d: expected %s, got %s", i, p, a.Products[i].Product)
		}
	}
	if !almostEqual(a.Products[0].ECLRatePct, 70) {
		t.Errorf("expected card ECL rate 70, got %f", a.Products[0].ECLRatePct)
	}
	if !almostEqual(a.Products[0].MeanLGD, 0.7) {
		t.Errorf("expected card mean LGD 0.7, got %f", a.Products[0].MeanLGD)
	}
}

func TestCreditBand(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{300, "Very Poor (<600)"},
		{599, "Very Poor (<600)"},
		{600, "Poor (600-649)"},
		{649, "Poor (600-649)"},
		{650, "Fair (650-699)"},
		{700, "Good (700-749)"},
		{749, "Good (700-749)"},
		{750, "Excellent (750+)"},
		{850, "Excellent (750+)"},
	}
	for _, tt := range tests {
		if got := CreditBand(tt.score); got != tt.want {
			t.Errorf("score %d: expected %q, got %q", tt.score, tt.want, got)
		}
	}
}

func TestAnalyze_CreditBands(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	// Fair band has no loans in the fixture and is omitted.
	want := []string{"Very Poor (<600)", "Poor (600-649)", "Good (700-749)", "Excellent (750+)"}
	if len(a.CreditBands) != len(want) {
		t.Fatalf("expected %d bands, got %d", len(want), len(a.CreditBands))
	}
	share := 0.0
	for i, b := range a.CreditBands {
		if b.Band != want[i] {
			t.Errorf("band %d: expected %q, got %q", i, want[i], b.Band)
		}
		if !almostEqual(b.PortfolioPct, 25) {
			t.Errorf("band %s: expected 25%% of portfolio, got %f", b.Band, b.PortfolioPct)
		}
		share += b.ECLSharePct
	}
	if !almostEqual(share, 100) {
		t.Errorf("expected ECL shares to sum to 100, got %f", share)
	}
}

func TestAnalyze_Vintages(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(a.Vintages) != 3 {
		t.Fatalf("expected 3 vintages, got %d", len(a.Vintages))
	}
	v2021 := a.Vintages[1]
	if v2021.Year != 2021 || v2021.Count != 2 || v2021.Stage3Count != 1 {
		t.Errorf("unexpected 2021 vintage %+v", v2021)
	}
	if !almostEqual(v2021.DefaultRatePct, 50) {
		t.Errorf("expected 2021 default rate 50, got %f", v2021.DefaultRatePct)
	}
	if !almostEqual(v2021.ECLRatePct, 6200.0/15000.0*100) {
		t.Errorf("unexpected 2021 ECL rate %f", v2021.ECLRatePct)
	}
}

func TestAnalyze_GeographySortedAsc(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	want := []string{"East", "North", "South"}
	for i, region := range want {
		if a.Geography[i].Region != region {
			t.Errorf("row %d: expected %s, got %s", i, region, a.Geography[i].Region)
		}
	}
	if a.Geography[1].Count != 2 {
		t.Errorf("expected 2 loans in North, got %d", a.Geography[1].Count)
	}
}

func TestAnalyze_Watchlist(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(a.Watchlist) != 2 {
		t.Fatalf("expected 2 high-risk loans, got %d", len(a.Watchlist))
	}
	// Stage 3 with the larger ECL first, then the stage 2 loan above the rate threshold.
	if a.Watchlist[0].LoanID != "LN0000003" || a.Watchlist[1].LoanID != "LN0000002" {
		t.Errorf("unexpected watchlist order %s, %s", a.Watchlist[0].LoanID, a.Watchlist[1].LoanID)
	}
}

func TestIsHighRisk_Threshold(t *testing.T) {
	l := fixturePortfolio()[3]

	l.Risk.ECLRate = HighRiskECLRate
	if IsHighRisk(l) {
		t.Error("ecl_rate equal to the threshold should not be high risk")
	}
	l.Risk.ECLRate = HighRiskECLRate + 0.01
	if !IsHighRisk(l) {
		t.Error("ecl_rate above the threshold should be high risk")
	}
	l.Risk = nil
	if IsHighRisk(l) {
		t.Error("unenriched loan should not be high risk")
	}
}

func TestAnalyze_Flagged(t *testing.T) {
	loans := fixturePortfolio()
	loans[3].Risk.Flags = domain.FlagUnknownProduct

	a, err := Analyze(loans)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.Summary.FlaggedLoans != 1 || len(a.Flagged) != 1 {
		t.Fatalf("expected one flagged loan, got %d / %d", a.Summary.FlaggedLoans, len(a.Flagged))
	}
	if a.Flagged[0].LoanID != "LN0000004" {
		t.Errorf("expected LN0000004 flagged, got %s", a.Flagged[0].LoanID)
	}
}

func TestAnalyze_Correlation(t *testing.T) {
	a, err := Analyze(fixturePortfolio())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	m := a.Correlation

	if len(m.Labels) != len(CorrelationColumns) {
		t.Fatalf("expected %d labels, got %d", len(CorrelationColumns), len(m.Labels))
	}
	for i := range m.Labels {
		if !almostEqual(m.Values[i][i], 1) {
			t.Errorf("diagonal %s: expected 1, got %f", m.Labels[i], m.Values[i][i])
		}
		for j := range m.Labels {
			v := m.Values[i][j]
			if v != m.Values[j][i] {
				t.Errorf("matrix not symmetric at %d,%d", i, j)
			}
			if v < -1 || v > 1 {
				t.Errorf("correlation out of range at %d,%d: %f", i, j, v)
			}
		}
	}

	// Arrears drive the loss rate in the fixture.
	if m.At("days_past_due", "ecl_rate") <= 0 {
		t.Errorf("expected positive dpd/ecl_rate correlation, got %f", m.At("days_past_due", "ecl_rate"))
	}
	if !math.IsNaN(m.At("days_past_due", "unknown")) {
		t.Error("expected NaN for unknown label")
	}
}

func TestCorrelation_ConstantColumnIsNaN(t *testing.T) {
	loans := fixturePortfolio()
	for _, l := range loans {
		l.DaysPastDue = 0
	}

	a, err := Analyze(loans)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !math.IsNaN(a.Correlation.At("days_past_due", "pd_12m")) {
		t.Error("expected NaN correlation for a constant column")
	}
	for _, p := range a.Correlation.StrongestPairs(-1) {
		if p.A == "days_past_due" || p.B == "days_past_due" {
			t.Errorf("undefined pair %s/%s should be skipped", p.A, p.B)
		}
	}
}

func TestStrongestPairs(t *testing.T) {
	m := CorrelationMatrix{
		Labels: []string{"a", "b", "c"},
		Values: [][]float64{
			{1, 0.9, -0.5},
			{0.9, 1, 0.3},
			{-0.5, 0.3, 1},
		},
	}

	pairs := m.StrongestPairs(2)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].A != "a" || pairs[0].B != "b" || pairs[0].Value != 0.9 {
		t.Errorf("unexpected strongest pair %+v", pairs[0])
	}
	if pairs[1].Value != 0.3 {
		t.Errorf("expected second pair 0.3, got %f", pairs[1].Value)
	}
}
