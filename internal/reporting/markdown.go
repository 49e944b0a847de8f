package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/metrics"
)

const barWidth = 30

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	a := r.Analysis
	cur := r.Currency

	// Header
	sb.WriteString("# IFRS 9 Expected Credit Loss Report\n\n")
	sb.WriteString(fmt.Sprintf("Reporting date: %s\n\n", r.ReportingDate.Format(domain.DateLayout)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Portfolio Summary
	s := a.Summary
	sb.WriteString("## Portfolio Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Loans | %s |\n", formatCount(s.TotalLoans)))
	sb.WriteString(fmt.Sprintf("| Total Exposure | %s |\n", formatMoney(s.TotalExposure, cur)))
	sb.WriteString(fmt.Sprintf("| Total ECL | %s |\n", formatMoney(s.TotalECL, cur)))
	sb.WriteString(fmt.Sprintf("| Coverage Ratio | %s |\n", formatPct(s.CoverageRatio)))
	sb.WriteString(fmt.Sprintf("| Mean ECL Rate | %s |\n", formatPct(s.AvgECLRate)))
	sb.WriteString(fmt.Sprintf("| Median ECL Rate | %s |\n", formatPct(s.MedianECLRate)))
	sb.WriteString(fmt.Sprintf("| P90 ECL Rate | %s |\n", formatPct(s.P90ECLRate)))
	sb.WriteString(fmt.Sprintf("| Average Credit Score | %.0f |\n", s.AvgCreditScore))
	sb.WriteString(fmt.Sprintf("| Flagged Records | %s |\n", formatCount(s.FlaggedLoans)))
	sb.WriteString("\n")

	// Stage Distribution
	sb.WriteString("## Stage Distribution\n\n")
	sb.WriteString("| Stage | Loans | Exposure | ECL | Coverage |\n")
	sb.WriteString("|-------|-------|----------|-----|----------|\n")
	for _, row := range a.Staging {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			row.Stage, formatCount(row.Count), formatMoney(row.Exposure, cur),
			formatMoney(row.ECL, cur), formatPct(row.CoveragePct)))
	}
	sb.WriteString("\n```\n")
	for _, row := range a.Staging {
		sb.WriteString(fmt.Sprintf("%-8s %s %s\n", row.Stage, bar(row.ECL, s.TotalECL, barWidth),
			formatPct(ratio(row.ECL, s.TotalECL))))
	}
	sb.WriteString("```\n\n")

	// Product Risk
	sb.WriteString("## Product Risk\n\n")
	sb.WriteString("| Product | Loans | Exposure | ECL | Avg PD 12m | Avg LGD | Avg Score | ECL Rate |\n")
	sb.WriteString("|---------|-------|----------|-----|------------|---------|-----------|----------|\n")
	maxRate := 0.0
	for _, row := range a.Products {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.4f | %.4f | %.0f | %s |\n",
			row.Product, formatCount(row.Count), formatMoney(row.Exposure, cur), formatMoney(row.ECL, cur),
			row.MeanPD12M, row.MeanLGD, row.MeanScore, formatPct(row.ECLRatePct)))
		maxRate = math.Max(maxRate, row.ECLRatePct)
	}
	sb.WriteString("\n```\n")
	for _, row := range a.Products {
		sb.WriteString(fmt.Sprintf("%-14s %s %s\n", row.Product, bar(row.ECLRatePct, maxRate, barWidth),
			formatPct(row.ECLRatePct)))
	}
	sb.WriteString("```\n\n")

	// Credit Quality
	sb.WriteString("## Credit Quality Bands\n\n")
	sb.WriteString("| Band | Loans | Portfolio Share | Exposure | ECL | ECL Share | Avg PD 12m |\n")
	sb.WriteString("|------|-------|-----------------|----------|-----|-----------|------------|\n")
	for _, row := range a.CreditBands {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %.4f |\n",
			row.Band, formatCount(row.Count), formatPct(row.PortfolioPct), formatMoney(row.Exposure, cur),
			formatMoney(row.ECL, cur), formatPct(row.ECLSharePct), row.MeanPD12M))
	}
	sb.WriteString("\n")

	// Correlations
	m := a.Correlation
	sb.WriteString("## Risk Correlations\n\n")
	sb.WriteString("| |")
	for _, l := range m.Labels {
		sb.WriteString(fmt.Sprintf(" %s |", l))
	}
	sb.WriteString("\n|---|")
	sb.WriteString(strings.Repeat("---|", len(m.Labels)))
	sb.WriteString("\n")
	for i, l := range m.Labels {
		sb.WriteString(fmt.Sprintf("| %s |", l))
		for j := range m.Labels {
			sb.WriteString(fmt.Sprintf(" %s |", formatCorr(m.Values[i][j])))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	if pairs := m.StrongestPairs(5); len(pairs) > 0 {
		sb.WriteString("Strongest positive relationships:\n\n")
		for _, p := range pairs {
			sb.WriteString(fmt.Sprintf("- %s / %s: %s\n", p.A, p.B, formatCorr(p.Value)))
		}
		sb.WriteString("\n")
	}

	// Vintage
	sb.WriteString("## Vintage Analysis\n\n")
	sb.WriteString("| Origination Year | Loans | Exposure | ECL | Default Rate | ECL Rate |\n")
	sb.WriteString("|------------------|-------|----------|-----|--------------|----------|\n")
	for _, row := range a.Vintages {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
			row.Year, formatCount(row.Count), formatMoney(row.Exposure, cur), formatMoney(row.ECL, cur),
			formatPct(row.DefaultRatePct), formatPct(row.ECLRatePct)))
	}
	sb.WriteString("\n")

	// Geography
	sb.WriteString("## Geographic Distribution\n\n")
	sb.WriteString("| Region | Loans | Exposure | ECL | ECL Rate |\n")
	sb.WriteString("|--------|-------|----------|-----|----------|\n")
	for _, row := range a.Geography {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			row.Region, formatCount(row.Count), formatMoney(row.Exposure, cur),
			formatMoney(row.ECL, cur), formatPct(row.ECLRatePct)))
	}
	sb.WriteString("\n")

	// Watchlist
	sb.WriteString("## High-Risk Watchlist\n\n")
	if len(r.Watchlist) > 0 {
		sb.WriteString(fmt.Sprintf("Top %d of %s high-risk loans (Stage 3 or ECL rate above %.0f%%).\n\n",
			len(r.Watchlist), formatCount(len(a.Watchlist)), metrics.HighRiskECLRate))
		sb.WriteString("| Loan | Product | Balance | ECL | ECL Rate | Stage | DPD |\n")
		sb.WriteString("|------|---------|---------|-----|----------|-------|-----|\n")
		for _, l := range r.Watchlist {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %d |\n",
				l.LoanID, l.ProductType, formatMoney(l.OutstandingBalance, cur), formatMoney(l.Risk.ECLAmount, cur),
				formatPct(l.Risk.ECLRate), int(l.Risk.Stage), l.DaysPastDue))
		}
	} else {
		sb.WriteString("No high-risk loans.\n")
	}
	sb.WriteString("\n")

	// Flagged
	sb.WriteString("## Flagged Records\n\n")
	if len(a.Flagged) > 0 {
		sb.WriteString("| Loan | Product | Flags |\n")
		sb.WriteString("|------|---------|-------|\n")
		for _, l := range a.Flagged {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", l.LoanID, l.ProductType, l.Risk.Flags))
		}
	} else {
		sb.WriteString("No records were enriched through a fallback path.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	if len(r.DataQuality) > 0 {
		sb.WriteString("## Data Quality\n\n")
		for _, msg := range r.DataQuality {
			sb.WriteString(fmt.Sprintf("- %s\n", msg))
		}
		sb.WriteString("\n")
	}

	// Reproducibility
	sb.WriteString("## Reproducibility\n\n")
	if r.Run != nil {
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.Run.RunID))
		sb.WriteString(fmt.Sprintf("| Seed | %d |\n", r.Run.Seed))
		sb.WriteString(fmt.Sprintf("| Data Source | %s |\n", r.Run.DataSource))
		sb.WriteString(fmt.Sprintf("| Rejected Records | %s |\n", formatCount(r.Run.RejectedLoans)))
	} else {
		sb.WriteString("No run summary recorded for this reporting date.\n")
	}

	return sb.String()
}

// bar renders value as a share of max in width block characters.
func bar(value, max float64, width int) string {
	n := 0
	if max > 0 && value > 0 {
		n = int(math.Round(value / max * float64(width)))
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func formatCorr(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
