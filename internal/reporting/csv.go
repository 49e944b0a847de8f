package reporting

import (
	"fmt"
	"strings"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/metrics"
)

// RenderSummaryCSV renders the portfolio summary as a one-row CSV string.
func RenderSummaryCSV(r *Report) string {
	var sb strings.Builder
	s := r.Analysis.Summary

	// Header
	sb.WriteString("Reporting_Date,Total_Loans,Total_Exposure,Total_ECL,Coverage_Ratio,")
	sb.WriteString("Stage_1_Count,Stage_2_Count,Stage_3_Count,Avg_ECL_Rate,Avg_Credit_Score,Analysis_Date\n")

	sb.WriteString(fmt.Sprintf("%s,%d,%.2f,%.2f,%.4f,%d,%d,%d,%.4f,%.2f,%s\n",
		r.ReportingDate.Format(domain.DateLayout),
		s.TotalLoans,
		s.TotalExposure,
		s.TotalECL,
		s.CoverageRatio,
		s.Stage1Count,
		s.Stage2Count,
		s.Stage3Count,
		s.AvgECLRate,
		s.AvgCreditScore,
		r.GeneratedAt.Format("2006-01-02 15:04:05"),
	))

	return sb.String()
}

// RenderProductCSV renders product risk rows as CSV string.
func RenderProductCSV(rows []metrics.ProductRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("product_type,Loan_Count,Total_Exposure,Total_ECL,Avg_PD_12M,Avg_LGD,Avg_Credit_Score,ECL_Rate_%\n")

	// Rows
	for _, p := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%.2f,%.2f,%.6f,%.4f,%.2f,%.4f\n",
			p.Product,
			p.Count,
			p.Exposure,
			p.ECL,
			p.MeanPD12M,
			p.MeanLGD,
			p.MeanScore,
			p.ECLRatePct,
		))
	}

	return sb.String()
}
