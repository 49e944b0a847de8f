package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ifrs9-risk-lab/internal/domain"
)

// Write writes loans with the full 18-column header. Derived columns are
// blank for records that have not been enriched.
func Write(w io.Writer, loans []*domain.Loan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(domain.Columns))
	for i, l := range loans {
		formatRow(record, l)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatRow(record []string, l *domain.Loan) {
	sector := ""
	if l.IndustrySector != nil {
		sector = *l.IndustrySector
	}
	record[0] = l.LoanID
	record[1] = l.ReportingDate.Format(domain.DateLayout)
	record[2] = l.ProductType.String()
	record[3] = l.OriginationDate.Format(domain.DateLayout)
	record[4] = formatFloat(l.OriginalAmount)
	record[5] = formatFloat(l.OutstandingBalance)
	record[6] = strconv.Itoa(l.CreditScoreOrigination)
	record[7] = strconv.Itoa(l.CreditScoreCurrent)
	record[8] = strconv.Itoa(l.DaysPastDue)
	record[9] = formatFloat(l.InterestRate)
	record[10] = sector
	record[11] = l.Geography

	if l.Risk == nil {
		for i := 12; i < len(record); i++ {
			record[i] = ""
		}
		return
	}
	record[12] = formatFloat(l.Risk.PD12M)
	record[13] = formatFloat(l.Risk.PDLifetime)
	record[14] = formatFloat(l.Risk.LGD)
	record[15] = strconv.Itoa(int(l.Risk.Stage))
	record[16] = formatFloat(l.Risk.ECLAmount)
	record[17] = formatFloat(l.Risk.ECLRate)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
