package reporting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"ifrs9-risk-lab/internal/csvio"
	"ifrs9-risk-lab/internal/domain"
)

// Output file names.
const (
	ReportFile    = "REPORT_IFRS9.md"
	PortfolioFile = "loan_portfolio_data.csv"
	SummaryFile   = "portfolio_summary.csv"
	WatchlistFile = "high_risk_watchlist.csv"
	ProductFile   = "product_risk_analysis.csv"
)

type outputFile struct {
	name    string
	content []byte
}

// WriteFiles writes the Markdown report and the CSV exports into dir.
// portfolio is the full snapshot; it is skipped when nil.
// Returns the written paths in write order.
func WriteFiles(dir string, r *Report, portfolio []*domain.Loan) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var watchlist bytes.Buffer
	if err := csvio.Write(&watchlist, r.Analysis.Watchlist); err != nil {
		return nil, fmt.Errorf("render watchlist: %w", err)
	}

	files := []outputFile{
		{ReportFile, []byte(RenderMarkdown(r))},
		{SummaryFile, []byte(RenderSummaryCSV(r))},
		{WatchlistFile, watchlist.Bytes()},
		{ProductFile, []byte(RenderProductCSV(r.Analysis.Products))},
	}

	if portfolio != nil {
		var buf bytes.Buffer
		if err := csvio.Write(&buf, portfolio); err != nil {
			return nil, fmt.Errorf("render portfolio: %w", err)
		}
		files = append(files, outputFile{PortfolioFile, buf.Bytes()})
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.content, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
