package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"ifrs9-risk-lab/internal/domain"
)

// Rejection is a record the engine refused to enrich.
type Rejection struct {
	Loan *domain.Loan
	Err  error
}

// BatchResult is the outcome of EnrichBatch. Enriched keeps input order,
// minus rejected records.
type BatchResult struct {
	Enriched   []*domain.Loan
	Rejected   []Rejection
	FlagCounts map[domain.RiskFlag]int // per single flag bit
	Flagged    int                     // records with any flag
}

// minChunk keeps per-goroutine overhead small relative to the work.
const minChunk = 256

// EnrichBatch enriches loans in parallel. workers <= 0 uses GOMAXPROCS.
// Results do not depend on the worker count because every record draws from
// its own stream. Cancelling ctx stops the batch and returns ctx.Err().
func (e *Engine) EnrichBatch(ctx context.Context, loans []*domain.Loan, workers int) (*BatchResult, error) {
	n := len(loans)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]*domain.Loan, n)
	errs := make([]error, n)

	chunk := (n + workers*4 - 1) / (workers * 4)
	if chunk < minChunk {
		chunk = minChunk
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		if err := ctx.Err(); err != nil {
			break
		}
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i], errs[i] = e.Enrich(loans[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &BatchResult{
		Enriched:   make([]*domain.Loan, 0, n),
		FlagCounts: make(map[domain.RiskFlag]int),
	}
	for i := range loans {
		if errs[i] != nil {
			result.Rejected = append(result.Rejected, Rejection{Loan: loans[i], Err: errs[i]})
			continue
		}
		l := out[i]
		result.Enriched = append(result.Enriched, l)
		if f := l.Risk.Flags; f != 0 {
			result.Flagged++
			for _, bit := range []domain.RiskFlag{domain.FlagUnknownProduct, domain.FlagZeroExposure} {
				if f.Has(bit) {
					result.FlagCounts[bit]++
				}
			}
		}
	}
	return result, nil
}
