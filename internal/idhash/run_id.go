package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/mr-tron/base58"

	"ifrs9-risk-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(reporting_date|seed|data_source|params_digest|portfolio_digest)
// Returns the base58-encoded hash.
func ComputeRunID(
	reportingDate time.Time,
	seed uint64,
	dataSource string,
	paramsDigest string,
	portfolioDigest string,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s",
		reportingDate.UTC().Format(domain.DateLayout),
		seed,
		dataSource,
		paramsDigest,
		portfolioDigest,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ComputePortfolioDigest hashes the engine inputs of loans in order.
// Returns hex-encoded hash (64 characters).
func ComputePortfolioDigest(loans []*domain.Loan) string {
	h := sha256.New()
	buf := make([]byte, 0, 128)
	for _, l := range loans {
		buf = buf[:0]
		buf = append(buf, l.LoanID...)
		buf = append(buf, '|')
		buf = append(buf, string(l.ProductType)...)
		buf = append(buf, '|')
		buf = strconv.AppendFloat(buf, l.OutstandingBalance, 'g', -1, 64)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(l.CreditScoreOrigination), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(l.CreditScoreCurrent), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(l.DaysPastDue), 10)
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DecodeRunID returns the raw hash bytes of a run_id.
func DecodeRunID(runID string) ([]byte, error) {
	b, err := base58.Decode(runID)
	if err != nil {
		return nil, fmt.Errorf("decode run id %q: %w", runID, err)
	}
	if len(b) != sha256.Size {
		return nil, fmt.Errorf("decode run id %q: want %d bytes, got %d", runID, sha256.Size, len(b))
	}
	return b, nil
}
