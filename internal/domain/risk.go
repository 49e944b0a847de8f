package domain

import "strings"

// RiskFlag marks records that were enriched through a fallback path.
type RiskFlag uint8

const (
	// FlagUnknownProduct: product_type not recognized, default multiplier and LGD used.
	FlagUnknownProduct RiskFlag = 1 << iota
	// FlagZeroExposure: outstanding_balance is zero, ecl_rate set to the sentinel.
	FlagZeroExposure
)

// Has reports whether all bits of f are set.
func (r RiskFlag) Has(f RiskFlag) bool {
	return r&f == f
}

// Names returns the set flag names in a stable order.
func (r RiskFlag) Names() []string {
	var names []string
	if r.Has(FlagUnknownProduct) {
		names = append(names, "unknown_product")
	}
	if r.Has(FlagZeroExposure) {
		names = append(names, "zero_exposure")
	}
	return names
}

// String joins flag names with "|", or returns "" when no flag is set.
func (r RiskFlag) String() string {
	return strings.Join(r.Names(), "|")
}

// ECLRateUndefined is the ecl_rate sentinel written when exposure is zero.
const ECLRateUndefined = 0.0

// RiskMetrics holds the engine-derived fields, in persisted column order.
type RiskMetrics struct {
	PD12M      float64 // 12-month probability of default, [0,1]
	PDLifetime float64 // lifetime probability of default, >= PD12M
	LGD        float64 // loss given default, [0,1]
	Stage      Stage
	ECLAmount  float64 // currency units, >= 0
	ECLRate    float64 // percent of outstanding balance, [0,100]

	// Flags is not persisted; DeriveFlags recomputes it from a stored record.
	Flags RiskFlag
}

// DeriveFlags recomputes the audit flags of an enriched record.
func DeriveFlags(l *Loan) RiskFlag {
	var f RiskFlag
	if !l.ProductType.Known() {
		f |= FlagUnknownProduct
	}
	if l.OutstandingBalance == 0 {
		f |= FlagZeroExposure
	}
	return f
}
