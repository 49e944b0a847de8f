package engine

// Lifetime extrapolates lifetime PD from the 12-month PD.
//
// This is a flat multiple of the 12-month PD, not an integrated survival
// curve. It is a known approximation kept for comparability with the
// reference data; replacing it needs a calibrated term structure.
type Lifetime struct {
	multiplier float64
}

// NewLifetime creates a Lifetime extrapolator.
func NewLifetime(multiplier float64) *Lifetime {
	return &Lifetime{multiplier: multiplier}
}

// PDLifetime returns min(pd12m * multiplier, 1).
func (l *Lifetime) PDLifetime(pd12m float64) float64 {
	return clamp01(pd12m * l.multiplier)
}
