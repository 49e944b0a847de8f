package engine

import "github.com/shopspring/decimal"

// rounder applies half-to-even decimal rounding to derived fields, the
// convention of the persisted portfolio files.
type rounder struct {
	enabled bool
	cfg     Rounding
}

func newRounder(r Rounding) rounder {
	return rounder{enabled: r.Enabled, cfg: r}
}

func (r rounder) pd(v float64) float64   { return r.round(v, r.cfg.PD) }
func (r rounder) lgd(v float64) float64  { return r.round(v, r.cfg.LGD) }
func (r rounder) ecl(v float64) float64  { return r.round(v, r.cfg.ECL) }
func (r rounder) rate(v float64) float64 { return r.round(v, r.cfg.Rate) }

func (r rounder) round(v float64, places int32) float64 {
	if !r.enabled {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}
