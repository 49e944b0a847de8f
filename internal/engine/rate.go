package engine

import "ifrs9-risk-lab/internal/domain"

// RateModel derives the 12-month PD from score, delinquency and product.
type RateModel struct {
	ladder        []ScoreBand
	floorPD       float64
	dpdBands      []DPDBand
	dpdMultiplier float64
	products      ProductTable
	fallback      ProductParams
}

// NewRateModel creates a RateModel from validated params.
func NewRateModel(p Params) *RateModel {
	return &RateModel{
		ladder:        p.ScoreLadder,
		floorPD:       p.FloorPD,
		dpdBands:      p.DPDBands,
		dpdMultiplier: p.DPDMultiplier,
		products:      p.Products,
		fallback:      p.DefaultProduct,
	}
}

// PD12M returns min(base * dpd multiplier * product multiplier, 1).
// Unrecognized products use the default multiplier.
func (m *RateModel) PD12M(scoreCurrent, daysPastDue int, product domain.ProductType) float64 {
	pd := m.BasePD(scoreCurrent) * m.DPDMultiplier(daysPastDue) * m.ProductMultiplier(product)
	return clamp01(pd)
}

// BasePD returns the ladder PD for the first band whose lower bound the score reaches.
func (m *RateModel) BasePD(score int) float64 {
	for _, b := range m.ladder {
		if score >= b.MinScore {
			return b.PD
		}
	}
	return m.floorPD
}

// DPDMultiplier returns the delinquency multiplier for daysPastDue.
func (m *RateModel) DPDMultiplier(daysPastDue int) float64 {
	for _, b := range m.dpdBands {
		if daysPastDue <= b.MaxDays {
			return b.Multiplier
		}
	}
	return m.dpdMultiplier
}

// ProductMultiplier returns the product risk adjustment.
func (m *RateModel) ProductMultiplier(product domain.ProductType) float64 {
	if pp, ok := m.products.Lookup(product); ok {
		return pp.PDMultiplier
	}
	return m.fallback.PDMultiplier
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
