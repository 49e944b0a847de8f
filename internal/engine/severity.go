package engine

import "ifrs9-risk-lab/internal/domain"

// SeverityModel derives LGD from the product's LGD band.
type SeverityModel struct {
	products ProductTable
	fallback ProductParams
}

// NewSeverityModel creates a SeverityModel from validated params.
func NewSeverityModel(p Params) *SeverityModel {
	return &SeverityModel{products: p.Products, fallback: p.DefaultProduct}
}

// LGD draws uniformly from the product band. Fixed bands (min == max),
// including the default for unrecognized products, do not consume a draw.
func (m *SeverityModel) LGD(product domain.ProductType, src RandomSource) float64 {
	pp, ok := m.products.Lookup(product)
	if !ok {
		pp = m.fallback
	}
	if pp.LGDMin == pp.LGDMax {
		return pp.LGDMin
	}
	u := src.Float64()
	return clamp01(pp.LGDMin + u*(pp.LGDMax-pp.LGDMin))
}

// Band returns the LGD interval used for product.
func (m *SeverityModel) Band(product domain.ProductType) (lo, hi float64) {
	pp, ok := m.products.Lookup(product)
	if !ok {
		pp = m.fallback
	}
	return pp.LGDMin, pp.LGDMax
}
