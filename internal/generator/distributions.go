package generator

import (
	"math/rand/v2"

	"ifrs9-risk-lab/internal/domain"
)

// weighted is a discrete distribution. Weights must sum to 1.
type weighted[T any] struct {
	values  []T
	weights []float64
}

func (w weighted[T]) pick(rng *rand.Rand) T {
	u := rng.Float64()
	acc := 0.0
	for i, p := range w.weights {
		acc += p
		if u < acc {
			return w.values[i]
		}
	}
	return w.values[len(w.values)-1]
}

type productProfile struct {
	logMean   float64
	logStdDev float64
	baseRate  float64
}

var productMix = weighted[domain.ProductType]{
	values: []domain.ProductType{
		domain.ProductMortgage,
		domain.ProductPersonalLoan,
		domain.ProductAutoLoan,
		domain.ProductCreditCard,
		domain.ProductSMELoan,
	},
	weights: []float64{0.35, 0.25, 0.20, 0.15, 0.05},
}

var profiles = map[domain.ProductType]productProfile{
	domain.ProductMortgage:     {logMean: 12.5, logStdDev: 0.5, baseRate: 4.5},
	domain.ProductPersonalLoan: {logMean: 9.5, logStdDev: 0.6, baseRate: 9.0},
	domain.ProductAutoLoan:     {logMean: 10.3, logStdDev: 0.4, baseRate: 6.5},
	domain.ProductCreditCard:   {logMean: 8.5, logStdDev: 0.5, baseRate: 18.0},
	domain.ProductSMELoan:      {logMean: 11.5, logStdDev: 0.7, baseRate: 7.5},
}

var dpdMix = weighted[int]{
	values:  []int{0, 30, 60, 90, 120, 180},
	weights: []float64{0.85, 0.08, 0.03, 0.02, 0.01, 0.01},
}

var regionMix = weighted[string]{
	values:  []string{"North", "South", "East", "West", "Central"},
	weights: []float64{0.25, 0.20, 0.20, 0.20, 0.15},
}

var sectors = []string{"Retail", "Manufacturing", "Services", "Construction", "Technology", "Healthcare"}
