package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"ifrs9-risk-lab/internal/domain"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid risk parameters")

// ScoreBand maps scores >= MinScore to a base 12-month PD.
type ScoreBand struct {
	MinScore int     `yaml:"min_score"`
	PD       float64 `yaml:"pd"`
}

// DPDBand maps days past due <= MaxDays to a PD multiplier.
type DPDBand struct {
	MaxDays    int     `yaml:"max_days"`
	Multiplier float64 `yaml:"multiplier"`
}

// ProductParams are the per-product risk parameters.
// An LGD band with LGDMin == LGDMax is fixed and consumes no random draw.
type ProductParams struct {
	PDMultiplier float64 `yaml:"pd_multiplier"`
	LGDMin       float64 `yaml:"lgd_min"`
	LGDMax       float64 `yaml:"lgd_max"`
}

// ProductTable holds one entry per recognized product. It is a struct rather
// than a map so that adding a product is a compile-time change.
type ProductTable struct {
	Mortgage     ProductParams `yaml:"mortgage"`
	PersonalLoan ProductParams `yaml:"personal_loan"`
	AutoLoan     ProductParams `yaml:"auto_loan"`
	CreditCard   ProductParams `yaml:"credit_card"`
	SMELoan      ProductParams `yaml:"sme_loan"`
}

// Lookup returns the parameters for p and whether p is recognized.
func (t *ProductTable) Lookup(p domain.ProductType) (ProductParams, bool) {
	switch p {
	case domain.ProductMortgage:
		return t.Mortgage, true
	case domain.ProductPersonalLoan:
		return t.PersonalLoan, true
	case domain.ProductAutoLoan:
		return t.AutoLoan, true
	case domain.ProductCreditCard:
		return t.CreditCard, true
	case domain.ProductSMELoan:
		return t.SMELoan, true
	}
	return ProductParams{}, false
}

// StagingThresholds are the SICR and default triggers.
type StagingThresholds struct {
	DefaultDPD  int     `yaml:"default_dpd"`  // stage 3 when dpd > DefaultDPD
	SICRDPD     int     `yaml:"sicr_dpd"`     // stage 2 when dpd >= SICRDPD
	ScoreDrop   int     `yaml:"score_drop"`   // stage 2 when origination - current > ScoreDrop
	PDThreshold float64 `yaml:"pd_threshold"` // stage 2 when pd_12m > PDThreshold
}

// Rounding sets the persisted precision of derived fields.
type Rounding struct {
	Enabled bool  `yaml:"enabled"`
	PD      int32 `yaml:"pd"`
	LGD     int32 `yaml:"lgd"`
	ECL     int32 `yaml:"ecl"`
	Rate    int32 `yaml:"rate"`
}

// Params configures the engine. Start from DefaultParams.
type Params struct {
	ScoreLadder []ScoreBand `yaml:"score_ladder"` // descending by MinScore
	FloorPD     float64     `yaml:"floor_pd"`     // base PD below the lowest band

	DPDBands      []DPDBand `yaml:"dpd_bands"`      // ascending by MaxDays
	DPDMultiplier float64   `yaml:"dpd_multiplier"` // beyond the last band

	Products       ProductTable  `yaml:"products"`
	DefaultProduct ProductParams `yaml:"default_product"`

	// LifetimeMultiplier approximates lifetime PD as pd_12m * multiplier.
	// It stands in for a term-structure model.
	LifetimeMultiplier float64 `yaml:"lifetime_multiplier"`

	Staging  StagingThresholds `yaml:"staging"`
	Rounding Rounding          `yaml:"rounding"`
}

// DefaultParams returns the reference calibration.
func DefaultParams() Params {
	return Params{
		ScoreLadder: []ScoreBand{
			{MinScore: 750, PD: 0.005},
			{MinScore: 700, PD: 0.01},
			{MinScore: 650, PD: 0.025},
			{MinScore: 600, PD: 0.05},
		},
		FloorPD: 0.10,
		DPDBands: []DPDBand{
			{MaxDays: 0, Multiplier: 1.0},
			{MaxDays: 30, Multiplier: 2.0},
			{MaxDays: 90, Multiplier: 4.0},
		},
		DPDMultiplier: 8.0,
		Products: ProductTable{
			Mortgage:     ProductParams{PDMultiplier: 0.7, LGDMin: 0.15, LGDMax: 0.30},
			PersonalLoan: ProductParams{PDMultiplier: 1.2, LGDMin: 0.50, LGDMax: 0.70},
			AutoLoan:     ProductParams{PDMultiplier: 0.9, LGDMin: 0.25, LGDMax: 0.40},
			CreditCard:   ProductParams{PDMultiplier: 1.5, LGDMin: 0.60, LGDMax: 0.80},
			SMELoan:      ProductParams{PDMultiplier: 1.3, LGDMin: 0.40, LGDMax: 0.60},
		},
		DefaultProduct:     ProductParams{PDMultiplier: 1.0, LGDMin: 0.50, LGDMax: 0.50},
		LifetimeMultiplier: 3.0,
		Staging: StagingThresholds{
			DefaultDPD:  90,
			SICRDPD:     30,
			ScoreDrop:   100,
			PDThreshold: 0.03,
		},
		Rounding: Rounding{Enabled: true, PD: 6, LGD: 4, ECL: 2, Rate: 4},
	}
}

// Validate checks internal consistency of the parameters.
func (p *Params) Validate() error {
	if len(p.ScoreLadder) == 0 {
		return fmt.Errorf("%w: score ladder is empty", ErrInvalidParams)
	}
	for i, b := range p.ScoreLadder {
		if !isProbability(b.PD) {
			return fmt.Errorf("%w: score band %d pd %v outside [0,1]", ErrInvalidParams, b.MinScore, b.PD)
		}
		if i > 0 && b.MinScore >= p.ScoreLadder[i-1].MinScore {
			return fmt.Errorf("%w: score ladder must be strictly descending at %d", ErrInvalidParams, b.MinScore)
		}
	}
	if !isProbability(p.FloorPD) {
		return fmt.Errorf("%w: floor pd %v outside [0,1]", ErrInvalidParams, p.FloorPD)
	}

	prev := 0.0
	for i, b := range p.DPDBands {
		if i > 0 && b.MaxDays <= p.DPDBands[i-1].MaxDays {
			return fmt.Errorf("%w: dpd bands must be strictly ascending at %d", ErrInvalidParams, b.MaxDays)
		}
		if b.Multiplier <= 0 || b.Multiplier < prev {
			return fmt.Errorf("%w: dpd multiplier %v at %d must be positive and non-decreasing", ErrInvalidParams, b.Multiplier, b.MaxDays)
		}
		prev = b.Multiplier
	}
	if p.DPDMultiplier <= 0 || p.DPDMultiplier < prev {
		return fmt.Errorf("%w: dpd multiplier beyond last band must be >= %v", ErrInvalidParams, prev)
	}

	for _, product := range domain.AllProducts() {
		pp, _ := p.Products.Lookup(product)
		if err := pp.validate(product.String()); err != nil {
			return err
		}
	}
	if err := p.DefaultProduct.validate("default"); err != nil {
		return err
	}

	if p.LifetimeMultiplier < 1 {
		return fmt.Errorf("%w: lifetime multiplier %v must be >= 1", ErrInvalidParams, p.LifetimeMultiplier)
	}
	if p.Staging.SICRDPD > p.Staging.DefaultDPD {
		return fmt.Errorf("%w: sicr dpd %d exceeds default dpd %d", ErrInvalidParams, p.Staging.SICRDPD, p.Staging.DefaultDPD)
	}
	if !isProbability(p.Staging.PDThreshold) {
		return fmt.Errorf("%w: pd threshold %v outside [0,1]", ErrInvalidParams, p.Staging.PDThreshold)
	}
	return nil
}

// Digest fingerprints the calibration as the hex SHA256 of its YAML form.
// Any parameter change yields a different digest.
func (p *Params) Digest() (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal risk parameters: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (pp ProductParams) validate(name string) error {
	if pp.PDMultiplier <= 0 {
		return fmt.Errorf("%w: %s pd multiplier must be positive", ErrInvalidParams, name)
	}
	if !isProbability(pp.LGDMin) || !isProbability(pp.LGDMax) || pp.LGDMin > pp.LGDMax {
		return fmt.Errorf("%w: %s lgd band [%v,%v] invalid", ErrInvalidParams, name, pp.LGDMin, pp.LGDMax)
	}
	return nil
}

func isProbability(v float64) bool {
	return v >= 0 && v <= 1
}
