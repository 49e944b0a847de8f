package engine

import "ifrs9-risk-lab/internal/domain"

// Stager assigns the IFRS 9 stage. Rules are evaluated in priority order:
// default (stage 3) first, then SICR triggers (stage 2), else stage 1.
type Stager struct {
	t StagingThresholds
}

// NewStager creates a Stager.
func NewStager(t StagingThresholds) *Stager {
	return &Stager{t: t}
}

// Stage classifies one record. pd12m must already be computed.
func (s *Stager) Stage(daysPastDue, scoreOrigination, scoreCurrent int, pd12m float64) domain.Stage {
	if daysPastDue > s.t.DefaultDPD {
		return domain.Stage3
	}
	if daysPastDue >= s.t.SICRDPD ||
		scoreOrigination-scoreCurrent > s.t.ScoreDrop ||
		pd12m > s.t.PDThreshold {
		return domain.Stage2
	}
	return domain.Stage1
}

// LossCalculator computes ECL on the horizon selected by the stage.
type LossCalculator struct {
	r rounder
}

// NewLossCalculator creates a LossCalculator.
func NewLossCalculator(r Rounding) *LossCalculator {
	return &LossCalculator{r: newRounder(r)}
}

// ECL returns the expected credit loss and its rate as a percentage of
// exposure. Zero exposure yields domain.ECLRateUndefined and zeroExposure=true.
func (c *LossCalculator) ECL(exposure float64, stage domain.Stage, pd12m, pdLifetime, lgd float64) (amount, rate float64, zeroExposure bool) {
	pd := pd12m
	if stage.Lifetime() {
		pd = pdLifetime
	}
	amount = c.r.ecl(exposure * pd * lgd)

	if exposure == 0 {
		return amount, domain.ECLRateUndefined, true
	}
	rate = c.r.rate(amount / exposure * 100)
	if rate > 100 {
		rate = 100
	}
	return amount, rate, false
}
