package engine

import (
	"fmt"

	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/domain"
)

// Engine runs the risk pipeline for single records. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	params   Params
	digest   string
	rate     *RateModel
	lifetime *Lifetime
	severity *SeverityModel
	stager   *Stager
	loss     *LossCalculator
	round    rounder
	streams  StreamFactory
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the audit logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine. Params are validated.
func New(params Params, streams StreamFactory, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if streams == nil {
		return nil, fmt.Errorf("%w: stream factory is required", ErrInvalidParams)
	}
	digest, err := params.Digest()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		params:   params,
		digest:   digest,
		rate:     NewRateModel(params),
		lifetime: NewLifetime(params.LifetimeMultiplier),
		severity: NewSeverityModel(params),
		stager:   NewStager(params.Staging),
		loss:     NewLossCalculator(params.Rounding),
		round:    newRounder(params.Rounding),
		streams:  streams,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the engine parameters.
func (e *Engine) Params() Params {
	return e.params
}

// ParamsDigest returns the fingerprint of the engine calibration.
func (e *Engine) ParamsDigest() string {
	return e.digest
}

// Classify computes the derived fields of one record without modifying it.
// Invalid engine inputs are rejected with a *domain.ValidationError.
func (e *Engine) Classify(l *domain.Loan) (domain.RiskMetrics, error) {
	if err := domain.ValidateEngineInput(l); err != nil {
		return domain.RiskMetrics{}, err
	}
	return e.classify(l, e.streams.Stream(l.LoanID)), nil
}

// Enrich returns a copy of l carrying the derived fields.
func (e *Engine) Enrich(l *domain.Loan) (*domain.Loan, error) {
	m, err := e.Classify(l)
	if err != nil {
		return nil, err
	}
	out := l.Clone()
	out.Risk = &m
	return out, nil
}

func (e *Engine) classify(l *domain.Loan, src RandomSource) domain.RiskMetrics {
	var flags domain.RiskFlag
	if !l.ProductType.Known() {
		flags |= domain.FlagUnknownProduct
		e.logger.Warn("unrecognized product type, using default parameters",
			zap.String("loan_id", l.LoanID),
			zap.String("product_type", l.ProductType.String()),
		)
	}

	// lifetime PD is taken from the unrounded 12-month PD
	pd12 := e.rate.PD12M(l.CreditScoreCurrent, l.DaysPastDue, l.ProductType)
	pdLife := e.lifetime.PDLifetime(pd12)
	lgd := e.severity.LGD(l.ProductType, src)

	pd12 = e.round.pd(pd12)
	pdLife = e.round.pd(pdLife)
	lgd = e.round.lgd(lgd)

	stage := e.stager.Stage(l.DaysPastDue, l.CreditScoreOrigination, l.CreditScoreCurrent, pd12)

	amount, rate, zero := e.loss.ECL(l.OutstandingBalance, stage, pd12, pdLife, lgd)
	if zero {
		flags |= domain.FlagZeroExposure
		e.logger.Warn("zero exposure, ecl rate undefined",
			zap.String("loan_id", l.LoanID),
		)
	}

	return domain.RiskMetrics{
		PD12M:      pd12,
		PDLifetime: pdLife,
		LGD:        lgd,
		Stage:      stage,
		ECLAmount:  amount,
		ECLRate:    rate,
		Flags:      flags,
	}
}
