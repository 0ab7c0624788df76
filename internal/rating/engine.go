// internal/rating/engine.go
package rating

import (
	"fmt"
	"math"

	"quote-engine/internal/models"
)

// DefaultTermDays is the policy term applied to every quote.
const DefaultTermDays = 365

// Breakdown factor names in canonical application order.
const (
	FactorBaseRate     = "base_rate"
	FactorBusinessType = "business_type"
	FactorLocation     = "location"
	FactorLimitBand    = "limit_band"
)

// Engine computes quotes from resolved risk factors. It holds only policy
// configuration, never mutable state, so rating stays a pure computation.
type Engine struct {
	termDays int
}

func NewEngine(termDays int) *Engine {
	if termDays <= 0 {
		termDays = DefaultTermDays
	}
	return &Engine{termDays: termDays}
}

// Rate computes the premium, deductible, and breakdown for a request.
// Premium = base_rate x product of all multipliers, rounded half-up to the
// nearest whole unit. Deductibles are exact table entries and never rounded.
// The output contains no ids or clocks, so identical inputs yield
// byte-identical quotes.
func (e *Engine) Rate(req *models.CoverageRequest, rf *models.RiskFactors, t *Tables) (*models.Quote, error) {
	base, ok := t.BaseRates[string(req.CoverageType)]
	if !ok {
		return nil, fmt.Errorf("%w: no base rate for coverage type %q", ErrMissingTableEntry, req.CoverageType)
	}

	breakdown := make([]models.BreakdownEntry, 0, 4+len(rf.Surcharges))
	running := base
	breakdown = append(breakdown, models.BreakdownEntry{Factor: FactorBaseRate, Value: base, Running: running})

	apply := func(factor string, value float64) {
		running *= value
		breakdown = append(breakdown, models.BreakdownEntry{Factor: factor, Value: value, Running: running})
	}

	apply(FactorBusinessType, rf.BusinessMultiplier)
	apply(FactorLocation, rf.LocationMultiplier)
	apply(FactorLimitBand, rf.LimitBandMultiplier)

	// Surcharges arrive pre-sorted from the resolver; applying them in that
	// order keeps the breakdown deterministic regardless of input ordering.
	for _, name := range rf.Surcharges {
		mult, ok := t.Surcharges[name]
		if !ok {
			return nil, fmt.Errorf("%w: no multiplier for surcharge %q", ErrMissingTableEntry, name)
		}
		apply("surcharge:"+name, mult)
	}

	deductible, err := e.deductibleFor(req.CoverageType, rf.LimitBand, t)
	if err != nil {
		return nil, err
	}

	return &models.Quote{
		Premium:      RoundHalfUp(running),
		Deductible:   deductible,
		Limit:        req.Limit,
		TermDays:     e.termDays,
		Breakdown:    breakdown,
		AutoApproved: len(rf.Surcharges) == 0 && req.Limit <= t.AutoApproveLimit,
		TableVersion: t.Version,
	}, nil
}

func (e *Engine) deductibleFor(coverage models.CoverageType, band int, t *Tables) (int64, error) {
	entries, ok := t.Deductibles[string(coverage)]
	if !ok {
		return 0, fmt.Errorf("%w: no deductible table for coverage type %q", ErrMissingTableEntry, coverage)
	}
	if band < 0 || band >= len(entries) {
		return 0, fmt.Errorf("%w: no deductible entry for coverage %q band %d", ErrMissingTableEntry, coverage, band)
	}
	return entries[band], nil
}

// RoundHalfUp rounds to the nearest whole currency unit, halves away from
// zero toward positive infinity.
func RoundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// ReplayBreakdown recomputes the premium from the itemized breakdown in
// recorded order, verifying each running product along the way. It returns
// the reproduced premium for audit checks.
func ReplayBreakdown(q *models.Quote) (int64, error) {
	if len(q.Breakdown) == 0 {
		return 0, fmt.Errorf("empty breakdown")
	}

	running := q.Breakdown[0].Value
	if q.Breakdown[0].Running != running {
		return 0, fmt.Errorf("breakdown entry 0: running product mismatch")
	}
	for i, entry := range q.Breakdown[1:] {
		running *= entry.Value
		if entry.Running != running {
			return 0, fmt.Errorf("breakdown entry %d: running product mismatch", i+1)
		}
	}

	premium := RoundHalfUp(running)
	if premium != q.Premium {
		return premium, fmt.Errorf("breakdown replay produced %d, quote states %d", premium, q.Premium)
	}
	return premium, nil
}
