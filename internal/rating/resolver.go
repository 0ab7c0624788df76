// internal/rating/resolver.go
package rating

import (
	"fmt"
	"sort"

	"quote-engine/internal/models"
)

// Surcharge flag names, applied in sorted order by the engine.
const (
	SurchargeHighHazard     = "high_hazard_industry"
	SurchargeHighLimit      = "high_limit"
	SurchargeLiquorExposure = "liquor_exposure"
)

// Resolve maps a validated CoverageRequest to normalized rating factors using
// the supplied table snapshot. An unrecognized jurisdiction fails the
// resolution rather than silently defaulting.
func Resolve(req *models.CoverageRequest, t *Tables) (*models.RiskFactors, error) {
	jur, ok := t.Jurisdictions[req.Jurisdiction]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedJurisdiction, req.Jurisdiction)
	}

	class, businessMult := resolveBusinessClass(req.BusinessType, t)

	bandIdx, bandMult := t.Band(req.Limit)
	if bandIdx < 0 {
		return nil, fmt.Errorf("%w: no limit band covers %d", ErrMissingTableEntry, req.Limit)
	}

	surcharges := deriveSurcharges(req, class, t)

	return &models.RiskFactors{
		BaseRateClass:       class,
		BusinessMultiplier:  businessMult,
		LocationMultiplier:  jur.Multiplier,
		LimitBandMultiplier: bandMult,
		LimitBand:           bandIdx,
		Surcharges:          surcharges,
		TableVersion:        t.Version,
	}, nil
}

// resolveBusinessClass looks up the business type by exact match first,
// falling back through the taxonomy to the nearest configured parent.
func resolveBusinessClass(businessType string, t *Tables) (string, float64) {
	if businessType == "" {
		businessType = models.BusinessTypeOther
	}
	return t.BusinessMultiplier(businessType)
}

// deriveSurcharges computes each surcharge flag independently and unions the
// results into a sorted set.
func deriveSurcharges(req *models.CoverageRequest, class string, t *Tables) []string {
	set := make(map[string]bool)

	if t.IsHighHazard(class) {
		set[SurchargeHighHazard] = true
	}
	if req.CoverageType == models.CoverageLiquorLiability {
		set[SurchargeLiquorExposure] = true
	}
	if t.HighLimitThreshold > 0 && req.Limit >= t.HighLimitThreshold {
		set[SurchargeHighLimit] = true
	}

	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
