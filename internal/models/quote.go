package models

import "time"

// RiskFactors holds the normalized multipliers derived from a CoverageRequest.
// Every multiplier is strictly positive; Surcharges is a sorted set.
type RiskFactors struct {
	BaseRateClass       string   `json:"baseRateClass"`
	BusinessMultiplier  float64  `json:"businessMultiplier"`
	LocationMultiplier  float64  `json:"locationMultiplier"`
	LimitBandMultiplier float64  `json:"limitBandMultiplier"`
	LimitBand           int      `json:"limitBand"`
	Surcharges          []string `json:"surcharges"`
	TableVersion        string   `json:"tableVersion"`
}

// BreakdownEntry records one factor's contribution in application order.
// Running is the product after applying this factor, so replaying the
// breakdown reproduces the premium exactly.
type BreakdownEntry struct {
	Factor  string  `json:"factor"`
	Value   float64 `json:"value"`
	Running float64 `json:"running"`
}

// Quote is the deterministic output of the rating engine. It carries no ids
// or clocks so identical inputs produce byte-identical quotes.
type Quote struct {
	Premium      int64            `json:"premium"`
	Deductible   int64            `json:"deductible"`
	Limit        int64            `json:"limit"`
	TermDays     int              `json:"termDays"`
	Breakdown    []BreakdownEntry `json:"breakdown"`
	AutoApproved bool             `json:"autoApproved"`
	TableVersion string           `json:"tableVersion"`
}

// IssuedQuote wraps a Quote with the session-scoped identity and dates the
// orchestrator assigns at issue time.
type IssuedQuote struct {
	QuoteID        string `json:"quoteId"`
	SessionID      string `json:"sessionId"`
	Status         string `json:"status"`
	CreatedDate    string `json:"createdDate"`    // YYYY-MM-DD
	ExpirationDate string `json:"expirationDate"` // YYYY-MM-DD
	Quote          Quote  `json:"quote"`
}

// DateLayout is the wire format for quote dates.
const DateLayout = "2006-01-02"

// NewIssuedQuote stamps a quote with identity and a term-bounded validity
// window.
func NewIssuedQuote(quoteID, sessionID string, q Quote, now time.Time) *IssuedQuote {
	return &IssuedQuote{
		QuoteID:        quoteID,
		SessionID:      sessionID,
		Status:         "Active",
		CreatedDate:    now.UTC().Format(DateLayout),
		ExpirationDate: now.UTC().AddDate(0, 0, q.TermDays).Format(DateLayout),
		Quote:          q,
	}
}
