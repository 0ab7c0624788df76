package models

// CoverageType enumerates the supported lines of coverage.
type CoverageType string

const (
	CoverageGeneralLiability CoverageType = "general_liability"
	CoverageLiquorLiability  CoverageType = "liquor_liability"
	CoverageProperty         CoverageType = "property"
)

// BusinessTypeOther is the conservative fallback category for business types
// with no configured rate entry.
const BusinessTypeOther = "other"

// CoverageRequest is the structured, fully-merged slot set for one quote
// attempt. It exists only after the validator has confirmed the slot set.
type CoverageRequest struct {
	BusinessType string                 `json:"businessType"`
	CoverageType CoverageType           `json:"coverageType"`
	Limit        int64                  `json:"limit"` // whole currency units
	Jurisdiction string                 `json:"jurisdiction"`
	City         string                 `json:"city,omitempty"`
	Extras       map[string]interface{} `json:"extras,omitempty"`
}

// FieldError describes one missing or violated field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Intent names returned by the NLU collaborator.
const (
	IntentInfo          = "info_query"
	IntentQuote         = "quote_request"
	IntentClarification = "clarification_answer"
)

// SlotCandidate is one slot value extracted by the NLU collaborator.
type SlotCandidate struct {
	Name       string      `json:"name"`
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
	Explicit   bool        `json:"explicit"`
}

// Classification is the NLU collaborator's verdict on one turn.
type Classification struct {
	Intent     string          `json:"intent"`
	Confidence float64         `json:"confidence"`
	Slots      []SlotCandidate `json:"slots"`
}
