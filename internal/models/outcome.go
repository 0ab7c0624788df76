package models

// KnowledgeSnippet is an externally supplied, pre-scored retrieval candidate.
type KnowledgeSnippet struct {
	Text     string  `json:"text"`
	SourceID string  `json:"sourceId"`
	Score    float64 `json:"score"`
}

// InfoAnswer carries ranked snippets for response generation.
type InfoAnswer struct {
	Query    string             `json:"query"`
	Snippets []KnowledgeSnippet `json:"snippets"`
}

// Clarification lists every missing or violated field so a single follow-up
// turn can supply them all.
type Clarification struct {
	Fields []FieldError `json:"fields"`
}

// Escalation routes a session to human review.
type Escalation struct {
	Reason string `json:"reason"`
	// Quote is present when a non-auto-approved quote was computed and only
	// needs an underwriter's sign-off.
	Quote *Quote `json:"quote,omitempty"`
}

// TurnResult is the outbound result of one turn. Exactly one of the pointer
// fields is set.
type TurnResult struct {
	SessionID     string         `json:"sessionId"`
	Status        SessionStatus  `json:"status"`
	Info          *InfoAnswer    `json:"info,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`
	Quote         *IssuedQuote   `json:"quote,omitempty"`
	Escalation    *Escalation    `json:"escalation,omitempty"`
}
