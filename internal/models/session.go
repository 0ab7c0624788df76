package models

import "time"

// SessionStatus is the lifecycle state of one conversation.
type SessionStatus string

const (
	StatusCollecting SessionStatus = "collecting"
	StatusReady      SessionStatus = "ready"
	StatusQuoted     SessionStatus = "quoted"
	StatusEscalated  SessionStatus = "escalated"
	StatusAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether no further transition is allowed out of s.
func (s SessionStatus) Terminal() bool {
	return s == StatusQuoted || s == StatusEscalated || s == StatusAbandoned
}

// CanTransitionTo enforces the monotonic forward lifecycle. The only repeated
// state is collecting -> collecting (further slot fills).
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusCollecting:
		return next == StatusCollecting || next == StatusReady || next == StatusAbandoned
	case StatusReady:
		return next == StatusQuoted || next == StatusEscalated || next == StatusAbandoned
	default:
		return false
	}
}

// SlotSource records where a slot value came from.
type SlotSource string

const (
	SourceUserExplicit SlotSource = "user_explicit"
	SourceNluInferred  SlotSource = "nlu_inferred"
	SourceHint         SlotSource = "hint"
)

// SlotValue is one filled slot with provenance for audit.
type SlotValue struct {
	Value      interface{} `json:"value"`
	Source     SlotSource  `json:"source"`
	Confidence float64     `json:"confidence"`
	Turn       int         `json:"turn"`
	Validated  bool        `json:"validated"`
}

// Turn is one inbound message in the conversation.
type Turn struct {
	Index  int       `json:"index"`
	Text   string    `json:"text"`
	Intent string    `json:"intent,omitempty"`
	At     time.Time `json:"at"`
}

// ConversationSession identifies one ongoing interaction.
type ConversationSession struct {
	ID        string               `json:"id"`
	Status    SessionStatus        `json:"status"`
	Intent    string               `json:"intent,omitempty"`
	Turns     []Turn               `json:"turns"`
	Slots     map[string]SlotValue `json:"slots"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// NewSession creates a session in the collecting state.
func NewSession(id string) *ConversationSession {
	now := time.Now().UTC()
	return &ConversationSession{
		ID:        id,
		Status:    StatusCollecting,
		Slots:     make(map[string]SlotValue),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy: mutating the clone's Slots or Turns never
// touches the original.
func (s *ConversationSession) Clone() *ConversationSession {
	copied := *s
	copied.Slots = make(map[string]SlotValue, len(s.Slots))
	for name, v := range s.Slots {
		copied.Slots[name] = v
	}
	if s.Turns != nil {
		copied.Turns = make([]Turn, len(s.Turns))
		copy(copied.Turns, s.Turns)
	}
	return &copied
}

// AppendTurn records an inbound turn and returns its index.
func (s *ConversationSession) AppendTurn(text, intent string) int {
	idx := len(s.Turns)
	s.Turns = append(s.Turns, Turn{
		Index:  idx,
		Text:   text,
		Intent: intent,
		At:     time.Now().UTC(),
	})
	s.UpdatedAt = time.Now().UTC()
	return idx
}
