package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-engine/internal/common/errors"
	"quote-engine/internal/common/logger"
	"quote-engine/internal/models"
	"quote-engine/internal/nlu"
	"quote-engine/internal/rating"
	"quote-engine/internal/retrieval"
	"quote-engine/internal/session"
	"quote-engine/internal/slots"
)

const testTableJSON = `{
	"version": "test-1",
	"base_rates": {
		"general_liability": 500,
		"liquor_liability": 900,
		"property": 350
	},
	"business_types": {
		"restaurant": 1.2,
		"retail": 1.0,
		"nightclub": 2.0,
		"other": 1.4
	},
	"taxonomy": {"cafe": "restaurant"},
	"high_hazard": ["nightclub"],
	"jurisdictions": {
		"NY": {"multiplier": 1.5, "limit_ceiling": 5000000}
	},
	"limit_bands": [
		{"threshold": 0, "multiplier": 1.0},
		{"threshold": 500000, "multiplier": 1.25},
		{"threshold": 1000000, "multiplier": 1.5}
	],
	"surcharges": {
		"high_hazard_industry": 1.25,
		"high_limit": 1.15,
		"liquor_exposure": 1.35
	},
	"high_limit_threshold": 2000000,
	"deductibles": {
		"general_liability": [500, 1000, 2500],
		"liquor_liability": [1000, 2500, 5000],
		"property": [1000, 2500, 5000]
	},
	"auto_approve_limit": 1000000
}`

// scriptedClassifier returns canned classifications in order.
type scriptedClassifier struct {
	script []func() (*models.Classification, error)
	calls  int
}

func (s *scriptedClassifier) Classify(_ context.Context, _ string, _ map[string]models.SlotValue) (*models.Classification, error) {
	if s.calls >= len(s.script) {
		return nil, fmt.Errorf("unexpected classify call %d", s.calls+1)
	}
	next := s.script[s.calls]
	s.calls++
	return next()
}

func classified(intent string, candidates ...models.SlotCandidate) func() (*models.Classification, error) {
	return func() (*models.Classification, error) {
		return &models.Classification{Intent: intent, Confidence: 0.95, Slots: candidates}, nil
	}
}

func classifyErr(err error) func() (*models.Classification, error) {
	return func() (*models.Classification, error) { return nil, err }
}

func explicit(name string, value interface{}) models.SlotCandidate {
	return models.SlotCandidate{Name: name, Value: value, Confidence: 0.95, Explicit: true}
}

func inferred(name string, value interface{}, confidence float64) models.SlotCandidate {
	return models.SlotCandidate{Name: name, Value: value, Confidence: confidence}
}

type fakeBackend struct {
	snippets []models.KnowledgeSnippet
	err      error
}

func (f *fakeBackend) Retrieve(_ context.Context, _ string) ([]models.KnowledgeSnippet, error) {
	return f.snippets, f.err
}

type captureRecorder struct {
	quotes      []*models.IssuedQuote
	escalations []string
}

func (c *captureRecorder) RecordQuote(_ context.Context, q *models.IssuedQuote) error {
	c.quotes = append(c.quotes, q)
	return nil
}

func (c *captureRecorder) RecordEscalation(_ context.Context, _ string, reason string) error {
	c.escalations = append(c.escalations, reason)
	return nil
}

type captureNotifier struct {
	escalations []*models.Escalation
}

func (c *captureNotifier) NotifyEscalation(_ context.Context, _ string, esc *models.Escalation) error {
	c.escalations = append(c.escalations, esc)
	return nil
}

type fixture struct {
	orch     *Orchestrator
	store    *session.MemoryStore
	recorder *captureRecorder
	notifier *captureNotifier
}

func newFixture(t *testing.T, classifier nlu.Classifier, backend retrieval.Backend) *fixture {
	t.Helper()

	tables, err := rating.ParseTables([]byte(testTableJSON))
	require.NoError(t, err)

	store := session.NewMemoryStore()
	recorder := &captureRecorder{}
	notifier := &captureNotifier{}

	orch := New(Options{
		Store:      store,
		Classifier: classifier,
		Retrieval:  backend,
		Snapshot:   rating.NewSnapshot(tables),
		Engine:     rating.NewEngine(rating.DefaultTermDays),
		Recorder:   recorder,
		Notifier:   notifier,
		Logger:     logger.NewTestLogger(t),
	})

	return &fixture{orch: orch, store: store, recorder: recorder, notifier: notifier}
}

func TestHandleTurn_TwoTurnFillToQuote(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote,
			explicit(slots.SlotBusinessType, "restaurant"),
			explicit(slots.SlotCoverageType, "general_liability"),
		),
		classified(models.IntentClarification,
			explicit(slots.SlotCoverageLimit, "$1,000,000"),
			explicit(slots.SlotLocation, "NY"),
		),
	}}
	fx := newFixture(t, classifier, nil)
	ctx := context.Background()

	// Turn 1: not enough slots yet.
	result, err := fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "I need insurance for my restaurant"})
	require.NoError(t, err)
	require.NotNil(t, result.Clarification)
	assert.Equal(t, models.StatusCollecting, result.Status)

	missing := make([]string, 0, len(result.Clarification.Fields))
	for _, fe := range result.Clarification.Fields {
		missing = append(missing, fe.Field)
	}
	assert.ElementsMatch(t, []string{slots.SlotCoverageLimit, slots.SlotLocation}, missing)

	// Turn 2: remaining slots arrive, quote auto-approves.
	result, err = fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "1 million, in NY"})
	require.NoError(t, err)
	require.NotNil(t, result.Quote)
	assert.Equal(t, models.StatusQuoted, result.Status)
	assert.NotEmpty(t, result.Quote.QuoteID)
	assert.Equal(t, "Active", result.Quote.Status)
	assert.Equal(t, int64(1350), result.Quote.Quote.Premium)
	assert.True(t, result.Quote.Quote.AutoApproved)

	// The issued quote was audited and the session is closed.
	require.Len(t, fx.recorder.quotes, 1)
	sess, err := fx.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQuoted, sess.Status)
	assert.Len(t, sess.Turns, 2)
}

func TestHandleTurn_SlotProvenance(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote,
			explicit(slots.SlotBusinessType, "restaurant"),
			inferred(slots.SlotCoverageType, "general_liability", 0.9),
			inferred(slots.SlotCoverageLimit, 1000000, 0.3), // below threshold, dropped
		),
	}}
	fx := newFixture(t, classifier, nil)

	result, err := fx.orch.HandleTurn(context.Background(), &TurnRequest{
		SessionID: "s1",
		Text:      "restaurant coverage",
		SlotHints: map[string]interface{}{slots.SlotCity: "Brooklyn"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Clarification)

	sess, err := fx.store.Get(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, models.SourceUserExplicit, sess.Slots[slots.SlotBusinessType].Source)
	assert.Equal(t, models.SourceNluInferred, sess.Slots[slots.SlotCoverageType].Source)
	assert.Equal(t, models.SourceHint, sess.Slots[slots.SlotCity].Source)
	_, filled := sess.Slots[slots.SlotCoverageLimit]
	assert.False(t, filled, "low-confidence inferred value must not fill the slot")
}

func TestHandleTurn_InferredNeverDisplacesValidatedSlot(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote,
			explicit(slots.SlotBusinessType, "restaurant"),
			explicit(slots.SlotCoverageType, "general_liability"),
		),
		classified(models.IntentClarification,
			inferred(slots.SlotBusinessType, "retail", 0.9),
			explicit(slots.SlotCoverageLimit, 1000000),
			explicit(slots.SlotLocation, "NY"),
		),
	}}
	fx := newFixture(t, classifier, nil)
	ctx := context.Background()

	result, err := fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "restaurant, general liability"})
	require.NoError(t, err)
	require.NotNil(t, result.Clarification)

	// The slots that survived the first turn are already validated.
	sess, err := fx.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, sess.Slots[slots.SlotBusinessType].Validated)
	assert.True(t, sess.Slots[slots.SlotCoverageType].Validated)

	// A confident NLU guess on the next turn must not displace them.
	result, err = fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "1 million in NY"})
	require.NoError(t, err)
	require.NotNil(t, result.Quote)

	sess, err = fx.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "restaurant", sess.Slots[slots.SlotBusinessType].Value)
	assert.Equal(t, models.SourceUserExplicit, sess.Slots[slots.SlotBusinessType].Source)
	// Priced with the restaurant multiplier, not the inferred retail one.
	assert.Equal(t, int64(1350), result.Quote.Quote.Premium)
}

func TestHandleTurn_NluTimeoutLeavesSessionUntouched(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classifyErr(nlu.ErrTimeout),
	}}
	fx := newFixture(t, classifier, nil)

	_, err := fx.orch.HandleTurn(context.Background(), &TurnRequest{SessionID: "s1", Text: "hello"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNluTimeout, errors.CodeOf(err))

	_, err = fx.store.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestHandleTurn_EscalatesNonAutoApprovable(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote,
			explicit(slots.SlotBusinessType, "nightclub"),
			explicit(slots.SlotCoverageType, "liquor_liability"),
			explicit(slots.SlotCoverageLimit, 500000),
			explicit(slots.SlotLocation, "NY"),
			explicit(slots.SlotLiquorLicense, true),
		),
	}}
	fx := newFixture(t, classifier, nil)

	result, err := fx.orch.HandleTurn(context.Background(), &TurnRequest{SessionID: "s1", Text: "nightclub liquor coverage"})
	require.NoError(t, err)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, models.StatusEscalated, result.Status)
	assert.Equal(t, ReasonManualReview, result.Escalation.Reason)

	// The computed quote rides along for the underwriter.
	require.NotNil(t, result.Escalation.Quote)
	assert.False(t, result.Escalation.Quote.AutoApproved)

	require.Len(t, fx.notifier.escalations, 1)
	assert.Equal(t, []string{ReasonManualReview}, fx.recorder.escalations)
}

func TestHandleTurn_EscalatesUnsupportedJurisdiction(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote,
			explicit(slots.SlotBusinessType, "restaurant"),
			explicit(slots.SlotCoverageType, "general_liability"),
			explicit(slots.SlotCoverageLimit, 500000),
			explicit(slots.SlotLocation, "AK"),
		),
	}}
	fx := newFixture(t, classifier, nil)

	result, err := fx.orch.HandleTurn(context.Background(), &TurnRequest{SessionID: "s1", Text: "alaska restaurant"})
	require.NoError(t, err)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, ReasonUnsupportedJurisdiction, result.Escalation.Reason)
	assert.Nil(t, result.Escalation.Quote)
}

func TestHandleTurn_ClosedSessionRejectsQuoteTurns(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote,
			explicit(slots.SlotBusinessType, "restaurant"),
			explicit(slots.SlotCoverageType, "general_liability"),
			explicit(slots.SlotCoverageLimit, 1000000),
			explicit(slots.SlotLocation, "NY"),
		),
		classified(models.IntentQuote, explicit(slots.SlotCoverageLimit, 2000000)),
		classified(models.IntentInfo),
	}}
	fx := newFixture(t, classifier, &fakeBackend{
		snippets: []models.KnowledgeSnippet{{Text: "GL basics", SourceID: "doc-1", Score: 0.8}},
	})
	ctx := context.Background()

	result, err := fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "full request"})
	require.NoError(t, err)
	require.NotNil(t, result.Quote)

	// A further quote attempt is rejected.
	_, err = fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "make it 2 million"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionClosed, errors.CodeOf(err))

	// Info queries still work on the closed session.
	result, err = fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "what does GL cover?"})
	require.NoError(t, err)
	require.NotNil(t, result.Info)
	assert.Len(t, result.Info.Snippets, 1)
}

func TestHandleTurn_InfoQueryRanksSnippets(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentInfo),
	}}
	fx := newFixture(t, classifier, &fakeBackend{snippets: []models.KnowledgeSnippet{
		{Text: "weak match", SourceID: "a", Score: 0.2},
		{Text: "strong match", SourceID: "b", Score: 0.9},
		{Text: "dup of b", SourceID: "b", Score: 0.4},
	}})

	result, err := fx.orch.HandleTurn(context.Background(), &TurnRequest{SessionID: "s1", Text: "what is a deductible?"})
	require.NoError(t, err)
	require.NotNil(t, result.Info)

	require.Len(t, result.Info.Snippets, 2)
	assert.Equal(t, "b", result.Info.Snippets[0].SourceID)
	assert.Equal(t, 0.9, result.Info.Snippets[0].Score)
}

func TestHandleTurn_RetrievalFailure(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentInfo),
	}}
	fx := newFixture(t, classifier, &fakeBackend{err: retrieval.ErrTimeout})

	_, err := fx.orch.HandleTurn(context.Background(), &TurnRequest{SessionID: "s1", Text: "question"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRetrievalTimeout, errors.CodeOf(err))
}

func TestAbandon(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote, explicit(slots.SlotBusinessType, "restaurant")),
	}}
	fx := newFixture(t, classifier, nil)
	ctx := context.Background()

	_, err := fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "restaurant"})
	require.NoError(t, err)

	require.NoError(t, fx.orch.Abandon(ctx, "s1"))
	sess, err := fx.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbandoned, sess.Status)

	// Idempotent on an already-abandoned session.
	require.NoError(t, fx.orch.Abandon(ctx, "s1"))

	// Unknown sessions are reported as such.
	assert.ErrorIs(t, fx.orch.Abandon(ctx, "missing"), session.ErrNotFound)
}

func TestAbandon_QuotedSessionRejected(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*models.Classification, error){
		classified(models.IntentQuote,
			explicit(slots.SlotBusinessType, "restaurant"),
			explicit(slots.SlotCoverageType, "general_liability"),
			explicit(slots.SlotCoverageLimit, 1000000),
			explicit(slots.SlotLocation, "NY"),
		),
	}}
	fx := newFixture(t, classifier, nil)
	ctx := context.Background()

	result, err := fx.orch.HandleTurn(ctx, &TurnRequest{SessionID: "s1", Text: "full request"})
	require.NoError(t, err)
	require.NotNil(t, result.Quote)

	err = fx.orch.Abandon(ctx, "s1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionClosed, errors.CodeOf(err))
}
