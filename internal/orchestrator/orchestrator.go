// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"quote-engine/internal/audit"
	"quote-engine/internal/common/errors"
	"quote-engine/internal/common/logger"
	"quote-engine/internal/common/metrics"
	"quote-engine/internal/models"
	"quote-engine/internal/nlu"
	"quote-engine/internal/notify"
	"quote-engine/internal/ranker"
	"quote-engine/internal/rating"
	"quote-engine/internal/retrieval"
	"quote-engine/internal/session"
	"quote-engine/internal/slots"
)

// Escalation reasons surfaced to underwriters and recorded in metrics.
const (
	ReasonManualReview            = "manual_review_required"
	ReasonUnsupportedJurisdiction = "unsupported_jurisdiction"
	ReasonConfigError             = "configuration_error"
)

// TurnRequest is one inbound conversation turn.
type TurnRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	// SlotHints lets the caller pre-fill slots out of band, e.g. from a web
	// form shown alongside the chat. Hints are trusted and bypass the NLU.
	SlotHints map[string]interface{} `json:"slotHints,omitempty"`
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Store      session.Store
	Classifier nlu.Classifier
	Retrieval  retrieval.Backend
	Snapshot   *rating.Snapshot
	Engine     *rating.Engine
	Recorder   audit.Recorder
	Notifier   notify.Notifier
	Logger     logger.Logger

	// ConfidenceThreshold gates NLU-inferred slot values. Defaults to 0.7.
	ConfidenceThreshold float64
	// TopK bounds ranked retrieval results. Defaults to ranker.DefaultTopK.
	TopK int
}

// Orchestrator drives the conversation state machine: classify the turn,
// merge slots, validate, rate, and move the session forward. Sessions only
// move forward; a terminal session never changes again.
type Orchestrator struct {
	store      session.Store
	classifier nlu.Classifier
	retrieval  retrieval.Backend
	snapshot   *rating.Snapshot
	engine     *rating.Engine
	recorder   audit.Recorder
	notifier   notify.Notifier
	logger     logger.Logger

	confidenceThreshold float64
	topK                int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(opts Options) *Orchestrator {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.7
	}
	if opts.TopK <= 0 {
		opts.TopK = ranker.DefaultTopK
	}
	if opts.Recorder == nil {
		opts.Recorder = audit.NoOpRecorder{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NoOpNotifier{}
	}
	return &Orchestrator{
		store:               opts.Store,
		classifier:          opts.Classifier,
		retrieval:           opts.Retrieval,
		snapshot:            opts.Snapshot,
		engine:              opts.Engine,
		recorder:            opts.Recorder,
		notifier:            opts.Notifier,
		logger:              opts.Logger.WithFields(map[string]interface{}{"component": "orchestrator"}),
		confidenceThreshold: opts.ConfidenceThreshold,
		topK:                opts.TopK,
		locks:               make(map[string]*sync.Mutex),
	}
}

// lockFor serializes turns per session. Turns for different sessions run
// concurrently.
func (o *Orchestrator) lockFor(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[sessionID] = l
	}
	return l
}

// HandleTurn processes one inbound turn and returns exactly one outcome:
// an info answer, a clarification prompt, an issued quote, or an escalation.
func (o *Orchestrator) HandleTurn(ctx context.Context, req *TurnRequest) (*models.TurnResult, error) {
	start := time.Now()
	defer func() {
		metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}()

	lock := o.lockFor(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.store.Get(ctx, req.SessionID)
	if stderrors.Is(err, session.ErrNotFound) {
		sess = models.NewSession(req.SessionID)
	} else if err != nil {
		metrics.TurnsFailed.WithLabelValues(string(errors.ErrCodeSessionStoreError)).Inc()
		return nil, errors.NewSessionStoreError(err)
	}

	// Classification failures leave the session exactly as it was; the
	// caller retries the whole turn.
	classification, err := o.classifier.Classify(ctx, req.Text, sess.Slots)
	if err != nil {
		return nil, o.nluError(err)
	}

	metrics.TurnsProcessed.WithLabelValues(classification.Intent).Inc()
	sess.Intent = classification.Intent

	if classification.Intent == models.IntentInfo {
		// Info queries never touch quote state, so they are answered even
		// on closed sessions.
		return o.answerInfo(ctx, sess, req.Text)
	}

	if sess.Status.Terminal() {
		metrics.TurnsFailed.WithLabelValues(string(errors.ErrCodeSessionClosed)).Inc()
		return nil, errors.NewSessionClosedError(sess.ID, string(sess.Status))
	}

	turn := sess.AppendTurn(req.Text, classification.Intent)
	o.mergeSlots(sess, turn, req.SlotHints, classification.Slots)

	return o.advance(ctx, sess)
}

// advance validates the merged slot set and either asks for more or rates.
func (o *Orchestrator) advance(ctx context.Context, sess *models.ConversationSession) (*models.TurnResult, error) {
	tables := o.snapshot.Current()
	validator := slots.NewValidator(tables)

	coverage := ""
	if sv, ok := sess.Slots[slots.SlotCoverageType]; ok {
		if s, ok := sv.Value.(string); ok {
			coverage = s
		}
	}

	result := validator.Validate(coverage, sess.Slots)

	// Slots that survived validation stay marked even when the turn ends in
	// a clarification, so later low-confidence inferences cannot displace them.
	failed := make(map[string]bool, len(result.FieldErrors))
	for _, fe := range result.FieldErrors {
		failed[fe.Field] = true
	}
	for name, sv := range sess.Slots {
		if !failed[name] {
			sv.Validated = true
			sess.Slots[name] = sv
		}
	}

	if !result.Valid {
		metrics.Clarifications.Inc()
		if err := o.save(ctx, sess, models.StatusCollecting); err != nil {
			return nil, err
		}
		return &models.TurnResult{
			SessionID:     sess.ID,
			Status:        sess.Status,
			Clarification: &models.Clarification{Fields: result.FieldErrors},
		}, nil
	}

	sess.Status = models.StatusReady

	factors, err := rating.Resolve(result.Request, tables)
	if err != nil {
		cause := ratingError(result.Request, err)
		o.logger.WithError(cause).Warn("rating rejected request", map[string]interface{}{"sessionId": sess.ID})
		return o.escalate(ctx, sess, escalationReason(cause.Code), nil)
	}

	quote, err := o.engine.Rate(result.Request, factors, tables)
	if err != nil {
		cause := ratingError(result.Request, err)
		o.logger.WithError(cause).Warn("rating rejected request", map[string]interface{}{"sessionId": sess.ID})
		return o.escalate(ctx, sess, escalationReason(cause.Code), nil)
	}

	if !quote.AutoApproved {
		return o.escalate(ctx, sess, ReasonManualReview, quote)
	}

	issued := models.NewIssuedQuote(uuid.NewString(), sess.ID, *quote, time.Now().UTC())
	if err := o.save(ctx, sess, models.StatusQuoted); err != nil {
		return nil, err
	}

	// Audit is best effort; a quote already persisted to the session is
	// never withdrawn because the audit write failed.
	if err := o.recorder.RecordQuote(ctx, issued); err != nil {
		o.logger.WithError(err).Error("audit write failed", map[string]interface{}{
			"sessionId": sess.ID,
			"quoteId":   issued.QuoteID,
		})
	}

	metrics.QuotesIssued.WithLabelValues(string(result.Request.CoverageType)).Inc()
	o.logger.Info("quote issued", map[string]interface{}{
		"sessionId":    sess.ID,
		"quoteId":      issued.QuoteID,
		"premium":      issued.Quote.Premium,
		"tableVersion": issued.Quote.TableVersion,
	})

	return &models.TurnResult{
		SessionID: sess.ID,
		Status:    sess.Status,
		Quote:     issued,
	}, nil
}

func (o *Orchestrator) escalate(ctx context.Context, sess *models.ConversationSession, reason string, quote *models.Quote) (*models.TurnResult, error) {
	esc := &models.Escalation{Reason: reason, Quote: quote}
	if err := o.save(ctx, sess, models.StatusEscalated); err != nil {
		return nil, err
	}

	metrics.Escalations.WithLabelValues(reason).Inc()
	if err := o.recorder.RecordEscalation(ctx, sess.ID, reason); err != nil {
		o.logger.WithError(err).Error("escalation audit failed", map[string]interface{}{"sessionId": sess.ID})
	}
	if err := o.notifier.NotifyEscalation(ctx, sess.ID, esc); err != nil {
		o.logger.WithError(err).Error("escalation notification failed", map[string]interface{}{"sessionId": sess.ID})
	}

	o.logger.Info("session escalated", map[string]interface{}{
		"sessionId": sess.ID,
		"reason":    reason,
	})

	return &models.TurnResult{
		SessionID:  sess.ID,
		Status:     sess.Status,
		Escalation: esc,
	}, nil
}

func (o *Orchestrator) answerInfo(ctx context.Context, sess *models.ConversationSession, query string) (*models.TurnResult, error) {
	if o.retrieval == nil {
		return &models.TurnResult{
			SessionID: sess.ID,
			Status:    sess.Status,
			Info:      &models.InfoAnswer{Query: query},
		}, nil
	}

	candidates, err := o.retrieval.Retrieve(ctx, query)
	if err != nil {
		if stderrors.Is(err, retrieval.ErrTimeout) {
			metrics.TurnsFailed.WithLabelValues(string(errors.ErrCodeRetrievalTimeout)).Inc()
			return nil, errors.NewRetrievalTimeoutError()
		}
		metrics.TurnsFailed.WithLabelValues(string(errors.ErrCodeRetrievalFailed)).Inc()
		return nil, errors.NewRetrievalFailedError(err)
	}

	return &models.TurnResult{
		SessionID: sess.ID,
		Status:    sess.Status,
		Info: &models.InfoAnswer{
			Query:    query,
			Snippets: ranker.Rank(query, candidates, o.topK),
		},
	}, nil
}

// mergeSlots folds hints and NLU candidates into the session.
//
//   - Hints are trusted: they always overwrite.
//   - Explicit user statements overwrite whatever came before; the latest
//     statement of a slot wins.
//   - Inferred values below the confidence threshold are dropped, and an
//     inferred value never overwrites an explicit, already-validated one.
func (o *Orchestrator) mergeSlots(sess *models.ConversationSession, turn int, hints map[string]interface{}, candidates []models.SlotCandidate) {
	for name, value := range hints {
		sess.Slots[name] = models.SlotValue{
			Value:      value,
			Source:     models.SourceHint,
			Confidence: 1.0,
			Turn:       turn,
		}
	}

	for _, c := range candidates {
		if c.Explicit {
			sess.Slots[c.Name] = models.SlotValue{
				Value:      c.Value,
				Source:     models.SourceUserExplicit,
				Confidence: c.Confidence,
				Turn:       turn,
			}
			continue
		}
		if c.Confidence < o.confidenceThreshold {
			continue
		}
		if existing, ok := sess.Slots[c.Name]; ok &&
			existing.Source == models.SourceUserExplicit && existing.Validated {
			continue
		}
		sess.Slots[c.Name] = models.SlotValue{
			Value:      c.Value,
			Source:     models.SourceNluInferred,
			Confidence: c.Confidence,
			Turn:       turn,
		}
	}
}

// Abandon closes a session without quoting. Abandoning an already-abandoned
// session is a no-op; other terminal sessions cannot be abandoned.
func (o *Orchestrator) Abandon(ctx context.Context, sessionID string) error {
	lock := o.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if stderrors.Is(err, session.ErrNotFound) {
		return err
	} else if err != nil {
		return errors.NewSessionStoreError(err)
	}

	if sess.Status == models.StatusAbandoned {
		return nil
	}
	if sess.Status.Terminal() {
		return errors.NewSessionClosedError(sess.ID, string(sess.Status))
	}

	return o.save(ctx, sess, models.StatusAbandoned)
}

func (o *Orchestrator) save(ctx context.Context, sess *models.ConversationSession, next models.SessionStatus) error {
	if sess.Status != next {
		if !sess.Status.CanTransitionTo(next) {
			return errors.NewSessionClosedError(sess.ID, string(sess.Status))
		}
		sess.Status = next
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, sess); err != nil {
		metrics.TurnsFailed.WithLabelValues(string(errors.ErrCodeSessionStoreError)).Inc()
		return errors.NewSessionStoreError(err)
	}
	return nil
}

func (o *Orchestrator) nluError(err error) error {
	if stderrors.Is(err, nlu.ErrTimeout) {
		metrics.TurnsFailed.WithLabelValues(string(errors.ErrCodeNluTimeout)).Inc()
		return errors.NewNluTimeoutError()
	}
	metrics.TurnsFailed.WithLabelValues(string(errors.ErrCodeNluFailed)).Inc()
	return errors.NewNluFailedError(err)
}

// ratingError maps a resolver or engine failure onto the shared taxonomy.
func ratingError(req *models.CoverageRequest, err error) *errors.StandardError {
	if stderrors.Is(err, rating.ErrUnsupportedJurisdiction) {
		return errors.NewUnsupportedJurisdictionError(req.Jurisdiction)
	}
	return errors.NewConfigError(err.Error())
}

func escalationReason(code errors.ErrorCode) string {
	if code == errors.ErrCodeUnsupportedJurisdiction {
		return ReasonUnsupportedJurisdiction
	}
	return ReasonConfigError
}
