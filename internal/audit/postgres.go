// internal/audit/postgres.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quote-engine/internal/common/errors"
	"quote-engine/internal/common/logger"
	"quote-engine/internal/models"
)

// Recorder persists the audit trail of issued quotes and escalations so
// every priced outcome can be traced back to the rate-table version that
// produced it.
type Recorder interface {
	RecordQuote(ctx context.Context, q *models.IssuedQuote) error
	RecordEscalation(ctx context.Context, sessionID, reason string) error
}

// PostgresRecorder writes audit rows to Postgres.
type PostgresRecorder struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresRecorder(db *sql.DB, log logger.Logger) *PostgresRecorder {
	return &PostgresRecorder{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

const insertQuoteSQL = `
	INSERT INTO quote_audit (quote_id, session_id, coverage_limit, premium, deductible, table_version, auto_approved, breakdown, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *PostgresRecorder) RecordQuote(ctx context.Context, q *models.IssuedQuote) error {
	breakdown, err := json.Marshal(q.Quote.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	_, err = r.db.ExecContext(ctx, insertQuoteSQL,
		q.QuoteID,
		q.SessionID,
		q.Quote.Limit,
		q.Quote.Premium,
		q.Quote.Deductible,
		q.Quote.TableVersion,
		q.Quote.AutoApproved,
		breakdown,
		time.Now().UTC(),
	)
	if err != nil {
		return errors.NewAuditWriteFailedError(fmt.Errorf("insert quote audit: %w", err))
	}

	r.logger.Info("quote recorded", map[string]interface{}{
		"quoteId":      q.QuoteID,
		"sessionId":    q.SessionID,
		"tableVersion": q.Quote.TableVersion,
	})
	return nil
}

const insertEscalationSQL = `
	INSERT INTO escalation_audit (session_id, reason, created_at)
	VALUES ($1, $2, $3)`

func (r *PostgresRecorder) RecordEscalation(ctx context.Context, sessionID, reason string) error {
	_, err := r.db.ExecContext(ctx, insertEscalationSQL, sessionID, reason, time.Now().UTC())
	if err != nil {
		return errors.NewAuditWriteFailedError(fmt.Errorf("insert escalation audit: %w", err))
	}
	return nil
}

// NoOpRecorder discards audit writes; used when no database is configured.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordQuote(context.Context, *models.IssuedQuote) error { return nil }
func (NoOpRecorder) RecordEscalation(context.Context, string, string) error { return nil }
