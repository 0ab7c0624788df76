// internal/retrieval/retrieval.go
package retrieval

import (
	"context"
	"errors"

	"quote-engine/internal/models"
)

var (
	ErrRetrievalFailed = errors.New("RETRIEVAL_FAILED")
	ErrTimeout         = errors.New("RETRIEVAL_TIMEOUT")
)

// Backend supplies pre-scored knowledge snippets for a query. Index build,
// embeddings, and storage live behind this interface; the engine only
// consumes its output.
type Backend interface {
	Retrieve(ctx context.Context, query string) ([]models.KnowledgeSnippet, error)
}
