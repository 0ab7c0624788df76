package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-engine/internal/common/logger"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *ElasticsearchBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewElasticsearchBackend(client, "insurance-knowledge", logger.NewNoOpLogger())
}

func esResponse(w http.ResponseWriter, body string) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestRetrieve(t *testing.T) {
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		esResponse(w, `{
			"hits": {
				"hits": [
					{"_id": "doc-1", "_score": 0.9, "_source": {"text": "GL covers third-party injury", "sourceId": "kb/gl-overview"}},
					{"_id": "doc-2", "_score": 0.4, "_source": {"text": "Deductibles explained"}}
				]
			}
		}`)
	})

	snippets, err := backend.Retrieve(context.Background(), "what does GL cover")
	require.NoError(t, err)
	require.Len(t, snippets, 2)

	assert.Equal(t, "kb/gl-overview", snippets[0].SourceID)
	assert.Equal(t, 0.9, snippets[0].Score)

	// Documents without an explicit source id fall back to the ES doc id.
	assert.Equal(t, "doc-2", snippets[1].SourceID)
}

func TestRetrieve_SearchError(t *testing.T) {
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := backend.Retrieve(context.Background(), "query")
	assert.ErrorIs(t, err, ErrRetrievalFailed)
}

func TestRetrieve_ContextExpiryIsTimeout(t *testing.T) {
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		esResponse(w, `{"hits": {"hits": []}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Retrieve(ctx, "query")
	assert.ErrorIs(t, err, ErrTimeout)
}
