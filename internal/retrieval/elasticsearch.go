// internal/retrieval/elasticsearch.go
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"quote-engine/internal/common/logger"
	"quote-engine/internal/models"
)

// ElasticsearchBackend retrieves scored knowledge snippets from a
// pre-built documentation index.
type ElasticsearchBackend struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchBackend(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchBackend {
	return &ElasticsearchBackend{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"collaborator": "retrieval"}),
	}
}

func (b *ElasticsearchBackend) Retrieve(ctx context.Context, query string) ([]models.KnowledgeSnippet, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"text": query,
			},
		},
	}

	body, err := json.Marshal(esQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(b.index),
		b.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search returned %s", ErrRetrievalFailed, res.Status())
	}

	var searchResponse struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source struct {
					Text     string `json:"text"`
					SourceID string `json:"sourceId"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrRetrievalFailed, err)
	}

	snippets := make([]models.KnowledgeSnippet, 0, len(searchResponse.Hits.Hits))
	for _, hit := range searchResponse.Hits.Hits {
		sourceID := hit.Source.SourceID
		if sourceID == "" {
			sourceID = hit.ID
		}
		snippets = append(snippets, models.KnowledgeSnippet{
			Text:     hit.Source.Text,
			SourceID: sourceID,
			Score:    hit.Score,
		})
	}

	b.logger.Debug("retrieved snippets", map[string]interface{}{
		"query": query,
		"count": len(snippets),
	})

	return snippets, nil
}
