// internal/ranker/ranker.go
package ranker

import (
	"sort"

	"quote-engine/internal/models"
)

// DefaultTopK bounds the snippets handed to response generation.
const DefaultTopK = 4

// Rank deduplicates pre-scored snippets by source id (keeping the
// highest-scored instance), orders them by score descending with ties broken
// by shorter text, and truncates to topK. It never computes relevance itself;
// candidate scores already reflect the query, so the query text only travels
// along for logging by callers.
func Rank(query string, candidates []models.KnowledgeSnippet, topK int) []models.KnowledgeSnippet {
	if topK <= 0 {
		topK = DefaultTopK
	}

	best := make(map[string]models.KnowledgeSnippet, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		existing, seen := best[c.SourceID]
		if !seen {
			best[c.SourceID] = c
			order = append(order, c.SourceID)
			continue
		}
		if c.Score > existing.Score {
			best[c.SourceID] = c
		}
	}

	ranked := make([]models.KnowledgeSnippet, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, best[id])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return len(ranked[i].Text) < len(ranked[j].Text)
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}
