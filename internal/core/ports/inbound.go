package ports

import (
	"context"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
)

// MenuSearchService is the retrieval core's sole public entry point: ranked,
// deduplicated, constraint-satisfying menu items for a free-text query.
// An empty result is a valid outcome, not an error.
type MenuSearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.MenuItem, error)
}

// ChatService runs retrieval and streams the synthesized answer.
type ChatService interface {
	StreamAnswer(ctx context.Context, req domain.SearchRequest, history string, onChunk func(string) error) error
}

// EmbeddingBackfiller populates missing item embeddings asynchronously.
type EmbeddingBackfiller interface {
	BackfillByID(ctx context.Context, itemID int64) error
}
