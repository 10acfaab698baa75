package ports

import (
	"context"
	"time"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
)

// MenuOrder selects the deterministic ordering applied by the direct
// structured-filter retrieval path.
type MenuOrder int

const (
	OrderHallThenName MenuOrder = iota
	OrderNameAsc
	OrderCaloriesAsc
	OrderCaloriesDesc
	OrderProteinDesc
)

// MenuRepository reads menu snapshots for one effective date.
type MenuRepository interface {
	GetByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error)
	ListForDate(ctx context.Context, filters domain.FilterSet, date time.Time, order MenuOrder, limit int) ([]domain.MenuItem, error)
	ListMissingEmbeddings(ctx context.Context, date time.Time, limit int) ([]domain.MenuItem, error)
	SaveEmbedding(ctx context.Context, id int64, ingredients []string, embedding []float32) error
}

// ProfileRepository exposes the user-profile snapshot and goal tracking the
// retrieval core consumes (owned by the user-management subsystem).
type ProfileRepository interface {
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	GoalTargets(ctx context.Context, userID string) (domain.GoalTargets, error)
	ListDietHistory(ctx context.Context, userID string, day time.Time) ([]domain.DietEntry, error)
	AddDietHistory(ctx context.Context, entry *domain.DietEntry) error
}

// IntentCompleter produces a schema-constrained SearchIntent from the model.
type IntentCompleter interface {
	CompleteIntent(ctx context.Context, query string, profile *domain.UserProfile) (domain.SearchIntent, error)
}

// QueryGenerator emits one read-only SQL statement for a natural-language
// question; the caller is responsible for sanitizing it before execution.
type QueryGenerator interface {
	GenerateSQL(ctx context.Context, question string, hints []string) (string, error)
}

// GeneratedQueryRetriever runs the full text-to-SQL pipeline: generation,
// sanitization, execution, and typed re-fetch by identity. Failures are
// returned as errors, never panics; callers treat this path as best-effort.
type GeneratedQueryRetriever interface {
	Retrieve(ctx context.Context, query string, filters domain.FilterSet, profile *domain.UserProfile, date time.Time, limit int) ([]domain.MenuItem, error)
}

// VectorSearcher performs filter-then-search nearest-neighbor retrieval.
// A nil searcher handle means no vector backend is configured; the fusion
// engine degrades to the structured paths silently.
type VectorSearcher interface {
	Search(ctx context.Context, params domain.VectorSearchParams) ([]domain.MenuItem, error)
}

// Embedder builds vectors for item text and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// IngredientInferrer guesses the main ingredients of a dish from its name,
// used when the scraper supplied none. Failure yields an empty list.
type IngredientInferrer interface {
	InferIngredients(ctx context.Context, itemName string) ([]string, error)
}

// AnswerContext is everything the answer generator needs beyond the query.
type AnswerContext struct {
	Items       []domain.MenuItem
	Profile     *domain.UserProfile
	DailyStatus *domain.DailyStatus
	History     string
}

// AnswerStreamer turns a ranked item list into a streamed natural-language
// answer, invoking onChunk for each text segment.
type AnswerStreamer interface {
	StreamAnswer(ctx context.Context, question string, answerCtx AnswerContext, onChunk func(string) error) error
}

// MessageQueue carries embedding-backfill events between the API edge and
// the worker.
type MessageQueue interface {
	PublishEmbeddingPending(ctx context.Context, itemID int64) error
	SubscribeEmbeddingPending(ctx context.Context, handler func(context.Context, int64) error) error
}
