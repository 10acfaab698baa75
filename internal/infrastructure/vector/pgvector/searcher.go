package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
	"github.com/dininghall-ai/menu-search/internal/infrastructure/repository/postgres"
)

// Searcher runs filter-then-search retrieval: every hard predicate is applied
// in the same statement that ranks by cosine distance, so excluded rows never
// compete for the top-k slots.
type Searcher struct {
	db       *sql.DB
	embedder ports.Embedder
	menus    ports.MenuRepository
	logger   *slog.Logger
}

func NewSearcher(db *sql.DB, embedder ports.Embedder, menus ports.MenuRepository, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{db: db, embedder: embedder, menus: menus, logger: logger}
}

func (s *Searcher) Search(ctx context.Context, params domain.VectorSearchParams) ([]domain.MenuItem, error) {
	if params.Limit <= 0 {
		params.Limit = 10
	}

	vector, err := s.embedder.EmbedQuery(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	where, args := searchPredicates(params)
	vecIdx := len(args) + 1
	thresholdIdx := vecIdx + 1
	limitIdx := thresholdIdx + 1
	args = append(args, pgvector.NewVector(vector), params.SimilarityThreshold, params.Limit)

	// The distance operator reappears in ORDER BY so the planner can use an
	// approximate index; the placeholder is shared.
	query := fmt.Sprintf(
		`SELECT id, 1 - (embedding <=> $%d) AS similarity FROM %s WHERE %s AND 1 - (embedding <=> $%d) >= $%d ORDER BY embedding <=> $%d LIMIT $%d`,
		vecIdx, postgres.MenuTable, where, vecIdx, thresholdIdx, vecIdx, limitIdx,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var similarity float64
		if err := rows.Scan(&id, &similarity); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := s.menus.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("refetch vector results: %w", err)
	}
	return orderByIDs(items, ids), nil
}

// searchPredicates renders the hard pre-filter. Unlike the structured path,
// hall matching here is case-insensitive and every required diet must be
// present individually.
func searchPredicates(params domain.VectorSearchParams) (string, []any) {
	preds := []postgres.Predicate{
		{Expr: "embedding IS NOT NULL"},
		{Expr: "last_updated = ?", Args: []any{domain.CivilDate(params.Date)}},
	}
	for _, diet := range domain.NormalizeDiets(params.RequiredDiets) {
		preds = append(preds, postgres.Predicate{
			Expr: "array_to_string(diet_types, ',') ILIKE ?",
			Args: []any{"%" + diet + "%"},
		})
	}
	for _, allergen := range params.ExcludedAllergens {
		preds = append(preds, postgres.Predicate{
			Expr: "(allergens IS NULL OR NOT array_to_string(allergens, ',') ILIKE ?)",
			Args: []any{"%" + strings.TrimSpace(allergen) + "%"},
		})
	}
	if hall := strings.TrimSpace(params.DiningHall); hall != "" {
		preds = append(preds, postgres.Predicate{
			Expr: "LOWER(dining_hall) = ?",
			Args: []any{strings.ToLower(hall)},
		})
	}
	if meal := strings.TrimSpace(params.Meal); meal != "" {
		preds = append(preds, postgres.Predicate{
			Expr: "array_to_string(availability_today, ',') ILIKE ?",
			Args: []any{"%" + strings.ToLower(meal) + "%"},
		})
	}
	return postgres.JoinPredicates(preds, 1)
}

func orderByIDs(items []domain.MenuItem, ids []int64) []domain.MenuItem {
	byID := make(map[int64]domain.MenuItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	ordered := make([]domain.MenuItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
		}
	}
	return ordered
}
