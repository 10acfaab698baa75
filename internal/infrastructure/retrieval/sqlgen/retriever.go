package sqlgen

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

// Retriever is the text-to-SQL retrieval path: generate one read-only
// statement, gate it through the sanitizer, execute it, and re-fetch full
// typed records by identity. The generated result shape is never trusted
// for anything but identity extraction.
type Retriever struct {
	generator ports.QueryGenerator
	db        *sql.DB
	menus     ports.MenuRepository
	logger    *slog.Logger
}

func NewRetriever(generator ports.QueryGenerator, db *sql.DB, menus ports.MenuRepository, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{generator: generator, db: db, menus: menus, logger: logger}
}

func (r *Retriever) Retrieve(
	ctx context.Context,
	query string,
	filters domain.FilterSet,
	profile *domain.UserProfile,
	date time.Time,
	limit int,
) ([]domain.MenuItem, error) {
	if limit <= 0 {
		limit = 10
	}

	raw, err := r.generator.GenerateSQL(ctx, query, constraintHints(filters, profile))
	if err != nil {
		return nil, fmt.Errorf("generate query: %w", err)
	}

	stmt, err := Sanitize(raw)
	if err != nil {
		r.logger.Warn("generated_query_rejected", "error", err)
		return nil, err
	}

	ids, err := r.executeForIDs(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("execute generated query: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := r.menus.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("refetch generated results: %w", err)
	}

	ordered := orderByIDs(items, ids)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

// executeForIDs runs the sanitized statement and pulls row identities from
// the id column when present, else the first column.
func (r *Retriever) executeForIDs(ctx context.Context, stmt string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	idIndex := 0
	for i, col := range columns {
		if strings.EqualFold(col, "id") {
			idIndex = i
			break
		}
	}

	var ids []int64
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if id, ok := coerceID(values[idIndex]); ok {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func coerceID(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case []byte:
		id, err := strconv.ParseInt(string(v), 10, 64)
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
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
			delete(byID, id)
		}
	}
	return ordered
}

// constraintHints renders explicit dietary and filter constraints as
// natural-language lines appended to the generation prompt.
func constraintHints(filters domain.FilterSet, profile *domain.UserProfile) []string {
	var hints []string
	diets := domain.NormalizeDiets(filters.RequiredDiets)
	allergies := filters.ExcludedAllergens
	if profile != nil {
		if len(diets) == 0 {
			diets = domain.NormalizeDiets(profile.Diets)
		}
		allergies = append(append([]string{}, allergies...), profile.Allergies...)
	}

	if len(diets) > 0 {
		hints = append(hints, "Required diet types: "+strings.Join(diets, ", "))
	}
	if len(allergies) > 0 {
		hints = append(hints, "Must EXCLUDE items containing these allergens: "+strings.Join(allergies, ", "))
	}
	if len(filters.DiningHalls) > 0 {
		hints = append(hints, "Dining halls: "+strings.Join(filters.DiningHalls, ", "))
	}
	if len(filters.Meals) > 0 {
		hints = append(hints, "Meals: "+strings.Join(filters.Meals, ", "))
	}
	for _, key := range []string{domain.BoundMinProtein, domain.BoundMaxProtein, domain.BoundMinCalories, domain.BoundMaxCalories} {
		if v, ok := filters.Bound(key); ok {
			hints = append(hints, fmt.Sprintf("%s: %g", key, v))
		}
	}
	return hints
}
