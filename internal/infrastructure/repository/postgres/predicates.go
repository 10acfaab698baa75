package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
)

// Predicate is one WHERE condition with positional `?` markers that
// JoinPredicates rewrites to $N placeholders.
type Predicate struct {
	Expr string
	Args []any
}

// BuildMenuPredicates translates a filter set into query predicates. The
// date-equality predicate is always first: stale rows must never surface,
// whatever else the filter set says. The date binds as YYYY-MM-DD so the
// comparison holds whatever clock time the caller passes.
func BuildMenuPredicates(filters domain.FilterSet, date time.Time) []Predicate {
	preds := []Predicate{{Expr: "last_updated = ?", Args: []any{domain.CivilDate(date)}}}

	if name := strings.TrimSpace(filters.ItemName); name != "" {
		preds = append(preds, Predicate{Expr: "item ILIKE ?", Args: []any{"%" + name + "%"}})
	}

	switch len(filters.DiningHalls) {
	case 0:
	case 1:
		// Exact match on the canonical hall name; callers capitalize.
		preds = append(preds, Predicate{Expr: "dining_hall = ?", Args: []any{filters.DiningHalls[0]}})
	default:
		preds = append(preds, Predicate{Expr: "dining_hall = ANY(?)", Args: []any{pq.Array(filters.DiningHalls)}})
	}

	if len(filters.Meals) > 0 {
		exprs := make([]string, 0, len(filters.Meals))
		args := make([]any, 0, len(filters.Meals))
		for _, meal := range filters.Meals {
			exprs = append(exprs, "array_to_string(availability_today, ',') ILIKE ?")
			args = append(args, "%"+strings.ToLower(strings.TrimSpace(meal))+"%")
		}
		preds = append(preds, Predicate{Expr: "(" + strings.Join(exprs, " OR ") + ")", Args: args})
	}

	if len(filters.RequiredDiets) > 0 {
		exprs := make([]string, 0, len(filters.RequiredDiets))
		args := make([]any, 0, len(filters.RequiredDiets))
		for _, diet := range filters.RequiredDiets {
			exprs = append(exprs, "array_to_string(diet_types, ',') ILIKE ?")
			args = append(args, "%"+strings.TrimSpace(diet)+"%")
		}
		preds = append(preds, Predicate{Expr: "(" + strings.Join(exprs, " OR ") + ")", Args: args})
	}

	for _, allergen := range filters.ExcludedAllergens {
		preds = append(preds, Predicate{
			Expr: "(allergens IS NULL OR NOT array_to_string(allergens, ',') ILIKE ?)",
			Args: []any{"%" + strings.TrimSpace(allergen) + "%"},
		})
	}

	if minCal, ok := filters.Bound(domain.BoundMinCalories); ok {
		preds = append(preds, Predicate{Expr: "calories >= ?", Args: []any{minCal}})
	}
	if maxCal, ok := filters.Bound(domain.BoundMaxCalories); ok {
		preds = append(preds, Predicate{Expr: "calories <= ?", Args: []any{maxCal}})
	}

	return preds
}

// JoinPredicates renders predicates into a WHERE body, rewriting `?` markers
// to $N placeholders starting at startIndex.
func JoinPredicates(preds []Predicate, startIndex int) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	var clause strings.Builder
	var args []any
	index := startIndex
	for i, pred := range preds {
		if i > 0 {
			clause.WriteString(" AND ")
		}
		expr := pred.Expr
		for strings.Contains(expr, "?") {
			expr = strings.Replace(expr, "?", fmt.Sprintf("$%d", index), 1)
			index++
		}
		clause.WriteString(expr)
		args = append(args, pred.Args...)
	}
	return clause.String(), args
}
