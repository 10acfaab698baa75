package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

// FallbackRetriever is the last line of defense: a direct structured-filter
// lookup driven by the rule parser, used when both the model-based parse and
// the hybrid fusion paths are unavailable or come back empty.
type FallbackRetriever struct {
	menus ports.MenuRepository
}

func NewFallbackRetriever(menus ports.MenuRepository) *FallbackRetriever {
	return &FallbackRetriever{menus: menus}
}

func (r *FallbackRetriever) Retrieve(
	ctx context.Context,
	query string,
	filters domain.FilterSet,
	date time.Time,
	limit int,
) ([]domain.MenuItem, error) {
	if limit <= 0 {
		limit = 10
	}

	items, err := r.menus.ListForDate(ctx, filters, date, orderFor(query, filters.SortBy), limit)
	if err != nil {
		return nil, fmt.Errorf("fallback list: %w", err)
	}
	return items, nil
}

// orderFor is the deterministic ordering policy for the direct path. The
// explicit protein sort hint wins; a superlative plus a calorie keyword sorts
// by calories (ascending when "low" also appears); a superlative alone sorts
// by item name; the default is hall then name, both ascending.
func orderFor(query, sortBy string) ports.MenuOrder {
	if sortBy == domain.SortProteinDesc {
		return ports.OrderProteinDesc
	}

	lower := strings.ToLower(query)
	superlative := strings.Contains(lower, "best") || strings.Contains(lower, "top") || strings.Contains(lower, "highest")
	if superlative {
		if strings.Contains(lower, "calorie") {
			if strings.Contains(lower, "low") {
				return ports.OrderCaloriesAsc
			}
			return ports.OrderCaloriesDesc
		}
		return ports.OrderNameAsc
	}
	return ports.OrderHallThenName
}
