package domain

import "time"

// IntentType classifies how a query should be routed.
type IntentType string

const (
	IntentFactualLookup  IntentType = "factual_lookup"
	IntentSemanticSearch IntentType = "semantic_search"
	IntentHybrid         IntentType = "hybrid"
)

// Nutritional bound keys recognized in FilterSet.Nutrition.
const (
	BoundMinProtein  = "min_protein"
	BoundMaxProtein  = "max_protein"
	BoundMinCalories = "min_calories"
	BoundMaxCalories = "max_calories"
)

// SortProteinDesc is the only sort hint the parser emits.
const SortProteinDesc = "protein_desc"

// FilterSet carries the structured constraints extracted from a query.
// RequiredDiets and ExcludedAllergens are hard constraints; Nutrition bounds
// are soft ranking signals unless they arrive as explicit UI filters.
type FilterSet struct {
	DiningHalls       []string           `json:"dining_halls,omitempty"`
	Meals             []string           `json:"meals,omitempty"`
	RequiredDiets     []string           `json:"dietary_restrictions,omitempty"`
	ExcludedAllergens []string           `json:"allergens_to_exclude,omitempty"`
	Nutrition         map[string]float64 `json:"nutritional_constraints,omitempty"`
	SortBy            string             `json:"sort_by,omitempty"`

	// ItemName is a case-insensitive substring match on the dish name, used
	// by the direct-lookup and legacy paths.
	ItemName string `json:"item_name,omitempty"`
}

// Bound returns the named nutritional bound and whether it is set.
func (f FilterSet) Bound(key string) (float64, bool) {
	if f.Nutrition == nil {
		return 0, false
	}
	v, ok := f.Nutrition[key]
	return v, ok
}

// SetBound sets a nutritional bound, allocating the map on first use.
func (f *FilterSet) SetBound(key string, value float64) {
	if f.Nutrition == nil {
		f.Nutrition = make(map[string]float64, 4)
	}
	f.Nutrition[key] = value
}

// PrimaryHall returns the first hall when exactly one is selected; the
// pre-filter predicates only support single-value equality.
func (f FilterSet) PrimaryHall() string {
	if len(f.DiningHalls) == 1 {
		return f.DiningHalls[0]
	}
	return ""
}

// PrimaryMeal returns the first meal when exactly one is selected.
func (f FilterSet) PrimaryMeal() string {
	if len(f.Meals) == 1 {
		return f.Meals[0]
	}
	return ""
}

// SearchIntent is the short-lived, per-request parse result.
type SearchIntent struct {
	Type        IntentType `json:"intent_type"`
	SearchQuery string     `json:"search_query"`
	Filters     FilterSet  `json:"filters"`

	// Reasoning is diagnostic only and never drives control flow.
	Reasoning string `json:"reasoning"`
}

// ManualFilters are explicit UI selections. They override query-parsed hall
// and meal values and are always enforced as a hard post-filter.
type ManualFilters struct {
	DiningHalls []string `json:"dining_halls,omitempty"`
	Meals       []string `json:"meals,omitempty"`
}

// Empty reports whether no manual selection was made.
func (m ManualFilters) Empty() bool {
	return len(m.DiningHalls) == 0 && len(m.Meals) == 0
}

// SearchRequest is the fusion engine's sole public input.
type SearchRequest struct {
	Query  string
	UserID string
	Manual ManualFilters
	// Date scopes retrieval; the zero value means the caller's today.
	Date  time.Time
	Limit int
}

// EffectiveDate resolves the request date, defaulting to today.
func (r SearchRequest) EffectiveDate() time.Time {
	if r.Date.IsZero() {
		return truncateToDay(time.Now())
	}
	return truncateToDay(r.Date)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CivilDate renders t in the YYYY-MM-DD form DATE columns compare against.
// A wall-clock timestamp bound against a DATE column matches only at exact
// midnight, so repositories bind this form instead.
func CivilDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// VectorSearchParams bundles the hard pre-filter predicates applied in the
// same query that performs nearest-neighbor ranking.
type VectorSearchParams struct {
	Query               string
	Limit               int
	SimilarityThreshold float64
	RequiredDiets       []string
	ExcludedAllergens   []string
	DiningHall          string
	Meal                string
	Date                time.Time
}
