package domain

import (
	"strings"
	"time"
)

// MenuItem is an immutable snapshot of one dish for one effective date.
// Rows are overwritten per scrape cycle, never versioned: at most one row
// exists per (name, hall) pair for a given date.
type MenuItem struct {
	ID            int64      `json:"id"`
	Name          string     `json:"item"`
	DiningHall    string     `json:"dining_hall"`
	EffectiveDate time.Time  `json:"last_updated"`

	Calories      *float64 `json:"calories,omitempty"`
	ServingSize   string   `json:"serving_size,omitempty"`
	FatG          *float64 `json:"fat_g,omitempty"`
	SatFatG       *float64 `json:"sat_fat_g,omitempty"`
	TransFatG     *float64 `json:"trans_fat_g,omitempty"`
	CholesterolMg *float64 `json:"cholesterol_mg,omitempty"`
	SodiumMg      *float64 `json:"sodium_mg,omitempty"`
	CarbsG        *float64 `json:"carbs_g,omitempty"`
	FiberG        *float64 `json:"fiber_g,omitempty"`
	SugarsG       *float64 `json:"sugars_g,omitempty"`
	ProteinG      *float64 `json:"protein_g,omitempty"`

	Allergens    []string `json:"allergens,omitempty"`
	DietTags     []string `json:"diet_types,omitempty"`
	Availability []string `json:"availability_today,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`

	// Embedding is populated by the asynchronous backfill job; nil until then.
	// An embedded item always has non-empty Ingredients, because the embedding
	// text is built from name plus ingredients.
	Embedding []float32 `json:"-"`
}

// HasAllergen reports whether the item's allergen set contains the given
// allergen, case-insensitively.
func (m MenuItem) HasAllergen(allergen string) bool {
	return containsFold(m.Allergens, allergen)
}

// HasDietTag reports whether the item's diet set contains the given tag,
// case-insensitively.
func (m MenuItem) HasDietTag(tag string) bool {
	return containsFold(m.DietTags, tag)
}

// AvailableFor reports whether the item is served during any of the given
// meal periods, case-insensitively. An empty meals slice matches everything.
func (m MenuItem) AvailableFor(meals []string) bool {
	if len(meals) == 0 {
		return true
	}
	for _, meal := range meals {
		if containsFold(m.Availability, meal) {
			return true
		}
	}
	return false
}

func containsFold(set []string, value string) bool {
	for _, entry := range set {
		if strings.EqualFold(strings.TrimSpace(entry), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

// EmbeddingText builds the text a menu item is embedded from.
func (m MenuItem) EmbeddingText() string {
	if len(m.Ingredients) == 0 {
		return m.Name
	}
	return m.Name + " | Ingredients: " + strings.Join(m.Ingredients, ", ")
}

// KnownDiningHalls is the canonical hall vocabulary, capitalized the way the
// dining_hall column stores it.
var KnownDiningHalls = []string{"Berkshire", "Worcester", "Franklin", "Hampshire"}

// KnownMealPeriods lists the lowercase meal-period labels used by the
// availability_today column.
var KnownMealPeriods = []string{"breakfast", "lunch", "dinner", "late night", "brunch", "grab' n go"}
