package usecase

import (
	"strings"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
)

// PassesConstraints reports whether an item satisfies every hard constraint:
// all required diet tags present, no excluded allergen present. Comparison is
// case-insensitive and nil fields are treated as empty sets. Nutritional
// goals are never checked here; they only influence ranking.
func PassesConstraints(item domain.MenuItem, requiredDiets, excludedAllergens []string) bool {
	if len(requiredDiets) > 0 {
		if len(item.DietTags) == 0 {
			return false
		}
		tags := lowerSet(item.DietTags)
		for _, diet := range requiredDiets {
			if _, ok := tags[strings.ToLower(strings.TrimSpace(diet))]; !ok {
				return false
			}
		}
	}

	if len(excludedAllergens) > 0 && len(item.Allergens) > 0 {
		allergens := lowerSet(item.Allergens)
		for _, excluded := range excludedAllergens {
			if _, ok := allergens[strings.ToLower(strings.TrimSpace(excluded))]; ok {
				return false
			}
		}
	}

	return true
}

func lowerSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return out
}

// unionFold merges string lists case-insensitively, preserving first-seen
// order and spelling.
func unionFold(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				continue
			}
			key := strings.ToLower(trimmed)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, trimmed)
		}
	}
	return out
}
