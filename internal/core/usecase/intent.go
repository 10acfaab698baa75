package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

// IntentParserUseCase turns free text plus an optional profile into a
// structured SearchIntent. Parse never fails: when the model path errors,
// the deterministic rule parser takes over and the result is labeled hybrid.
type IntentParserUseCase struct {
	completer ports.IntentCompleter
	logger    *slog.Logger
}

func NewIntentParserUseCase(completer ports.IntentCompleter, logger *slog.Logger) *IntentParserUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentParserUseCase{completer: completer, logger: logger}
}

func (uc *IntentParserUseCase) Parse(ctx context.Context, query string, profile *domain.UserProfile) domain.SearchIntent {
	if uc.completer != nil {
		intent, err := uc.completer.CompleteIntent(ctx, query, profile)
		if err == nil {
			applyPortionScaling(&intent)
			uc.logger.Info("intent_parsed", "intent", string(intent.Type), "sort_by", intent.Filters.SortBy)
			return intent
		}
		uc.logger.Warn("intent_parse_fallback", "error", err)
	}

	intent := ruleParse(query, profile)
	intent.Reasoning = "fallback to rule-based parser after model failure"
	return intent
}

// applyPortionScaling clamps the model's protein floor. Dining halls list
// many portion sizes, so a literal high gram target silently empties results:
// floors of 15g or more are reduced to 10, floors under 8 are raised to 8.
// A protein bound without an explicit sort hint defaults to protein_desc.
func applyPortionScaling(intent *domain.SearchIntent) {
	minProtein, ok := intent.Filters.Bound(domain.BoundMinProtein)
	if !ok {
		return
	}
	switch {
	case minProtein >= 15:
		intent.Filters.SetBound(domain.BoundMinProtein, 10)
	case minProtein < 8:
		intent.Filters.SetBound(domain.BoundMinProtein, 8)
	}
	if intent.Filters.SortBy == "" {
		intent.Filters.SortBy = domain.SortProteinDesc
	}
}

var dietKeywords = []struct {
	keyword string
	diet    string
}{
	{"vegan", "Plant Based"},
	{"plant based", "Plant Based"},
	{"plant-based", "Plant Based"},
	{"vegetarian", "Vegetarian"},
	{"halal", "Halal"},
	{"kosher", "Kosher"},
	{"gluten-free", "Gluten-Free"},
	{"gluten free", "Gluten-Free"},
}

var (
	reHighProtein  = regexp.MustCompile(`high\s+protein`)
	reProteinRich  = regexp.MustCompile(`protein\s+rich`)
	reBestProtein  = regexp.MustCompile(`best\s+protein`)
	reGramsProtein = regexp.MustCompile(`(\d+)\s*g\s*protein`)
	reLowCalorie   = regexp.MustCompile(`low\s+calorie`)
	reNumCalories  = regexp.MustCompile(`(\d+)\s+calories?`)
)

var importanceKeywords = []string{"best", "top", "recommend", "find", "where", "what"}

// ruleParse is the deterministic fallback parser. It scans lowercased query
// text for known halls, meals, diet keywords, and nutrition magnitude
// patterns, then merges profile constraints.
func ruleParse(query string, profile *domain.UserProfile) domain.SearchIntent {
	lower := strings.ToLower(query)
	filters := domain.FilterSet{}

	for _, hall := range domain.KnownDiningHalls {
		if strings.Contains(lower, strings.ToLower(hall)) {
			filters.DiningHalls = []string{hall}
			break
		}
	}

	for _, meal := range domain.KnownMealPeriods {
		if strings.Contains(lower, meal) {
			filters.Meals = []string{meal}
			break
		}
	}

	for _, entry := range dietKeywords {
		if strings.Contains(lower, entry.keyword) {
			filters.RequiredDiets = append(filters.RequiredDiets, entry.diet)
		}
	}
	filters.RequiredDiets = unionFold(filters.RequiredDiets)

	switch {
	case reHighProtein.MatchString(lower) || reProteinRich.MatchString(lower):
		filters.SetBound(domain.BoundMinProtein, 20)
	case reBestProtein.MatchString(lower):
		filters.SetBound(domain.BoundMinProtein, 15)
	default:
		if m := reGramsProtein.FindStringSubmatch(lower); m != nil {
			if grams, err := strconv.ParseFloat(m[1], 64); err == nil {
				filters.SetBound(domain.BoundMinProtein, grams)
			}
		}
	}

	if reLowCalorie.MatchString(lower) {
		filters.SetBound(domain.BoundMaxCalories, 400)
	} else if m := reNumCalories.FindStringSubmatch(lower); m != nil {
		if cals, err := strconv.ParseFloat(m[1], 64); err == nil {
			filters.SetBound(domain.BoundMaxCalories, cals)
		}
	}

	var keywords []string
	for _, word := range importanceKeywords {
		if strings.Contains(lower, word) {
			keywords = append(keywords, word)
		}
	}

	if profile != nil {
		if len(profile.Diets) > 0 {
			filters.RequiredDiets = unionFold(filters.RequiredDiets, domain.NormalizeDiets(profile.Diets))
		}
		if len(profile.Allergies) > 0 {
			filters.ExcludedAllergens = unionFold(profile.Allergies)
		}
		goal := strings.ToLower(profile.Goal)
		if strings.Contains(goal, "gain muscle") {
			if _, ok := filters.Bound(domain.BoundMinProtein); !ok {
				filters.SetBound(domain.BoundMinProtein, 20)
			}
		} else if strings.Contains(goal, "lose weight") {
			if _, ok := filters.Bound(domain.BoundMaxCalories); !ok {
				filters.SetBound(domain.BoundMaxCalories, 500)
			}
		}
	}

	reasoning := "rule-based parse"
	if len(keywords) > 0 {
		reasoning += ": keywords " + strings.Join(keywords, ", ")
	}

	return domain.SearchIntent{
		Type:        domain.IntentHybrid,
		SearchQuery: query,
		Filters:     filters,
		Reasoning:   reasoning,
	}
}
