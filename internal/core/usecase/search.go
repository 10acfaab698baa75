package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

const (
	sqlPathBaseScore    = 1.0
	vectorPathBaseScore = 0.8
	rankDecay           = 0.02
	agreementBonus      = 0.3
	goalBoostFull       = 0.25
	goalBoostNear       = 0.10

	defaultSimilarityThreshold = 0.3
)

// SearchMetrics records retrieval-path outcomes. A nil implementation is
// tolerated everywhere.
type SearchMetrics interface {
	ObservePath(path string, resultCount int, err error)
	ObserveFallback()
}

// SearchUseCase is the fusion/ranking engine: it parses intent, runs the
// generated-query and vector paths, merges their candidate sets under hard
// constraints, applies soft goal boosts, and returns the top-K ordered list.
type SearchUseCase struct {
	intents   *IntentParserUseCase
	generated ports.GeneratedQueryRetriever
	vector    ports.VectorSearcher
	fallback  *FallbackRetriever
	profiles  ports.ProfileRepository

	similarityThreshold float64
	logger              *slog.Logger
	metrics             SearchMetrics
}

func NewSearchUseCase(
	intents *IntentParserUseCase,
	generated ports.GeneratedQueryRetriever,
	vector ports.VectorSearcher,
	fallback *FallbackRetriever,
	profiles ports.ProfileRepository,
	similarityThreshold float64,
	logger *slog.Logger,
	metrics SearchMetrics,
) *SearchUseCase {
	if similarityThreshold <= 0 {
		similarityThreshold = defaultSimilarityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		intents:             intents,
		generated:           generated,
		vector:              vector,
		fallback:            fallback,
		profiles:            profiles,
		similarityThreshold: similarityThreshold,
		logger:              logger,
		metrics:             metrics,
	}
}

// Search is the engine's sole public entry point. The worst-case outcome of
// any combination of sub-path failures is an empty list, never stale or
// constraint-violating data.
func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) ([]domain.MenuItem, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("query is required"))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	date := req.EffectiveDate()

	profile := uc.loadProfile(ctx, req.UserID)
	intent := uc.intents.Parse(ctx, req.Query, profile)

	// Direct lookup bypass: an explicit item-name filter or a single parsed
	// hall is answered by the structured path alone.
	if intent.Filters.ItemName != "" {
		return uc.legacy(ctx, req.Query, intent, profile, req.Manual, date, limit)
	}

	if intent.Type == domain.IntentFactualLookup && uc.generated != nil {
		items, err := uc.retrieveGenerated(ctx, intent, profile, date, limit)
		if err == nil && len(items) > 0 {
			return postFilterManual(items, req.Manual), nil
		}
		if err != nil {
			uc.logger.Warn("factual_lookup_path_failed", "error", err)
		}
	}

	items := uc.fuse(ctx, intent, profile, req.Manual, date, limit)
	if len(items) > 0 {
		return items, nil
	}

	return uc.legacy(ctx, req.Query, intent, profile, req.Manual, date, limit)
}

func (uc *SearchUseCase) loadProfile(ctx context.Context, userID string) *domain.UserProfile {
	if userID == "" || uc.profiles == nil {
		return nil
	}
	profile, err := uc.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrUserNotFound) {
			uc.logger.Warn("profile_load_failed", "user_id", userID, "error", err)
		}
		return nil
	}
	return profile
}

type scoredCandidate struct {
	item  domain.MenuItem
	score float64
}

// fuse merges the generated-query and vector candidate sets. Each path
// contributes positional base scores; cross-method agreement earns a bonus;
// goal bounds only ever boost, never exclude. The accumulator preserves
// discovery order so equal scores break ties deterministically.
func (uc *SearchUseCase) fuse(
	ctx context.Context,
	intent domain.SearchIntent,
	profile *domain.UserProfile,
	manual domain.ManualFilters,
	date time.Time,
	limit int,
) []domain.MenuItem {
	requiredDiets, excludedAllergens := hardConstraints(intent.Filters, profile)
	hall, meal := resolveHallMeal(intent.Filters, manual)

	order := make([]int64, 0, 2*limit)
	candidates := make(map[int64]*scoredCandidate, 2*limit)

	sqlItems, err := uc.retrieveGeneratedSafe(ctx, intent, profile, date, 2*limit)
	if uc.metrics != nil {
		uc.metrics.ObservePath("generated_sql", len(sqlItems), err)
	}
	if err != nil {
		uc.logger.Warn("generated_query_path_failed", "error", err)
	}
	// Decay follows the raw result position; constraint-skipped rows still
	// count against the items ranked after them.
	for i, item := range sqlItems {
		if !PassesConstraints(item, requiredDiets, excludedAllergens) {
			continue
		}
		if _, seen := candidates[item.ID]; seen {
			continue
		}
		candidates[item.ID] = &scoredCandidate{item: item, score: sqlPathBaseScore - float64(i)*rankDecay}
		order = append(order, item.ID)
	}

	vectorItems, err := uc.searchVectorSafe(ctx, domain.VectorSearchParams{
		Query:               intent.SearchQuery,
		Limit:               2 * limit,
		SimilarityThreshold: uc.similarityThreshold,
		RequiredDiets:       requiredDiets,
		ExcludedAllergens:   excludedAllergens,
		DiningHall:          hall,
		Meal:                meal,
		Date:                date,
	})
	if uc.metrics != nil {
		uc.metrics.ObservePath("vector", len(vectorItems), err)
	}
	if err != nil {
		uc.logger.Warn("vector_path_failed", "error", err)
	}
	for i, item := range vectorItems {
		if existing, seen := candidates[item.ID]; seen {
			existing.score += agreementBonus
			continue
		}
		candidates[item.ID] = &scoredCandidate{item: item, score: vectorPathBaseScore - float64(i)*rankDecay}
		order = append(order, item.ID)
	}

	minProtein, hasProteinFloor := intent.Filters.Bound(domain.BoundMinProtein)
	maxCalories, hasCalorieCeiling := intent.Filters.Bound(domain.BoundMaxCalories)
	for _, id := range order {
		candidate := candidates[id]
		if hasProteinFloor && candidate.item.ProteinG != nil {
			switch {
			case *candidate.item.ProteinG >= minProtein:
				candidate.score += goalBoostFull
			case *candidate.item.ProteinG >= minProtein*0.75:
				candidate.score += goalBoostNear
			}
		}
		if hasCalorieCeiling && candidate.item.Calories != nil {
			switch {
			case *candidate.item.Calories <= maxCalories:
				candidate.score += goalBoostFull
			case *candidate.item.Calories <= maxCalories*1.25:
				candidate.score += goalBoostNear
			}
		}
	}

	ranked := make([]*scoredCandidate, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, candidates[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	items := make([]domain.MenuItem, 0, len(ranked))
	for _, candidate := range ranked {
		items = append(items, candidate.item)
	}

	return postFilterManual(items, manual)
}

func (uc *SearchUseCase) legacy(
	ctx context.Context,
	query string,
	intent domain.SearchIntent,
	profile *domain.UserProfile,
	manual domain.ManualFilters,
	date time.Time,
	limit int,
) ([]domain.MenuItem, error) {
	if uc.fallback == nil {
		return nil, nil
	}
	if uc.metrics != nil {
		uc.metrics.ObserveFallback()
	}

	filters := intent.Filters
	filters.RequiredDiets, filters.ExcludedAllergens = hardConstraints(intent.Filters, profile)
	if len(manual.DiningHalls) > 0 {
		filters.DiningHalls = manual.DiningHalls
	}
	if len(manual.Meals) > 0 {
		filters.Meals = manual.Meals
	}

	items, err := uc.fallback.Retrieve(ctx, query, filters, date, limit)
	if err != nil {
		uc.logger.Error("fallback_retrieve_failed", "error", err)
		return nil, nil
	}
	return postFilterManual(items, manual), nil
}

// retrieveGeneratedSafe shields the fusion pipeline from panics in the
// best-effort generated-SQL path; a panicking sub-path produced nothing.
func (uc *SearchUseCase) retrieveGeneratedSafe(
	ctx context.Context,
	intent domain.SearchIntent,
	profile *domain.UserProfile,
	date time.Time,
	limit int,
) (items []domain.MenuItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("generated_query_panic", "panic", r)
			items, err = nil, nil
		}
	}()
	return uc.retrieveGenerated(ctx, intent, profile, date, limit)
}

func (uc *SearchUseCase) retrieveGenerated(
	ctx context.Context,
	intent domain.SearchIntent,
	profile *domain.UserProfile,
	date time.Time,
	limit int,
) ([]domain.MenuItem, error) {
	if uc.generated == nil {
		return nil, nil
	}
	return uc.generated.Retrieve(ctx, intent.SearchQuery, intent.Filters, profile, date, limit)
}

func (uc *SearchUseCase) searchVectorSafe(ctx context.Context, params domain.VectorSearchParams) (items []domain.MenuItem, err error) {
	if uc.vector == nil {
		// No vector backend configured: silent degradation, not an error.
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("vector_search_panic", "panic", r)
			items, err = nil, nil
		}
	}()
	return uc.vector.Search(ctx, params)
}

// hardConstraints unions query-parsed and profile constraints. Profile diets
// follow the implemented (hard) behavior; profile allergies are always hard.
func hardConstraints(filters domain.FilterSet, profile *domain.UserProfile) (requiredDiets, excludedAllergens []string) {
	requiredDiets = domain.NormalizeDiets(filters.RequiredDiets)
	excludedAllergens = filters.ExcludedAllergens
	if profile != nil {
		requiredDiets = unionFold(requiredDiets, domain.NormalizeDiets(profile.Diets))
		excludedAllergens = unionFold(excludedAllergens, profile.Allergies)
	}
	return unionFold(requiredDiets), unionFold(excludedAllergens)
}

// resolveHallMeal picks the single-value hall/meal used for pre-filtering.
// Query-parsed values are the default; an explicit UI selection of exactly
// one hall or meal overrides them. Multi-value selections defer to the
// post-filter since the pre-filter predicates are single-value equality.
func resolveHallMeal(filters domain.FilterSet, manual domain.ManualFilters) (hall, meal string) {
	hall = filters.PrimaryHall()
	meal = filters.PrimaryMeal()
	if len(manual.DiningHalls) > 0 {
		hall = ""
		if len(manual.DiningHalls) == 1 {
			hall = manual.DiningHalls[0]
		}
	}
	if len(manual.Meals) > 0 {
		meal = ""
		if len(manual.Meals) == 1 {
			meal = manual.Meals[0]
		}
	}
	return hall, meal
}

// postFilterManual enforces UI hall/meal selections as a final hard filter,
// covering multi-value selections the pre-filters cannot express.
func postFilterManual(items []domain.MenuItem, manual domain.ManualFilters) []domain.MenuItem {
	if manual.Empty() {
		return items
	}
	out := make([]domain.MenuItem, 0, len(items))
	for _, item := range items {
		if len(manual.DiningHalls) > 0 && !containsFoldSlice(manual.DiningHalls, item.DiningHall) {
			continue
		}
		if len(manual.Meals) > 0 && !item.AvailableFor(manual.Meals) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func containsFoldSlice(set []string, value string) bool {
	for _, entry := range set {
		if strings.EqualFold(strings.TrimSpace(entry), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}
