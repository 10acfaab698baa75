package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

// AnswerUseCase runs retrieval and hands the ranked list to the answer
// generator, enriched with the user's goal targets and today's consumption.
type AnswerUseCase struct {
	search   ports.MenuSearchService
	profiles ports.ProfileRepository
	streamer ports.AnswerStreamer
	logger   *slog.Logger
}

func NewAnswerUseCase(
	search ports.MenuSearchService,
	profiles ports.ProfileRepository,
	streamer ports.AnswerStreamer,
	logger *slog.Logger,
) *AnswerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{search: search, profiles: profiles, streamer: streamer, logger: logger}
}

func (uc *AnswerUseCase) StreamAnswer(
	ctx context.Context,
	req domain.SearchRequest,
	history string,
	onChunk func(string) error,
) error {
	if strings.TrimSpace(req.Query) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "stream answer", fmt.Errorf("query is required"))
	}

	items, err := uc.search.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("retrieve items: %w", err)
	}

	answerCtx := ports.AnswerContext{Items: items, History: history}
	if req.UserID != "" && uc.profiles != nil {
		answerCtx.Profile, answerCtx.DailyStatus = uc.profileContext(ctx, req)
	}

	if err := uc.streamer.StreamAnswer(ctx, req.Query, answerCtx, onChunk); err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}
	return nil
}

// profileContext is best-effort: a missing user or failed status lookup
// degrades to a profile-less answer.
func (uc *AnswerUseCase) profileContext(ctx context.Context, req domain.SearchRequest) (*domain.UserProfile, *domain.DailyStatus) {
	profile, err := uc.profiles.GetUserProfile(ctx, req.UserID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrUserNotFound) {
			uc.logger.Warn("answer_profile_load_failed", "user_id", req.UserID, "error", err)
		}
		return nil, nil
	}

	targets, err := uc.profiles.GoalTargets(ctx, req.UserID)
	if err != nil {
		uc.logger.Warn("goal_targets_load_failed", "user_id", req.UserID, "error", err)
		targets = domain.TargetsForGoal(profile.Goal)
	}

	entries, err := uc.profiles.ListDietHistory(ctx, req.UserID, req.EffectiveDate())
	if err != nil {
		uc.logger.Warn("diet_history_load_failed", "user_id", req.UserID, "error", err)
		return profile, nil
	}

	status := domain.StatusFor(entries, targets.Calories, targets.ProteinG)
	return profile, &status
}
