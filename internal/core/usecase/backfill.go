package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

// BackfillUseCase populates missing item embeddings. Embeddings are built
// from name plus ingredients, so items scraped without ingredient data get
// them inferred from the dish name first.
type BackfillUseCase struct {
	menus    ports.MenuRepository
	embedder ports.Embedder
	inferrer ports.IngredientInferrer
	logger   *slog.Logger
}

func NewBackfillUseCase(
	menus ports.MenuRepository,
	embedder ports.Embedder,
	inferrer ports.IngredientInferrer,
	logger *slog.Logger,
) *BackfillUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackfillUseCase{menus: menus, embedder: embedder, inferrer: inferrer, logger: logger}
}

// BackfillByID embeds a single item, typically in response to a queue event.
func (uc *BackfillUseCase) BackfillByID(ctx context.Context, itemID int64) error {
	items, err := uc.menus.GetByIDs(ctx, []int64{itemID})
	if err != nil {
		return fmt.Errorf("load item %d: %w", itemID, err)
	}
	if len(items) == 0 {
		uc.logger.Warn("backfill_item_missing", "item_id", itemID)
		return nil
	}
	_, err = uc.backfillOne(ctx, items[0])
	return err
}

// BackfillForDate sweeps all items for a date that still lack embeddings.
func (uc *BackfillUseCase) BackfillForDate(ctx context.Context, date time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	done := 0
	for {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		items, err := uc.menus.ListMissingEmbeddings(ctx, date, batchSize)
		if err != nil {
			return done, fmt.Errorf("list missing embeddings: %w", err)
		}
		if len(items) == 0 {
			return done, nil
		}
		saved := 0
		for _, item := range items {
			embedded, err := uc.backfillOne(ctx, item)
			if err != nil {
				uc.logger.Warn("backfill_item_failed", "item_id", item.ID, "error", err)
				continue
			}
			if embedded {
				saved++
			}
		}
		done += saved
		if len(items) < batchSize {
			return done, nil
		}
		// Skipped and failed items stay in the missing set, so a full batch
		// that saved nothing would come back identical on the next fetch.
		if saved == 0 {
			uc.logger.Warn("backfill_sweep_stalled", "batch_size", len(items))
			return done, nil
		}
	}
}

// backfillOne reports whether it actually saved an embedding; skips are not
// progress, and the sweep loop relies on that distinction to terminate.
func (uc *BackfillUseCase) backfillOne(ctx context.Context, item domain.MenuItem) (bool, error) {
	if len(item.Embedding) > 0 {
		return false, nil
	}

	ingredients := item.Ingredients
	if len(ingredients) == 0 && uc.inferrer != nil {
		inferred, err := uc.inferrer.InferIngredients(ctx, item.Name)
		if err != nil {
			uc.logger.Warn("ingredient_inference_failed", "item_id", item.ID, "error", err)
		} else {
			ingredients = inferred
		}
	}
	if len(ingredients) == 0 {
		// The embedding column stays null: embedded items must carry
		// non-empty ingredients.
		uc.logger.Info("backfill_skipped_no_ingredients", "item_id", item.ID, "item", item.Name)
		return false, nil
	}

	item.Ingredients = ingredients
	vector, err := uc.embedder.EmbedQuery(ctx, item.EmbeddingText())
	if err != nil {
		return false, fmt.Errorf("embed item %d: %w", item.ID, err)
	}

	if err := uc.menus.SaveEmbedding(ctx, item.ID, ingredients, vector); err != nil {
		return false, fmt.Errorf("save embedding %d: %w", item.ID, err)
	}
	return true, nil
}
