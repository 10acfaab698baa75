package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dininghall-ai/menu-search/internal/config"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
	"github.com/dininghall-ai/menu-search/internal/core/usecase"
	"github.com/dininghall-ai/menu-search/internal/infrastructure/llm/openai"
	"github.com/dininghall-ai/menu-search/internal/infrastructure/queue/nats"
	"github.com/dininghall-ai/menu-search/internal/infrastructure/repository/postgres"
	"github.com/dininghall-ai/menu-search/internal/infrastructure/resilience"
	"github.com/dininghall-ai/menu-search/internal/infrastructure/retrieval/sqlgen"
	"github.com/dininghall-ai/menu-search/internal/infrastructure/vector/pgvector"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Menus    ports.MenuRepository
	Profiles ports.ProfileRepository

	SearchUC   ports.MenuSearchService
	ChatUC     ports.ChatService
	BackfillUC *usecase.BackfillUseCase

	closeFn func()
}

type Options struct {
	Logger *slog.Logger
	// SearchMetrics receives retrieval-path observations; nil disables them.
	SearchMetrics usecase.SearchMetrics
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	menus := postgres.NewMenuRepository(db)
	if err := menus.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	vectorEnabled := cfg.VectorEnabled
	if vectorEnabled {
		if err := menus.EnsureVectorSchema(ctx); err != nil {
			logger.Warn("vector_schema_unavailable", "error", err)
			vectorEnabled = false
		}
	}

	profiles := postgres.NewProfileRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	client := openai.New(openai.Options{
		BaseURL:           cfg.OpenAIBaseURL,
		APIKey:            cfg.OpenAIAPIKey,
		ChatModel:         cfg.OpenAIChatModel,
		EmbedModel:        cfg.OpenAIEmbedModel,
		RequestsPerSecond: cfg.OpenAIRequestsPerSecond,
		Timeout:           time.Duration(cfg.OpenAITimeoutSeconds) * time.Second,
		Executor:          executor,
	})
	intentCompleter := openai.NewIntentParser(client)
	sqlGenerator := openai.NewSQLGenerator(client)
	embedder := openai.NewEmbedder(client)
	streamer := openai.NewAnswerStreamer(client)
	inferrer := openai.NewIngredientInferrer(client)

	generated := sqlgen.NewRetriever(sqlGenerator, db, menus, logger)
	var vectorSearcher ports.VectorSearcher
	if vectorEnabled {
		vectorSearcher = pgvector.NewSearcher(db, embedder, menus, logger)
	}

	intents := usecase.NewIntentParserUseCase(intentCompleter, logger)
	fallback := usecase.NewFallbackRetriever(menus)
	searchUC := usecase.NewSearchUseCase(
		intents,
		generated,
		vectorSearcher,
		fallback,
		profiles,
		cfg.SimilarityThreshold,
		logger,
		opts.SearchMetrics,
	)
	chatUC := usecase.NewAnswerUseCase(searchUC, profiles, streamer, logger)
	backfillUC := usecase.NewBackfillUseCase(menus, embedder, inferrer, logger)

	return &App{
		Config: cfg,

		Queue:    queue,
		Menus:    menus,
		Profiles: profiles,

		SearchUC:   searchUC,
		ChatUC:     chatUC,
		BackfillUC: backfillUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
