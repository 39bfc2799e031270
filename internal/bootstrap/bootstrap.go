package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/knowledge-retrieval-service/internal/config"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/ports"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/usecase"
	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Pipeline *usecase.RetrievalPipeline
	Queue    ports.FeedbackQueue
	Chunks   *postgres.ChunkRepository
	Keys     ports.APIKeyStore

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	chunks := postgres.NewChunkRepository(db)
	if err := chunks.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	keys := postgres.NewAPIKeyRepository(db)

	executorCfg := resilience.DefaultConfig()
	if cfg.RetryMaxAttempts > 0 {
		executorCfg.RetryMaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.BreakerMinRequests > 0 {
		executorCfg.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	executor := resilience.NewExecutor(executorCfg)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init feedback queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	expansionGen := ollama.NewExpander(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.RetrievalTimeout)
	pairScorer := crossencoder.New(cfg.RerankerURL, cfg.RerankerTimeout, executor)

	rules, err := config.LoadStrategyRules(cfg.StrategyRulesPath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load strategy rules: %w", err)
	}

	pipeline := usecase.NewRetrievalPipeline(
		usecase.NewQueryPreprocessor(cfg.MaxQueryLength),
		usecase.NewIntentRecognizer(),
		usecase.NewStrategyScheduler(rules),
		usecase.NewMultiQueryExpander(expansionGen),
		usecase.NewHybridRetriever(embedder, vectorDB, vectorDB, cfg.RetrievalTimeout),
		usecase.NewMetadataFilter(),
		usecase.NewReranker(pairScorer),
		chunks,
		queue,
	)

	return &App{
		Config:   cfg,
		Pipeline: pipeline,
		Queue:    queue,
		Chunks:   chunks,
		Keys:     keys,

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
