package main

import (
	"context"
	"fmt"
	"time"

	"tasfish/internal/assistant"
	"tasfish/internal/composer"
	"tasfish/internal/config"
	fisherrors "tasfish/internal/errors"
	"tasfish/internal/forecast"
	"tasfish/internal/llm"
	"tasfish/internal/logging"
	"tasfish/internal/observability"
	"tasfish/internal/rag"
	"tasfish/internal/rag/gate"
	"tasfish/internal/router"
	"tasfish/internal/species"
	"tasfish/internal/toolregistry"
	"tasfish/internal/tools"
	"tasfish/internal/tools/builtin"
)

const evaluatorWindow = 200

// Container holds the wired application.
type Container struct {
	Config    config.Config
	Obs       *observability.Observability
	Species   *species.Table
	Store     rag.VectorStore
	Ingestor  *rag.Ingestor
	Retriever *rag.Retriever
	Registry  *toolregistry.Registry
	Assistant *assistant.Assistant
	LLM       llm.Client
	logger    logging.Logger
	sink      logging.Logger
}

// buildContainer wires every component from cfg. The index is filled from
// the configured documents when it is empty. Component logs also go to sink
// when it is non-nil.
func buildContainer(ctx context.Context, cfg config.Config, sink logging.Logger) (*Container, error) {
	obs, err := observability.New(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	logging.SetDefault(obs.Logger)
	c := &Container{Config: cfg, Obs: obs, sink: sink}
	c.logger = c.componentLogger("container")
	logger := c.logger

	c.Species, err = species.Load(cfg.Tools.LegalSize.SpeciesFile, c.componentLogger("species"))
	if err != nil {
		return nil, fmt.Errorf("species table: %w", err)
	}

	if err := c.buildIndex(ctx); err != nil {
		return nil, err
	}
	if err := c.buildTools(); err != nil {
		return nil, err
	}
	if c.LLM, err = buildLLM(ctx, cfg, obs, c.componentLogger("llm")); err != nil {
		return nil, err
	}

	comp, err := composer.New(composer.Config{
		Client:        c.LLM,
		Counter:       rag.NewTokenCounter(c.componentLogger("tokens")),
		ContextBudget: cfg.RAG.ContextTokenBudget,
		Timeout:       cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}

	c.Assistant, err = assistant.New(assistant.Config{
		Classifier: c.buildClassifier(),
		Searcher:   c.Retriever,
		Tools:      c.Registry,
		Composer:   comp,
		Normalizer: c.Species,
		TopK:       cfg.RAG.TopK,
		Evaluator:  gate.NewEvaluator(evaluatorWindow),
		Metrics:    obs.Metrics,
		Tracer:     obs.Tracer,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("ready: provider=%s router=%s documents=%d tools=%v",
		cfg.LLM.DefaultProvider, cfg.Router.Strategy, c.Store.Count(), c.Registry.Names())
	return c, nil
}

func (c *Container) buildIndex(ctx context.Context) error {
	cfg := c.Config.RAG
	embedder, err := rag.NewEmbedder(rag.EmbedderConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
		Timeout:    30 * time.Second,
	}, c.componentLogger("embedder"))
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	c.Store, err = rag.NewVectorStore(rag.StoreConfig{
		PersistPath: cfg.VectorDB.PersistPath,
		Collection:  cfg.VectorDB.Name,
		Compress:    cfg.VectorDB.Compress,
	}, embedder)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	chunker, err := rag.NewChunker(rag.ChunkerConfig{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap})
	if err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	c.Ingestor = rag.NewIngestor(chunker, c.Store, c.componentLogger("ingest"))
	c.Retriever = rag.NewRetriever(rag.RetrieverConfig{
		TopK:          cfg.TopK,
		MinSimilarity: cfg.MinSimilarity,
	}, c.Store, c.componentLogger("retriever"), c.Obs.Metrics, c.Obs.Tracer)

	if c.Store.Count() == 0 {
		if _, err := c.Ingest(ctx); err != nil {
			c.logger.Warn("initial ingestion failed, answers will lack citations: %v", err)
		}
	}
	return nil
}

// Ingest loads the configured documents into the store.
func (c *Container) Ingest(ctx context.Context) (rag.IngestStats, error) {
	return c.Ingestor.IngestSources(ctx, c.Config.Documents.BasePath, c.Config.Documents.Sources)
}

func (c *Container) buildTools() error {
	cfg := c.Config.Tools
	var toolset []tools.Tool
	if cfg.LegalSize.Enable {
		toolset = append(toolset, builtin.NewLegalSize(c.Species))
	}

	var provider forecast.Provider
	if cfg.Weather.Enable && cfg.Weather.APIKey != "" && cfg.Weather.Provider == "openweathermap" {
		provider = forecast.NewOpenWeatherMap(forecast.OpenWeatherMapConfig{
			APIKey:      cfg.Weather.APIKey,
			BaseURL:     cfg.Weather.BaseURL,
			Region:      cfg.Weather.Region,
			CountryCode: cfg.Weather.CountryCode,
			Timeout:     cfg.Weather.Timeout,
			RetryCount:  1,
		}, c.componentLogger("openweathermap"))
	}
	toolset = append(toolset, builtin.NewFishingWeather(builtin.FishingWeatherConfig{
		Enabled:  cfg.Weather.Enable,
		Provider: cfg.Weather.Provider,
		APIKey:   cfg.Weather.APIKey,
	}, provider, c.componentLogger("weather")))

	registry, err := toolregistry.New(toolregistry.Config{
		Timeout: cfg.Timeout,
		Logger:  c.componentLogger("tools"),
		Metrics: c.Obs.Metrics,
		Tracer:  c.Obs.Tracer,
	}, toolset...)
	if err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}
	c.Registry = registry
	return nil
}

func buildLLM(ctx context.Context, cfg config.Config, obs *observability.Observability, logger logging.Logger) (llm.Client, error) {
	name := cfg.LLM.DefaultProvider
	provider := cfg.LLM.Provider(name)
	client, err := llm.New(ctx, llm.Config{
		Provider:    name,
		Model:       provider.Model,
		APIKey:      provider.APIKey,
		BaseURL:     provider.BaseURL,
		Temperature: provider.Temperature,
		MaxTokens:   provider.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	if name == llm.ProviderMock {
		return client, nil
	}

	client = llm.WrapWithRateLimit(client, cfg.LLM.RequestsPerMinute, 1)
	if client, err = llm.WrapWithCache(client, cfg.LLM.CacheSize); err != nil {
		return nil, err
	}
	retry := fisherrors.DefaultRetryConfig()
	retry.MaxAttempts = cfg.LLM.MaxRetries
	retry.MaxDelay = 10 * time.Second
	return llm.WrapWithRetry(client, llm.RetryOptions{
		Retry:   retry,
		Breaker: fisherrors.DefaultCircuitBreakerConfig(),
		Logger:  logger,
		Metrics: obs.Metrics,
		Tracer:  obs.Tracer,
	}), nil
}

// buildClassifier uses the model unless routing is pinned to rules or no
// model is configured.
func (c *Container) buildClassifier() router.Classifier {
	if c.Config.Router.Strategy == "rules" || c.Config.LLM.DefaultProvider == llm.ProviderMock {
		return router.NewRuleClassifier(c.Species)
	}
	classifier, err := router.NewLLMClassifier(router.LLMConfig{
		Client: c.LLM,
		Tools:  c.Registry.Definitions(),
		Tracer: c.Obs.Tracer,
	})
	if err != nil {
		c.logger.Warn("llm classifier unavailable, using rules: %v", err)
		return router.NewRuleClassifier(c.Species)
	}
	return classifier
}

func (c *Container) componentLogger(component string) logging.Logger {
	return logging.Multi(logging.NewComponentLogger(component), c.sink)
}

// Shutdown flushes telemetry.
func (c *Container) Shutdown(ctx context.Context) error {
	return c.Obs.Shutdown(ctx)
}
