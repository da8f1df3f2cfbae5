package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-cli/internal/citation"
	"github.com/sells-group/tuition-cli/internal/extract"
	"github.com/sells-group/tuition-cli/internal/pipeline"
	"github.com/sells-group/tuition-cli/internal/resilience"
	"github.com/sells-group/tuition-cli/internal/store"
	"github.com/sells-group/tuition-cli/internal/verify"
	anthropicpkg "github.com/sells-group/tuition-cli/pkg/anthropic"
	"github.com/sells-group/tuition-cli/pkg/gemini"
)

// pipelineEnv bundles the wired pipeline with the store it writes to.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
}

func (e *pipelineEnv) Close() {
	e.Store.Close() //nolint:errcheck
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "tuition.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Gemini.Key == "" {
		return nil, eris.New("gemini API key is required (TUITION_GEMINI_KEY)")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (TUITION_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	geminiClient := gemini.NewClient(cfg.Gemini.Key,
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
	)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	retry := resilience.RetryConfig{
		MaxRetries: cfg.Pipeline.MaxRetries,
		BaseDelay:  cfg.Pipeline.BaseDelay(),
		MaxDelay:   cfg.Pipeline.MaxDelay(),
		Jitter:     true,
	}

	extractor := extract.New(geminiClient, extract.Config{
		Retry:       retry,
		MaxVariants: cfg.Pipeline.MaxVariationRetries,
	})
	verifier := verify.New(verify.NewCritic(anthropicClient, cfg.Anthropic.Model, retry))
	citations := citation.Extractor{TruncationChars: cfg.Pipeline.ContentTruncationChar}

	p := pipeline.New(extractor, citations, verifier, st, pipeline.Config{
		RetryOnRecommendation: cfg.Pipeline.RetryOnRecommendation,
	})

	return &pipelineEnv{Pipeline: p, Store: st}, nil
}
