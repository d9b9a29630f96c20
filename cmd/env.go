package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/pipeline"
	"github.com/rankline/seo-cli/internal/quota"
	"github.com/rankline/seo-cli/internal/store"
	anthropicpkg "github.com/rankline/seo-cli/pkg/anthropic"
	"github.com/rankline/seo-cli/pkg/firecrawl"
	"github.com/rankline/seo-cli/pkg/gemini"
	"github.com/rankline/seo-cli/pkg/openai"
	"github.com/rankline/seo-cli/pkg/perplexity"
)

// monthlyAllowance is the per-identity operation budget applied when usage
// is tracked in the local store instead of a billing backend.
const monthlyAllowance = 100

// pipelineEnv holds the initialized store, clients, quota gate, and the
// pipeline needed by the run/serve/compare commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Gate     *quota.Gate
	gemini   gemini.Client
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.gemini != nil {
		_ = pe.gemini.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "seo.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initGate builds the quota gate. An explicit billing backend URL wins;
// otherwise recorded usage in the local store backs the gate.
func initGate(st store.Store) *quota.Gate {
	opts := []quota.Option{}
	if cfg.Quota.DemoAllowance > 0 {
		opts = append(opts, quota.WithDemoAllowance(cfg.Quota.DemoAllowance))
	}
	if cfg.Quota.StarterAllowance > 0 {
		opts = append(opts, quota.WithStarterAllowance(cfg.Quota.StarterAllowance))
	}

	var backend quota.Backend
	if cfg.Quota.BackendURL != "" {
		backend = quota.NewHTTPBackend(cfg.Quota.BackendURL, cfg.Quota.BackendKey)
	} else if st != nil {
		backend = store.NewUsageBackend(st, monthlyAllowance, 30*24*time.Hour)
	}
	return quota.NewGate(backend, opts...)
}

// initPipeline sets up the store, all provider clients, the quota gate, and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model))
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	// Comparison providers are optional; each missing key just marks that
	// provider unavailable in compare results.
	var openaiClient openai.Client
	if cfg.OpenAI.Key != "" {
		openaiClient = openai.NewClient(cfg.OpenAI.Key, openai.WithModel(cfg.OpenAI.Model))
	} else {
		zap.L().Debug("SEO_OPENAI_KEY not set, OpenAI comparison disabled")
	}

	var xaiClient openai.Client
	if cfg.XAI.Key != "" {
		xaiClient = openai.NewClient(cfg.XAI.Key,
			openai.WithBaseURL(cfg.XAI.BaseURL),
			openai.WithModel(cfg.XAI.Model))
	} else {
		zap.L().Debug("SEO_XAI_KEY not set, xAI comparison disabled")
	}

	var geminiClient gemini.Client
	if cfg.Gemini.Key != "" {
		geminiClient, err = gemini.NewClient(ctx, cfg.Gemini.Key, gemini.WithModel(cfg.Gemini.Model))
		if err != nil {
			zap.L().Warn("gemini client init failed, Google comparison disabled", zap.Error(err))
			geminiClient = nil
		}
	} else {
		zap.L().Debug("SEO_GEMINI_KEY not set, Google comparison disabled")
	}

	gate := initGate(st)

	p := pipeline.New(cfg, st, firecrawlClient, perplexityClient, anthropicClient,
		openaiClient, xaiClient, geminiClient, gate)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Gate:     gate,
		gemini:   geminiClient,
	}, nil
}
