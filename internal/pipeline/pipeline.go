// Package pipeline drives the five-stage content analysis flow: scrape ->
// embed -> query generation -> competitor analysis -> content generation.
// Stages run strictly in order; each stage's request embeds the previous
// stage's output, so stage N never starts before stage N-1 has settled.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/config"
	"github.com/rankline/seo-cli/internal/cost"
	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/internal/quota"
	"github.com/rankline/seo-cli/internal/resilience"
	"github.com/rankline/seo-cli/internal/store"
	"github.com/rankline/seo-cli/pkg/anthropic"
	"github.com/rankline/seo-cli/pkg/firecrawl"
	"github.com/rankline/seo-cli/pkg/gemini"
	"github.com/rankline/seo-cli/pkg/openai"
	"github.com/rankline/seo-cli/pkg/perplexity"
)

// Observer receives a snapshot of the run after every state transition.
// Snapshots are deep copies; observers may retain them freely.
type Observer func(*model.Run)

// Pipeline orchestrates the five analysis stages for a single URL.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	firecrawl  firecrawl.Client
	perplexity perplexity.Client
	anthropic  anthropic.Client
	openai     openai.Client
	xai        openai.Client
	gemini     gemini.Client
	gate       *quota.Gate
	costCalc   *cost.Calculator
	retry      resilience.RetryConfig
}

// New creates a Pipeline with all dependencies. The store may be nil (runs
// are then not persisted); comparison providers may be nil (they are
// reported unavailable).
func New(
	cfg *config.Config,
	st store.Store,
	fcClient firecrawl.Client,
	pplxClient perplexity.Client,
	aiClient anthropic.Client,
	oaClient openai.Client,
	xaiClient openai.Client,
	gemClient gemini.Client,
	gate *quota.Gate,
) *Pipeline {
	if gate == nil {
		gate = quota.NewGate(nil)
	}
	// Provider calls are single-shot: a failed stage surfaces to the caller,
	// who re-invokes the run. Backoff retries apply only when an operator
	// raises pipeline.retry_attempts above 1.
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 1
	if cfg.Pipeline.RetryAttempts > 1 {
		retry.MaxAttempts = cfg.Pipeline.RetryAttempts
	}
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		firecrawl:  fcClient,
		perplexity: pplxClient,
		anthropic:  aiClient,
		openai:     oaClient,
		xai:        xaiClient,
		gemini:     gemClient,
		gate:       gate,
		costCalc:   cost.NewCalculator(ratesFrom(cfg.Pricing)),
		retry:      retry,
	}
}

// ratesFrom maps the pricing config onto the calculator's rate table.
// Unset sections keep the built-in defaults.
func ratesFrom(p config.PricingConfig) cost.Rates {
	r := cost.DefaultRates()
	if len(p.Anthropic) > 0 {
		r.Anthropic = make(map[string]cost.ModelRate, len(p.Anthropic))
		for m, mp := range p.Anthropic {
			r.Anthropic[m] = cost.ModelRate{Input: mp.Input, Output: mp.Output}
		}
	}
	if p.Perplexity.PerQuery > 0 {
		r.Perplexity.PerQuery = p.Perplexity.PerQuery
	}
	if p.Firecrawl.PlanMonthly > 0 {
		r.Firecrawl.PlanMonthly = p.Firecrawl.PlanMonthly
	}
	if p.Firecrawl.CreditsIncluded > 0 {
		r.Firecrawl.CreditsIncluded = p.Firecrawl.CreditsIncluded
	}
	return r
}

// Run executes the full pipeline for rawURL on behalf of identity. The
// observer, if non-nil, is invoked with a snapshot after every stage
// transition and after every per-query loop item settles. The returned Run
// reflects final state even when err is non-nil: completed stages keep
// their results.
func (p *Pipeline) Run(ctx context.Context, rawURL, identity string, observe Observer) (*model.Run, error) {
	run := model.NewRun(uuid.NewString(), rawURL)
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("url", run.URL))
	log.Info("pipeline: starting run")

	publish := func() {
		if observe != nil {
			observe(run.Clone())
		}
	}
	setStage := func(stage model.Stage, status model.StageStatus) {
		run.StageStatus[stage] = status
		publish()
	}
	fail := func(stage model.Stage, err error) (*model.Run, error) {
		run.StageStatus[stage] = model.StageError
		run.Error = err.Error()
		log.Error("pipeline: stage failed", zap.String("stage", string(stage)), zap.Error(err))
		publish()
		return run, err
	}

	var totalUsage anthropic.TokenUsage

	// ===== Stage 1: Scrape =====
	setStage(model.StageScrape, model.StageProcessing)

	if d := p.gate.Check(ctx, identity, quota.OpScrape); !d.Allowed {
		return fail(model.StageScrape, eris.New(d.Reason))
	}
	scraped, err := p.Scrape(ctx, run.URL)
	if err != nil {
		return fail(model.StageScrape, err)
	}
	p.gate.Record(ctx, identity, quota.OpScrape)

	run.ScrapedPages = scraped.Pages
	run.ScrapedContent = scraped.Content
	run.PageCount = scraped.PageCount
	setStage(model.StageScrape, model.StageCompleted)
	log.Info("pipeline: scrape complete",
		zap.Int("discovered", len(scraped.Pages)),
		zap.Int("pages", scraped.PageCount),
	)

	// ===== Stage 2: Embed (placeholder) =====
	// No external call yet; held as a discrete step so progress consumers
	// see a stable five-stage sequence.
	setStage(model.StageEmbed, model.StageProcessing)
	select {
	case <-time.After(time.Duration(p.cfg.Pipeline.EmbedDelayMillis) * time.Millisecond):
	case <-ctx.Done():
		return fail(model.StageEmbed, eris.Wrap(ctx.Err(), "pipeline: embed"))
	}
	setStage(model.StageEmbed, model.StageCompleted)

	// ===== Stage 3: Query generation =====
	setStage(model.StageQueryGen, model.StageProcessing)

	if d := p.gate.Check(ctx, identity, quota.OpAnalyze); !d.Allowed {
		return fail(model.StageQueryGen, eris.New(d.Reason))
	}
	analysis, usage, err := p.Analyze(ctx, run.ScrapedContent, run.URL)
	if err != nil {
		return fail(model.StageQueryGen, err)
	}
	p.gate.Record(ctx, identity, quota.OpAnalyze)
	totalUsage.InputTokens += usage.InputTokens
	totalUsage.OutputTokens += usage.OutputTokens

	run.Profile = &model.CompanyProfile{
		Description:    analysis.CompanyDescription,
		TargetAudience: analysis.TargetAudience,
	}
	run.Queries = analysis.Queries
	if max := p.cfg.Pipeline.MaxQueries; max > 0 && len(run.Queries) > max {
		run.Queries = run.Queries[:max]
	}
	setStage(model.StageQueryGen, model.StageCompleted)
	log.Info("pipeline: query generation complete",
		zap.Int("queries", len(run.Queries)),
		zap.Bool("degraded", analysis.Degraded),
	)

	// ===== Stage 4: Competitor analysis loop =====
	// Strictly sequential: one query's failure skips that query and moves
	// on. Only cancellation aborts the whole stage.
	setStage(model.StageCompetitors, model.StageProcessing)

	processed := run.Queries
	if n := p.cfg.Pipeline.ProcessedQueries; n > 0 && len(processed) > n {
		processed = processed[:n]
	}

	for i, q := range processed {
		if ctx.Err() != nil {
			run.CurrentQuery = -1
			return fail(model.StageCompetitors, eris.Wrap(ctx.Err(), "pipeline: competitor loop"))
		}
		run.CurrentQuery = i
		publish()

		if d := p.gate.Check(ctx, identity, quota.OpSearch); !d.Allowed {
			log.Warn("pipeline: search quota denied, skipping query",
				zap.String("query", q), zap.String("reason", d.Reason))
			continue
		}
		result, searchErr := p.Search(ctx, q, run.URL)
		if searchErr != nil {
			log.Warn("pipeline: competitor search failed, skipping query",
				zap.String("query", q), zap.Error(searchErr))
			continue
		}
		p.gate.Record(ctx, identity, quota.OpSearch)
		run.CompetitorResults = append(run.CompetitorResults, *result)
		publish()
	}
	run.CurrentQuery = -1
	setStage(model.StageCompetitors, model.StageCompleted)
	log.Info("pipeline: competitor analysis complete",
		zap.Int("results", len(run.CompetitorResults)),
	)

	// ===== Stage 5: Content generation loop =====
	// Iterates only queries with a successful competitor result, in the
	// same order.
	setStage(model.StageContent, model.StageProcessing)

	for i, cr := range run.CompetitorResults {
		if ctx.Err() != nil {
			run.CurrentQuery = -1
			return fail(model.StageContent, eris.Wrap(ctx.Err(), "pipeline: content loop"))
		}
		run.CurrentQuery = i
		publish()

		if d := p.gate.Check(ctx, identity, quota.OpGenerate); !d.Allowed {
			log.Warn("pipeline: generate quota denied, skipping query",
				zap.String("query", cr.Query), zap.String("reason", d.Reason))
			continue
		}
		guideline, content, usage, genErr := p.GenerateQueryContent(ctx, GenerateRequest{
			Query:              cr.Query,
			CompanyDescription: run.Profile.Description,
			TargetAudience:     run.Profile.TargetAudience,
			CompanyURL:         run.URL,
			CurrentContent:     excerpt(run.ScrapedContent, 2000),
			CompetitorAnalysis: cr.Analysis,
		})
		if genErr != nil {
			log.Warn("pipeline: content generation failed, skipping query",
				zap.String("query", cr.Query), zap.Error(genErr))
			continue
		}
		p.gate.Record(ctx, identity, quota.OpGenerate)
		totalUsage.InputTokens += usage.InputTokens
		totalUsage.OutputTokens += usage.OutputTokens

		run.QueryContent = append(run.QueryContent, model.QueryContent{
			Query:     cr.Query,
			Guideline: guideline,
			Content:   content,
		})
		publish()
	}
	run.CurrentQuery = -1
	setStage(model.StageContent, model.StageCompleted)

	run.EstimatedCost = p.costCalc.Claude(p.cfg.Anthropic.SonnetModel,
		int(totalUsage.InputTokens), int(totalUsage.OutputTokens)) +
		float64(len(run.CompetitorResults))*p.costCalc.PerplexityQuery() +
		p.costCalc.FirecrawlCredits(run.PageCount)

	p.persist(ctx, identity, run, log)

	log.Info("pipeline: run complete",
		zap.Int("queries", len(run.Queries)),
		zap.Int("competitor_results", len(run.CompetitorResults)),
		zap.Int("content_entries", len(run.QueryContent)),
		zap.Float64("estimated_cost_usd", run.EstimatedCost),
	)
	publish()
	return run, nil
}

// persist saves the run's final artifacts. Persistence failures are logged,
// never fatal: the caller already holds the full result in memory.
func (p *Pipeline) persist(ctx context.Context, identity string, run *model.Run, log *zap.Logger) {
	if p.store == nil {
		return
	}
	profileID := identity
	if profileID == "" {
		profileID = "anonymous"
	}
	var profile model.CompanyProfile
	if run.Profile != nil {
		profile = *run.Profile
	}
	artifact := model.RunArtifact{
		ID:        run.ID,
		ProfileID: profileID,
		URL:       run.URL,
		Profile:   profile,
		Queries:   run.Queries,
		Results:   run.CompetitorResults,
		Content:   run.QueryContent,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.SaveRun(ctx, artifact); err != nil {
		log.Warn("pipeline: failed to persist run", zap.Error(err))
	}
}

// excerpt returns at most n characters of s.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
