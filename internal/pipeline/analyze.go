package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rankline/seo-cli/internal/normalize"
	"github.com/rankline/seo-cli/internal/resilience"
	"github.com/rankline/seo-cli/pkg/anthropic"
)

const analyzeSystemPrompt = `You are an SEO strategist. Given website content, you produce a concise business profile and candidate search queries the business should rank for. Respond with JSON only, no prose, matching exactly:
{"companyDescription": string, "targetAudience": string, "queries": [string]}
Return between 10 and 15 queries, most valuable first.`

// Analyze derives a business profile and candidate search queries from
// scraped site content. Empty content falls back to a prompt built from the
// URL alone. The result is always usable: malformed model output degrades
// to a synthetic profile via the normalizer.
func (p *Pipeline) Analyze(ctx context.Context, content, url string) (normalize.Analysis, anthropic.TokenUsage, error) {
	timeout := time.Duration(p.cfg.Pipeline.SearchTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if budget := p.cfg.Pipeline.AnalyzeCharBudget; budget > 0 && len(content) > budget {
		content = content[:budget]
	}
	if content == "" {
		content = "No page text could be extracted. The website is: " + url
	}

	resp, err := resilience.DoVal(ctx, p.retry, "anthropic.analyze", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.HaikuModel,
			MaxTokens: 1024,
			System:    analyzeSystemPrompt,
			Messages: []anthropic.Message{{
				Role:    "user",
				Content: fmt.Sprintf("Website: %s\n\nContent:\n%s", url, content),
			}},
		})
	})
	if err != nil {
		return normalize.Analysis{}, anthropic.TokenUsage{}, eris.Wrap(err, "analyze: model call")
	}

	resp.Usage.LogCost(p.cfg.Anthropic.HaikuModel, "analyze")
	return normalize.ParseAnalysis(resp.Text(), url), resp.Usage, nil
}
