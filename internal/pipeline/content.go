package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/internal/normalize"
	"github.com/rankline/seo-cli/internal/resilience"
	"github.com/rankline/seo-cli/pkg/anthropic"
)

// GenerateRequest carries everything the two-step content generation call
// needs for one query.
type GenerateRequest struct {
	Query              string
	CompanyDescription string
	TargetAudience     string
	CompanyURL         string
	CurrentContent     string
	CompetitorAnalysis string
}

const guidelineSystemPrompt = `You are an SEO content strategist. Given a target query, a business profile, and a competitor analysis, produce a content strategy guideline. Respond with JSON only, matching exactly:
{"query": string, "contentGaps": [string], "competitorStrengths": [string], "recommendedApproach": string, "differentiators": [string], "targetWordCount": number, "primaryKeywords": [string], "secondaryKeywords": [string]}`

const contentSystemPrompt = `You are an SEO content writer. Produce a complete, publish-ready HTML page following the supplied strategy guideline. Respond with JSON only, matching exactly:
{"html": string, "metaTitle": string, "metaDescription": string, "summary": string}
The html field must be a full document starting with <!DOCTYPE html>.`

// GenerateQueryContent runs the two-step generation for one query: first a
// strategy guideline, then full HTML content constrained by it. Both steps
// go through the defensive normalizer, so malformed model output degrades
// instead of failing the query.
func (p *Pipeline) GenerateQueryContent(ctx context.Context, req GenerateRequest) (model.Guideline, model.GeneratedContent, anthropic.TokenUsage, error) {
	timeout := time.Duration(p.cfg.Pipeline.GenerateTimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var total anthropic.TokenUsage

	guidelineResp, err := resilience.DoVal(ctx, p.retry, "anthropic.guideline", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.HaikuModel,
			MaxTokens: 1024,
			System:    guidelineSystemPrompt,
			Messages: []anthropic.Message{{
				Role: "user",
				Content: fmt.Sprintf(
					"Query: %s\nBusiness: %s\nAudience: %s\nWebsite: %s\n\nCompetitor analysis:\n%s",
					req.Query, req.CompanyDescription, req.TargetAudience, req.CompanyURL, req.CompetitorAnalysis,
				),
			}},
		})
	})
	if err != nil {
		return model.Guideline{}, model.GeneratedContent{}, total, eris.Wrap(err, "generate: guideline call")
	}
	total.InputTokens += guidelineResp.Usage.InputTokens
	total.OutputTokens += guidelineResp.Usage.OutputTokens
	guidelineResp.Usage.LogCost(p.cfg.Anthropic.HaikuModel, "guideline")

	guideline := normalize.ParseGuideline(guidelineResp.Text(), req.Query)

	guidelineJSON, err := json.Marshal(guideline)
	if err != nil {
		return model.Guideline{}, model.GeneratedContent{}, total, eris.Wrap(err, "generate: encode guideline")
	}

	contentResp, err := resilience.DoVal(ctx, p.retry, "anthropic.content", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.SonnetModel,
			MaxTokens: 8192,
			System:    contentSystemPrompt,
			Messages: []anthropic.Message{{
				Role: "user",
				Content: fmt.Sprintf(
					"Query: %s\nBusiness: %s\nAudience: %s\n\nStrategy guideline:\n%s\n\nExisting site content excerpt:\n%s",
					req.Query, req.CompanyDescription, req.TargetAudience, string(guidelineJSON), req.CurrentContent,
				),
			}},
		})
	})
	if err != nil {
		return guideline, model.GeneratedContent{}, total, eris.Wrap(err, "generate: content call")
	}
	total.InputTokens += contentResp.Usage.InputTokens
	total.OutputTokens += contentResp.Usage.OutputTokens
	contentResp.Usage.LogCost(p.cfg.Anthropic.SonnetModel, "content")

	content := normalize.ParseContent(contentResp.Text(), req.Query)
	return guideline, content, total, nil
}
