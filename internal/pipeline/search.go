package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/internal/resilience"
	"github.com/rankline/seo-cli/pkg/perplexity"
)

const maxCompetitors = 5
const placeholderCount = 3

// Search runs one competitor analysis for a single query. Competitor
// entries are derived from the citation URLs of a search-grounded model
// call; when the model returns no citations, a small set of flagged
// placeholder entries keeps the pipeline moving.
func (p *Pipeline) Search(ctx context.Context, query, companyURL string) (*model.CompetitorResult, error) {
	timeout := time.Duration(p.cfg.Pipeline.SearchTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := perplexity.ChatCompletionRequest{
		Model: p.cfg.Perplexity.Model,
		Messages: []perplexity.Message{
			{
				Role:    "system",
				Content: "You analyze the competitive landscape for a search query. Summarize who ranks, what content formats win, and what gaps exist. Be specific and concise.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Search query: %q\nAnalyze the top-ranking competitors for this query and what makes their content rank.", query),
			},
		},
	}
	// Exclude the company's own domain so it never appears as its own
	// competitor.
	if host := hostOf(companyURL); host != "" {
		req.SearchDomainFilter = []string{"-" + host}
	}

	resp, err := resilience.DoVal(ctx, p.retry, "perplexity.search", func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return p.perplexity.ChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: model call")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("search: empty response")
	}

	result := &model.CompetitorResult{
		Query:       query,
		Analysis:    resp.Choices[0].Message.Content,
		Competitors: competitorsFromCitations(query, resp.Citations),
	}
	return result, nil
}

// competitorsFromCitations maps citation URLs to ranked competitor entries,
// or synthesizes flagged placeholders when there are none.
func competitorsFromCitations(query string, citations []string) []model.Competitor {
	if len(citations) == 0 {
		zap.L().Warn("search: no citations returned, synthesizing placeholders",
			zap.String("query", query))
		placeholders := make([]model.Competitor, 0, placeholderCount)
		for i := 1; i <= placeholderCount; i++ {
			placeholders = append(placeholders, model.Competitor{
				URL:         fmt.Sprintf("https://competitor-placeholder-%d.example", i),
				Title:       fmt.Sprintf("Placeholder competitor %d", i),
				Position:    i,
				Insights:    "No live competitor data was available for this query.",
				Placeholder: true,
			})
		}
		return placeholders
	}

	if len(citations) > maxCompetitors {
		citations = citations[:maxCompetitors]
	}
	competitors := make([]model.Competitor, 0, len(citations))
	for i, c := range citations {
		competitors = append(competitors, model.Competitor{
			URL:      c,
			Title:    hostOf(c),
			Position: i + 1,
			Insights: fmt.Sprintf("Ranked source #%d for %q", i+1, query),
		})
	}
	return competitors
}

// hostOf extracts the bare hostname from a URL, empty string on failure.
func hostOf(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
