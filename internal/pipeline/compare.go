package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/pkg/openai"
	"github.com/rankline/seo-cli/pkg/perplexity"
)

var errEmptyResponse = eris.New("empty model response")

// CompareAcrossModels asks every configured provider the same query
// concurrently and returns one result slot per known provider, in fixed
// order. One provider's failure never aborts the others; unconfigured
// providers appear as unavailable.
func (p *Pipeline) CompareAcrossModels(ctx context.Context, query string) *model.Comparison {
	timeout := time.Duration(p.cfg.Pipeline.SearchTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// One independent slot per provider; the fixed-order merge below makes
	// output order deterministic regardless of completion order.
	slots := make(map[model.Provider]*model.CompareResult, len(model.CompareOrder))
	for _, prov := range model.CompareOrder {
		slots[prov] = &model.CompareResult{
			Provider:     prov,
			ProviderName: model.ProviderDisplayNames[prov],
		}
	}

	g := new(errgroup.Group)
	for _, prov := range model.CompareOrder {
		slot := slots[prov]
		call := p.compareCall(prov)
		if call == nil {
			slot.Error = "provider not configured"
			continue
		}
		g.Go(func() error {
			response, err := call(ctx, query)
			if err != nil {
				slot.Error = err.Error()
				return nil
			}
			slot.Available = true
			slot.Response = response
			slot.KeyTopics = keyTopics(response, 5)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]model.CompareResult, 0, len(model.CompareOrder))
	for _, prov := range model.CompareOrder {
		results = append(results, *slots[prov])
	}
	return &model.Comparison{
		Query:     query,
		Results:   results,
		Timestamp: time.Now().UTC(),
	}
}

// compareCall returns the invoke function for a provider, or nil when the
// provider is not configured.
func (p *Pipeline) compareCall(prov model.Provider) func(context.Context, string) (string, error) {
	switch prov {
	case model.ProviderOpenAI:
		if p.openai == nil {
			return nil
		}
		return func(ctx context.Context, query string) (string, error) {
			return chatOnce(ctx, p.openai, p.cfg.OpenAI.Model, query)
		}
	case model.ProviderXAI:
		if p.xai == nil {
			return nil
		}
		return func(ctx context.Context, query string) (string, error) {
			return chatOnce(ctx, p.xai, p.cfg.XAI.Model, query)
		}
	case model.ProviderPerplexity:
		if p.perplexity == nil {
			return nil
		}
		return func(ctx context.Context, query string) (string, error) {
			resp, err := p.perplexity.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
				Model:    p.cfg.Perplexity.Model,
				Messages: []perplexity.Message{{Role: "user", Content: query}},
			})
			if err != nil {
				return "", err
			}
			if len(resp.Choices) == 0 {
				return "", errEmptyResponse
			}
			return resp.Choices[0].Message.Content, nil
		}
	case model.ProviderGoogle:
		if p.gemini == nil {
			return nil
		}
		return func(ctx context.Context, query string) (string, error) {
			return p.gemini.GenerateText(ctx, query)
		}
	}
	return nil
}

// chatOnce issues a single-message chat completion against an
// OpenAI-compatible client.
func chatOnce(ctx context.Context, client openai.Client, modelName, query string) (string, error) {
	resp, err := client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: []openai.Message{{Role: "user", Content: query}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

var compareStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "that": true,
	"this": true, "with": true, "from": true, "your": true, "have": true,
	"has": true, "was": true, "were": true, "will": true, "can": true,
	"its": true, "not": true, "but": true, "you": true, "they": true,
	"their": true, "more": true, "most": true, "also": true, "which": true,
	"when": true, "what": true, "how": true, "than": true, "into": true,
	"about": true, "such": true, "these": true, "there": true, "some": true,
}

// keyTopics extracts the n most frequent meaningful words from a response,
// most frequent first with alphabetical tiebreak for determinism.
func keyTopics(text string, n int) []string {
	counts := make(map[string]int)
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,;:!?()[]\"'*#-")
		if len(word) < 3 || compareStopwords[word] {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}
