package pipeline

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/internal/store"
	"github.com/rankline/seo-cli/pkg/anthropic"
	"github.com/rankline/seo-cli/pkg/firecrawl"
	"github.com/rankline/seo-cli/pkg/openai"
	"github.com/rankline/seo-cli/pkg/perplexity"
)

// --- Firecrawl Mock ---

type mockFirecrawlClient struct {
	mock.Mock
}

func (m *mockFirecrawlClient) Map(ctx context.Context, req firecrawl.MapRequest) (*firecrawl.MapResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.MapResponse), args.Error(1)
}

func (m *mockFirecrawlClient) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.ScrapeResponse), args.Error(1)
}

func (m *mockFirecrawlClient) BatchScrape(ctx context.Context, req firecrawl.BatchScrapeRequest) (*firecrawl.BatchScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.BatchScrapeResponse), args.Error(1)
}

func (m *mockFirecrawlClient) GetBatchScrapeStatus(ctx context.Context, id string) (*firecrawl.BatchScrapeStatusResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.BatchScrapeStatusResponse), args.Error(1)
}

// --- Perplexity Mock ---

type mockPerplexityClient struct {
	mock.Mock
}

func (m *mockPerplexityClient) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- OpenAI-compatible Mock ---

type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) ChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.ChatCompletionResponse), args.Error(1)
}

// --- Gemini Mock ---

type mockGeminiClient struct {
	mock.Mock
}

func (m *mockGeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockGeminiClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
	store.Store
}

func (m *mockStore) SaveRun(ctx context.Context, artifact model.RunArtifact) error {
	args := m.Called(ctx, artifact)
	return args.Error(0)
}

// --- Response builders ---

func textMessage(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func perplexityAnswer(content string, citations ...string) *perplexity.ChatCompletionResponse {
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{
			Message: perplexity.Message{Role: "assistant", Content: content},
		}},
		Citations: citations,
	}
}

func firecrawlMap(links ...string) *firecrawl.MapResponse {
	return &firecrawl.MapResponse{Success: true, Links: links}
}

func firecrawlBatch(id string) *firecrawl.BatchScrapeResponse {
	return &firecrawl.BatchScrapeResponse{Success: true, ID: id}
}

func firecrawlStatus(pages ...firecrawl.PageData) *firecrawl.BatchScrapeStatusResponse {
	return &firecrawl.BatchScrapeStatusResponse{
		Status: "completed",
		Total:  len(pages),
		Data:   pages,
	}
}

func page(url, markdown string) firecrawl.PageData {
	return firecrawl.PageData{URL: url, Markdown: markdown, StatusCode: 200}
}

// matchSystem matches anthropic requests by their system prompt, which is
// how the pipeline's three Claude call sites are told apart.
func matchSystem(system string) interface{} {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System == system
	})
}

// matchQuery matches perplexity requests whose user message carries the
// given (quoted) search query.
func matchQuery(query string) interface{} {
	return mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		for _, m := range req.Messages {
			if m.Role == "user" && strings.Contains(m.Content, `"`+query+`"`) {
				return true
			}
		}
		return false
	})
}

func openaiAnswer(content string) *openai.ChatCompletionResponse {
	return &openai.ChatCompletionResponse{
		Choices: []openai.Choice{{
			Message: openai.Message{Role: "assistant", Content: content},
		}},
	}
}
