package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/pkg/openai"
)

func TestCompareAcrossModels(t *testing.T) {
	oa := &mockOpenAIClient{}
	xai := &mockOpenAIClient{}
	gem := &mockGeminiClient{}
	pplx := &mockPerplexityClient{}

	oa.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(openaiAnswer("widgets widgets pricing guide"), nil)
	xai.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(openaiAnswer("grok answer about widgets"), nil)
	gem.On("GenerateText", mock.Anything, "best widgets").
		Return("gemini answer about widgets", nil)
	pplx.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(perplexityAnswer("sonar answer about widgets"), nil)

	p := New(testConfig(), nil, nil, pplx, nil, oa, xai, gem, nil)

	cmp := p.CompareAcrossModels(context.Background(), "best widgets")
	require.Len(t, cmp.Results, len(model.CompareOrder))
	assert.Equal(t, "best widgets", cmp.Query)
	assert.False(t, cmp.Timestamp.IsZero())

	for i, prov := range model.CompareOrder {
		res := cmp.Results[i]
		assert.Equal(t, prov, res.Provider, "slot %d", i)
		assert.Equal(t, model.ProviderDisplayNames[prov], res.ProviderName)
		assert.True(t, res.Available)
		assert.Empty(t, res.Error)
		assert.NotEmpty(t, res.Response)
		assert.NotEmpty(t, res.KeyTopics)
	}

	// Ordering is stable across repeated calls regardless of goroutine
	// completion order.
	again := p.CompareAcrossModels(context.Background(), "best widgets")
	for i := range cmp.Results {
		assert.Equal(t, cmp.Results[i].Provider, again.Results[i].Provider)
	}
}

func TestCompareProviderFailureIsolated(t *testing.T) {
	oa := &mockOpenAIClient{}
	xai := &mockOpenAIClient{}
	gem := &mockGeminiClient{}
	pplx := &mockPerplexityClient{}

	oa.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, errors.New("rate limited"))
	xai.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(openaiAnswer("grok answer"), nil)
	gem.On("GenerateText", mock.Anything, mock.Anything).
		Return("gemini answer", nil)
	pplx.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(perplexityAnswer("sonar answer"), nil)

	p := New(testConfig(), nil, nil, pplx, nil, oa, xai, gem, nil)

	cmp := p.CompareAcrossModels(context.Background(), "best widgets")
	require.Len(t, cmp.Results, 4)

	openaiSlot := cmp.Results[0]
	assert.Equal(t, model.ProviderOpenAI, openaiSlot.Provider)
	assert.False(t, openaiSlot.Available)
	assert.Contains(t, openaiSlot.Error, "rate limited")
	assert.Empty(t, openaiSlot.Response)

	for _, res := range cmp.Results[1:] {
		assert.True(t, res.Available, "provider %s", res.Provider)
		assert.Empty(t, res.Error)
	}
}

func TestCompareUnconfiguredProvider(t *testing.T) {
	pplx := &mockPerplexityClient{}
	pplx.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(perplexityAnswer("sonar answer"), nil)

	// Only perplexity is configured.
	p := New(testConfig(), nil, nil, pplx, nil, nil, nil, nil, nil)

	cmp := p.CompareAcrossModels(context.Background(), "best widgets")
	require.Len(t, cmp.Results, 4)

	for _, res := range cmp.Results {
		if res.Provider == model.ProviderPerplexity {
			assert.True(t, res.Available)
			continue
		}
		assert.False(t, res.Available)
		assert.Equal(t, "provider not configured", res.Error)
	}
}

func TestCompareEmptyChoices(t *testing.T) {
	oa := &mockOpenAIClient{}
	oa.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&openai.ChatCompletionResponse{}, nil)

	p := New(testConfig(), nil, nil, nil, nil, oa, nil, nil, nil)

	cmp := p.CompareAcrossModels(context.Background(), "best widgets")
	openaiSlot := cmp.Results[0]
	assert.False(t, openaiSlot.Available)
	assert.Contains(t, openaiSlot.Error, "empty model response")
}

func TestKeyTopics(t *testing.T) {
	text := "Widgets pricing guide. Widgets comparison, widgets review: pricing tips and the best guide."
	topics := keyTopics(text, 3)
	// "widgets" x3, "pricing" x2, "guide" x2; alphabetical tiebreak.
	assert.Equal(t, []string{"widgets", "guide", "pricing"}, topics)

	// Deterministic across calls.
	assert.Equal(t, topics, keyTopics(text, 3))

	// Stopwords and short words are filtered.
	assert.Empty(t, keyTopics("the and for are it to a", 5))
}
