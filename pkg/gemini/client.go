// Package gemini wraps the Google generative AI SDK for plain text
// generation.
package gemini

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

// Client generates text via the Gemini API.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

type sdkClient struct {
	client *genai.Client
	model  string
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// NewClient creates a Gemini client. Callers must Close it.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	c := &sdkClient{client: gc, model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *sdkClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	m := c.client.GenerativeModel(c.model)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}

	return flattenResponse(resp)
}

// flattenResponse concatenates the text parts of every candidate. Non-text
// parts and empty candidates are skipped; a response with no text at all is
// an error.
func flattenResponse(resp *genai.GenerateContentResponse) (string, error) {
	var out string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				out += string(t)
			}
		}
	}
	if out == "" {
		return "", eris.New("gemini: empty response")
	}
	return out, nil
}

func (c *sdkClient) Close() error {
	return c.client.Close()
}
