package model

import "time"

// Provider identifies a language model vendor in the comparison matrix.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderGoogle     Provider = "google"
	ProviderPerplexity Provider = "perplexity"
	ProviderXAI        Provider = "xai"
)

// CompareOrder is the fixed, deterministic ordering of providers in a
// comparison result, independent of which provider responded first.
var CompareOrder = []Provider{
	ProviderOpenAI,
	ProviderGoogle,
	ProviderPerplexity,
	ProviderXAI,
}

// ProviderDisplayNames maps provider IDs to user-facing names.
var ProviderDisplayNames = map[Provider]string{
	ProviderOpenAI:     "OpenAI GPT",
	ProviderGoogle:     "Google Gemini",
	ProviderPerplexity: "Perplexity Sonar",
	ProviderXAI:        "xAI Grok",
}

// CompareResult is one provider's outcome for a comparison query.
// Unconfigured providers appear with Available=false and no response.
type CompareResult struct {
	Provider     Provider `json:"provider"`
	ProviderName string   `json:"providerName"`
	Available    bool     `json:"available"`
	Response     string   `json:"response,omitempty"`
	KeyTopics    []string `json:"keyTopics,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Comparison aggregates all provider results for one query.
type Comparison struct {
	Query     string          `json:"query"`
	Results   []CompareResult `json:"results"`
	Timestamp time.Time       `json:"timestamp"`
}
