package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration is sufficient for the given mode.
// Modes: "run" (full pipeline invocation), "serve" (HTTP API server),
// "compare" (multi-model comparison only).
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "run":
		if c.Firecrawl.Key == "" {
			missing = append(missing, "firecrawl.key is required")
		}
		if c.Perplexity.Key == "" {
			missing = append(missing, "perplexity.key is required")
		}
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RatePerSecond <= 0 {
			missing = append(missing, "server.rate_per_second must be > 0")
		}
	case "compare":
		if c.OpenAI.Key == "" && c.Gemini.Key == "" && c.Perplexity.Key == "" && c.XAI.Key == "" {
			missing = append(missing, "at least one comparison provider key is required")
		}
	default:
		return eris.New(fmt.Sprintf("config: unknown mode %q", mode))
	}

	if c.Pipeline.ProcessedQueries < 1 || c.Pipeline.ProcessedQueries > c.Pipeline.MaxQueries {
		missing = append(missing, fmt.Sprintf(
			"pipeline.processed_queries must be between 1 and %d", c.Pipeline.MaxQueries))
	}
	if c.Pipeline.MaxContentPages < 1 || c.Pipeline.MaxContentPages > c.Pipeline.MaxDiscoverPages {
		missing = append(missing, fmt.Sprintf(
			"pipeline.max_content_pages must be between 1 and %d", c.Pipeline.MaxDiscoverPages))
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}
