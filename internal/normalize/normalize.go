// Package normalize defensively decodes language-model text output into
// typed structures. Model completions are not guaranteed to be valid JSON:
// they arrive fenced, truncated, or free-form. Every decoder here returns a
// well-typed value no matter what — parse failures degrade to a synthetic
// default and are flagged, never raised.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/model"
)

// DefaultTargetWordCount seeds fallback guidelines.
const DefaultTargetWordCount = 1500

// CleanFences strips markdown code-fence wrappers (```json, ```html, ```)
// from model output. Idempotent: unfenced input passes through unchanged.
func CleanFences(text string) string {
	text = strings.TrimSpace(text)

	for _, prefix := range []string{"```json", "```html", "```"} {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			if idx := strings.LastIndex(text, "```"); idx >= 0 {
				text = text[:idx]
			}
			break
		}
	}

	return strings.TrimSpace(text)
}

// extractJSONObject slices text down to the outermost {...} span, if any.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// Analysis is the typed result of the site analysis call: a business
// profile plus candidate search queries.
type Analysis struct {
	CompanyDescription string   `json:"companyDescription"`
	TargetAudience     string   `json:"targetAudience"`
	Queries            []string `json:"queries"`

	Degraded bool `json:"-"`
}

// ParseAnalysis decodes the analyze-call output. On parse failure it
// synthesizes a minimal profile from the fallback context (typically the
// site URL) so the pipeline can continue; the result is marked degraded and
// its query list always contains at least the fallback context.
func ParseAnalysis(raw, fallbackContext string) Analysis {
	cleaned := extractJSONObject(CleanFences(raw))

	var a Analysis
	if err := json.Unmarshal([]byte(cleaned), &a); err == nil && len(a.Queries) > 0 {
		return a
	} else if err != nil {
		zap.L().Warn("normalize: analysis parse failed, synthesizing fallback",
			zap.Error(err),
		)
	}

	return Analysis{
		CompanyDescription: "Business at " + fallbackContext,
		TargetAudience:     "General audience",
		Queries:            []string{fallbackContext},
		Degraded:           true,
	}
}

// ParseGuideline decodes a content-strategy guideline. On failure it
// returns a generic strategy seeded with the original query and the
// standard target word count, marked degraded.
func ParseGuideline(raw, query string) model.Guideline {
	cleaned := extractJSONObject(CleanFences(raw))

	var g model.Guideline
	if err := json.Unmarshal([]byte(cleaned), &g); err != nil {
		zap.L().Warn("normalize: guideline parse failed, synthesizing fallback",
			zap.String("query", query),
			zap.Error(err),
		)
		return fallbackGuideline(query)
	}

	if g.Query == "" {
		g.Query = query
	}
	if g.TargetWordCount <= 0 {
		g.TargetWordCount = DefaultTargetWordCount
	}
	if len(g.PrimaryKeywords) == 0 {
		g.PrimaryKeywords = []string{query}
	}
	return g
}

func fallbackGuideline(query string) model.Guideline {
	return model.Guideline{
		Query:               query,
		ContentGaps:         []string{"comprehensive coverage of " + query},
		RecommendedApproach: "Create an in-depth, practical guide addressing " + query,
		TargetWordCount:     DefaultTargetWordCount,
		PrimaryKeywords:     []string{query},
		Degraded:            true,
	}
}

// doctypeRe anchors on a DOCTYPE declaration and captures everything after
// it, so HTML embedded in conversational filler is still recovered.
var doctypeRe = regexp.MustCompile(`(?is)<!DOCTYPE\s+html>.*`)

// ParseContent decodes generated page content. It tries the structured
// JSON shape first; failing that it scans for a DOCTYPE-anchored HTML
// fragment; failing that the raw text becomes the content body. Never
// returns empty HTML for non-empty input.
func ParseContent(raw, query string) model.GeneratedContent {
	cleaned := CleanFences(raw)

	var c model.GeneratedContent
	if err := json.Unmarshal([]byte(extractJSONObject(cleaned)), &c); err == nil && c.HTML != "" {
		return c
	}

	degraded := model.GeneratedContent{
		MetaTitle: query,
		Summary:   "Generated content for " + query,
		Degraded:  true,
	}

	if m := doctypeRe.FindString(cleaned); m != "" {
		degraded.HTML = m
		return degraded
	}

	zap.L().Warn("normalize: content parse failed, using raw text as body",
		zap.String("query", query),
	)
	degraded.HTML = cleaned
	return degraded
}
