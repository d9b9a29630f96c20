package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "html fence",
			input: "```html\n<p>hi</p>\n```",
			want:  "<p>hi</p>",
		},
		{
			name:  "bare fence",
			input: "```\nplain\n```",
			want:  "plain",
		},
		{
			name:  "no fence passes through",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "surrounding whitespace",
			input: "   \n```json\n{}\n```\n  ",
			want:  "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanFences(tt.input))
		})
	}
}

func TestCleanFencesIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"a\": 1}\n```",
		`{"a": 1}`,
		"plain prose with no markup",
	}
	for _, in := range inputs {
		once := CleanFences(in)
		assert.Equal(t, once, CleanFences(once))
	}
}

func TestParseAnalysis(t *testing.T) {
	t.Run("valid json", func(t *testing.T) {
		raw := `{"companyDescription": "Acme widgets", "targetAudience": "Engineers", "queries": ["best widgets", "widget pricing"]}`
		a := ParseAnalysis(raw, "https://acme.example")

		assert.False(t, a.Degraded)
		assert.Equal(t, "Acme widgets", a.CompanyDescription)
		assert.Equal(t, []string{"best widgets", "widget pricing"}, a.Queries)
	})

	t.Run("fenced json", func(t *testing.T) {
		raw := "```json\n{\"companyDescription\": \"Acme\", \"targetAudience\": \"All\", \"queries\": [\"q1\"]}\n```"
		a := ParseAnalysis(raw, "https://acme.example")

		assert.False(t, a.Degraded)
		assert.Equal(t, []string{"q1"}, a.Queries)
	})

	t.Run("json buried in prose", func(t *testing.T) {
		raw := `Sure, here is the analysis: {"companyDescription": "Acme", "targetAudience": "All", "queries": ["q1"]} Hope that helps!`
		a := ParseAnalysis(raw, "https://acme.example")

		assert.False(t, a.Degraded)
		assert.Equal(t, []string{"q1"}, a.Queries)
	})

	t.Run("garbage degrades with fallback query", func(t *testing.T) {
		a := ParseAnalysis("I could not produce JSON today.", "https://acme.example")

		assert.True(t, a.Degraded)
		require.NotEmpty(t, a.Queries)
		assert.Contains(t, a.Queries, "https://acme.example")
	})

	t.Run("valid json with empty queries degrades", func(t *testing.T) {
		a := ParseAnalysis(`{"companyDescription": "Acme", "queries": []}`, "https://acme.example")

		assert.True(t, a.Degraded)
		assert.Contains(t, a.Queries, "https://acme.example")
	})
}

func TestParseGuideline(t *testing.T) {
	t.Run("valid json", func(t *testing.T) {
		raw := `{"query": "best widgets", "contentGaps": ["pricing detail"], "recommendedApproach": "comparison table", "targetWordCount": 2000, "primaryKeywords": ["widgets"]}`
		g := ParseGuideline(raw, "best widgets")

		assert.False(t, g.Degraded)
		assert.Equal(t, 2000, g.TargetWordCount)
		assert.Equal(t, []string{"pricing detail"}, g.ContentGaps)
	})

	t.Run("missing fields backfilled", func(t *testing.T) {
		g := ParseGuideline(`{"contentGaps": ["x"]}`, "best widgets")

		assert.False(t, g.Degraded)
		assert.Equal(t, "best widgets", g.Query)
		assert.Equal(t, DefaultTargetWordCount, g.TargetWordCount)
		assert.Equal(t, []string{"best widgets"}, g.PrimaryKeywords)
	})

	t.Run("garbage degrades to generic strategy", func(t *testing.T) {
		g := ParseGuideline("not json at all", "best widgets")

		assert.True(t, g.Degraded)
		assert.Equal(t, "best widgets", g.Query)
		assert.Equal(t, DefaultTargetWordCount, g.TargetWordCount)
		assert.NotEmpty(t, g.RecommendedApproach)
	})
}

func TestParseContent(t *testing.T) {
	t.Run("structured json", func(t *testing.T) {
		raw := `{"html": "<!DOCTYPE html><html><body>hi</body></html>", "metaTitle": "Hi", "metaDescription": "Greeting", "summary": "A greeting"}`
		c := ParseContent(raw, "greetings")

		assert.False(t, c.Degraded)
		assert.Equal(t, "Hi", c.MetaTitle)
		assert.Contains(t, c.HTML, "<body>hi</body>")
	})

	t.Run("bare html recovered by doctype anchor", func(t *testing.T) {
		raw := "Here's your page:\n<!DOCTYPE html>\n<html><body>content</body></html>"
		c := ParseContent(raw, "widgets")

		assert.True(t, c.Degraded)
		assert.True(t, strings.HasPrefix(c.HTML, "<!DOCTYPE"))
		assert.Contains(t, c.HTML, "content")
		assert.Equal(t, "widgets", c.MetaTitle)
	})

	t.Run("fenced html", func(t *testing.T) {
		raw := "```html\n<!DOCTYPE html><html><body>x</body></html>\n```"
		c := ParseContent(raw, "widgets")

		assert.True(t, c.Degraded)
		assert.True(t, strings.HasPrefix(c.HTML, "<!DOCTYPE"))
	})

	t.Run("plain text becomes body", func(t *testing.T) {
		c := ParseContent("just some prose about widgets", "widgets")

		assert.True(t, c.Degraded)
		assert.Equal(t, "just some prose about widgets", c.HTML)
	})

	t.Run("non-empty input never yields empty html", func(t *testing.T) {
		for _, raw := range []string{"x", "{", "```json\n{broken\n```"} {
			c := ParseContent(raw, "q")
			assert.NotEmpty(t, c.HTML, "input %q", raw)
		}
	})
}
