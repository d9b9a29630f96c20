package model

// CompanyProfile is the business profile derived from scraped site content.
// Produced once during query generation and immutable afterward.
type CompanyProfile struct {
	Description    string `json:"description"`
	TargetAudience string `json:"targetAudience"`
}

// Competitor is a single ranked competitor for one search query.
// Position is the 1-based rank within the query's competitor list.
type Competitor struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Position    int    `json:"position"`
	Insights    string `json:"insights"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// CompetitorResult holds the competitor analysis for one query.
type CompetitorResult struct {
	Query       string       `json:"query"`
	Analysis    string       `json:"analysis"`
	Competitors []Competitor `json:"competitors"`
}

// Guideline is the content strategy produced before generating content for
// a query.
type Guideline struct {
	Query               string   `json:"query"`
	ContentGaps         []string `json:"contentGaps"`
	CompetitorStrengths []string `json:"competitorStrengths"`
	RecommendedApproach string   `json:"recommendedApproach"`
	Differentiators     []string `json:"differentiators"`
	TargetWordCount     int      `json:"targetWordCount"`
	PrimaryKeywords     []string `json:"primaryKeywords"`
	SecondaryKeywords   []string `json:"secondaryKeywords"`

	// Degraded marks a guideline synthesized by the normalizer fallback
	// rather than parsed from model output.
	Degraded bool `json:"degraded,omitempty"`
}

// GeneratedContent is the final SEO content for one query.
type GeneratedContent struct {
	HTML            string `json:"html"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	Summary         string `json:"summary"`
	Degraded        bool   `json:"degraded,omitempty"`
}

// QueryContent pairs a query with its strategy guideline and generated
// content.
type QueryContent struct {
	Query     string           `json:"query"`
	Guideline Guideline        `json:"guideline"`
	Content   GeneratedContent `json:"content"`
}
