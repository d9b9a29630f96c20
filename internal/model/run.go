package model

import (
	"strings"
	"time"
)

// Stage identifies one discrete phase of the analysis pipeline.
type Stage string

const (
	StageScrape      Stage = "scrape"
	StageEmbed       Stage = "embed"
	StageQueryGen    Stage = "query_gen"
	StageCompetitors Stage = "competitor_analysis"
	StageContent     Stage = "content_generation"
)

// StageOrder is the fixed execution order of pipeline stages.
var StageOrder = []Stage{
	StageScrape,
	StageEmbed,
	StageQueryGen,
	StageCompetitors,
	StageContent,
}

// StageStatus is the lifecycle state of a single stage within a run.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageError      StageStatus = "error"
)

// Run is the ephemeral state of one pipeline execution for a single URL.
// It is mutated monotonically stage by stage and owned by a single caller;
// observers receive defensive clones, never the live struct.
type Run struct {
	ID          string                `json:"id"`
	URL         string                `json:"url"`
	StageStatus map[Stage]StageStatus `json:"stage_status"`

	ScrapedPages   []string `json:"scraped_pages,omitempty"`
	ScrapedContent string   `json:"scraped_content,omitempty"`
	PageCount      int      `json:"page_count,omitempty"`

	Profile           *CompanyProfile    `json:"profile,omitempty"`
	Queries           []string           `json:"queries,omitempty"`
	CompetitorResults []CompetitorResult `json:"competitor_results,omitempty"`
	QueryContent      []QueryContent     `json:"query_content,omitempty"`

	// CurrentQuery is the 0-based index of the query being processed inside
	// the competitor or content loop, or -1 outside a loop.
	CurrentQuery int `json:"current_query"`

	Error         string    `json:"error,omitempty"`
	EstimatedCost float64   `json:"estimated_cost,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

// NewRun creates a Run with every stage pending.
func NewRun(id, rawURL string) *Run {
	statuses := make(map[Stage]StageStatus, len(StageOrder))
	for _, s := range StageOrder {
		statuses[s] = StagePending
	}
	return &Run{
		ID:           id,
		URL:          NormalizeURL(rawURL),
		StageStatus:  statuses,
		CurrentQuery: -1,
		StartedAt:    time.Now().UTC(),
	}
}

// Clone returns a deep copy of the run suitable for handing to observers.
func (r *Run) Clone() *Run {
	cp := *r
	cp.StageStatus = make(map[Stage]StageStatus, len(r.StageStatus))
	for k, v := range r.StageStatus {
		cp.StageStatus[k] = v
	}
	cp.ScrapedPages = append([]string(nil), r.ScrapedPages...)
	cp.Queries = append([]string(nil), r.Queries...)
	cp.CompetitorResults = append([]CompetitorResult(nil), r.CompetitorResults...)
	cp.QueryContent = append([]QueryContent(nil), r.QueryContent...)
	if r.Profile != nil {
		p := *r.Profile
		cp.Profile = &p
	}
	return &cp
}

// Completed reports whether every stage finished successfully.
func (r *Run) Completed() bool {
	for _, s := range StageOrder {
		if r.StageStatus[s] != StageCompleted {
			return false
		}
	}
	return true
}

// NormalizeURL ensures a scheme prefix and strips any trailing slash.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return u
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimSuffix(u, "/")
}
