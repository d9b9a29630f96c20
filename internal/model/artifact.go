package model

import "time"

// RunArtifact is the durable record persisted when a run completes all five
// stages. Rows are immutable once written; only deletion is supported.
type RunArtifact struct {
	ID        string             `json:"id"`
	ProfileID string             `json:"profile_id"`
	URL       string             `json:"url"`
	Profile   CompanyProfile     `json:"profile"`
	Queries   []string           `json:"queries"`
	Results   []CompetitorResult `json:"results"`
	Content   []QueryContent     `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
}

// UsageEvent records one billable operation for an identity. Used as the
// local bookkeeping behind the quota gate when no external billing backend
// is configured.
type UsageEvent struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	OpClass   string    `json:"op_class"`
	CreatedAt time.Time `json:"created_at"`
}
