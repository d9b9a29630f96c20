// Package store persists completed run artifacts and usage events. Artifact
// rows are immutable once written: there is no update path, only insert,
// read, and delete.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rankline/seo-cli/internal/model"
)

// ErrNotFound is returned when a requested artifact does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing run artifacts.
type RunFilter struct {
	ProfileID string `json:"profile_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for run artifacts.
type Store interface {
	// Run artifacts
	SaveRun(ctx context.Context, artifact model.RunArtifact) error
	GetRun(ctx context.Context, id string) (*model.RunArtifact, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunArtifact, error)
	DeleteRun(ctx context.Context, id string) error

	// Usage events
	RecordUsage(ctx context.Context, event model.UsageEvent) error
	CountUsage(ctx context.Context, identity, opClass string, since time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
