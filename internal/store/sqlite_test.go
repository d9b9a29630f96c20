package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankline/seo-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testArtifact(id, profileID string) model.RunArtifact {
	return model.RunArtifact{
		ID:        id,
		ProfileID: profileID,
		URL:       "https://acme.example",
		Profile: model.CompanyProfile{
			Description:    "Acme makes widgets",
			TargetAudience: "Widget buyers",
		},
		Queries: []string{"best widgets", "widget pricing"},
		Results: []model.CompetitorResult{
			{
				Query:    "best widgets",
				Analysis: "strong listicle coverage",
				Competitors: []model.Competitor{
					{URL: "https://rival.example", Title: "rival.example", Position: 1},
				},
			},
		},
		Content: []model.QueryContent{
			{
				Query:     "best widgets",
				Guideline: model.Guideline{Query: "best widgets", TargetWordCount: 1500},
				Content:   model.GeneratedContent{HTML: "<!DOCTYPE html><html></html>"},
			},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	artifact := testArtifact("run-1", "profile-1")
	require.NoError(t, st.SaveRun(ctx, artifact))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "profile-1", got.ProfileID)
	assert.Equal(t, "https://acme.example", got.URL)
	assert.Equal(t, artifact.Queries, got.Queries)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "best widgets", got.Results[0].Query)
	require.Len(t, got.Content, 1)
	assert.Equal(t, 1500, got.Content[0].Guideline.TargetWordCount)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveRun_Immutable(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, testArtifact("run-1", "profile-1")))

	// A second insert with the same id must fail: rows are never updated in
	// place.
	err := st.SaveRun(ctx, testArtifact("run-1", "profile-2"))
	assert.Error(t, err)

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "profile-1", got.ProfileID)
}

func TestSQLite_ListRuns_FilterByProfile(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, testArtifact("run-1", "profile-a")))
	require.NoError(t, st.SaveRun(ctx, testArtifact("run-2", "profile-a")))
	require.NoError(t, st.SaveRun(ctx, testArtifact("run-3", "profile-b")))

	runs, err := st.ListRuns(ctx, RunFilter{ProfileID: "profile-a"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, RunFilter{ProfileID: "profile-b"})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, "run-3", runs[0].ID)
}

func TestSQLite_ListRuns_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, st.SaveRun(ctx, testArtifact(id, "profile-a")))
	}

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_DeleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, testArtifact("run-1", "profile-a")))
	require.NoError(t, st.DeleteRun(ctx, "run-1"))

	_, err := st.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeleteRun(ctx, "run-1"), ErrNotFound)
}

func TestSQLite_UsageEvents(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, st.RecordUsage(ctx, model.UsageEvent{
			Identity: "user-1",
			OpClass:  "search-requests",
		}))
	}
	require.NoError(t, st.RecordUsage(ctx, model.UsageEvent{
		Identity: "user-1",
		OpClass:  "scrape-requests",
	}))

	count, err := st.CountUsage(ctx, "user-1", "search-requests", since)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = st.CountUsage(ctx, "user-1", "scrape-requests", since)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = st.CountUsage(ctx, "user-2", "search-requests", since)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLite_CountUsage_SinceWindow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordUsage(ctx, model.UsageEvent{
		Identity:  "user-1",
		OpClass:   "search-requests",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}))
	require.NoError(t, st.RecordUsage(ctx, model.UsageEvent{
		Identity: "user-1",
		OpClass:  "search-requests",
	}))

	count, err := st.CountUsage(ctx, "user-1", "search-requests", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
