package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rankline/seo-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS run_artifacts (
	id         TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	url        TEXT NOT NULL,
	profile    TEXT NOT NULL,
	queries    TEXT NOT NULL,
	results    TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_events (
	id         TEXT PRIMARY KEY,
	identity   TEXT NOT NULL,
	op_class   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_run_artifacts_profile_id ON run_artifacts(profile_id);
CREATE INDEX IF NOT EXISTS idx_run_artifacts_url ON run_artifacts(url);
CREATE INDEX IF NOT EXISTS idx_usage_events_identity ON usage_events(identity, op_class, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, artifact model.RunArtifact) error {
	profileJSON, queriesJSON, resultsJSON, contentJSON, err := marshalArtifact(artifact)
	if err != nil {
		return err
	}

	createdAt := artifact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_artifacts (id, profile_id, url, profile, queries, results, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.ProfileID, artifact.URL,
		profileJSON, queriesJSON, resultsJSON, contentJSON, createdAt,
	)
	return eris.Wrap(err, "sqlite: insert run artifact")
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.RunArtifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile_id, url, profile, queries, results, content, created_at
		 FROM run_artifacts WHERE id = ?`, id)
	return scanArtifact(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunArtifact, error) {
	query := `SELECT id, profile_id, url, profile, queries, results, content, created_at
		FROM run_artifacts WHERE 1=1`
	var args []any

	if filter.ProfileID != "" {
		query += ` AND profile_id = ?`
		args = append(args, filter.ProfileID)
	}
	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run artifacts")
	}
	defer rows.Close()

	var artifacts []model.RunArtifact
	for rows.Next() {
		a, scanErr := scanArtifact(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, eris.Wrap(rows.Err(), "sqlite: iterate run artifacts")
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM run_artifacts WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete run artifact %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, event model.UsageEvent) error {
	id := event.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, identity, op_class, created_at) VALUES (?, ?, ?, ?)`,
		id, event.Identity, event.OpClass, createdAt,
	)
	return eris.Wrap(err, "sqlite: insert usage event")
}

func (s *SQLiteStore) CountUsage(ctx context.Context, identity, opClass string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_events WHERE identity = ? AND op_class = ? AND created_at >= ?`,
		identity, opClass, since,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count usage events")
}

func marshalArtifact(a model.RunArtifact) (profile, queries, results, content string, err error) {
	p, err := json.Marshal(a.Profile)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "store: marshal profile")
	}
	q, err := json.Marshal(a.Queries)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "store: marshal queries")
	}
	r, err := json.Marshal(a.Results)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "store: marshal results")
	}
	c, err := json.Marshal(a.Content)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "store: marshal content")
	}
	return string(p), string(q), string(r), string(c), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArtifact(row scannable) (*model.RunArtifact, error) {
	var a model.RunArtifact
	var profileJSON, queriesJSON, resultsJSON, contentJSON string

	err := row.Scan(&a.ID, &a.ProfileID, &a.URL,
		&profileJSON, &queriesJSON, &resultsJSON, &contentJSON, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run artifact")
	}

	return unmarshalArtifact(a, profileJSON, queriesJSON, resultsJSON, contentJSON)
}

func unmarshalArtifact(a model.RunArtifact, profileJSON, queriesJSON, resultsJSON, contentJSON string) (*model.RunArtifact, error) {
	if err := json.Unmarshal([]byte(profileJSON), &a.Profile); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal profile")
	}
	if err := json.Unmarshal([]byte(queriesJSON), &a.Queries); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal queries")
	}
	if err := json.Unmarshal([]byte(resultsJSON), &a.Results); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal results")
	}
	if err := json.Unmarshal([]byte(contentJSON), &a.Content); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal content")
	}
	return &a, nil
}
