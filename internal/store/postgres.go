package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rankline/seo-cli/internal/db"
	"github.com/rankline/seo-cli/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS run_artifacts (
	id         TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	url        TEXT NOT NULL,
	profile    JSONB NOT NULL,
	queries    JSONB NOT NULL,
	results    JSONB NOT NULL,
	content    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_events (
	id         TEXT PRIMARY KEY,
	identity   TEXT NOT NULL,
	op_class   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_run_artifacts_profile_id ON run_artifacts(profile_id);
CREATE INDEX IF NOT EXISTS idx_run_artifacts_url ON run_artifacts(url);
CREATE INDEX IF NOT EXISTS idx_usage_events_identity ON usage_events(identity, op_class, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, artifact model.RunArtifact) error {
	profileJSON, queriesJSON, resultsJSON, contentJSON, err := marshalArtifact(artifact)
	if err != nil {
		return err
	}

	createdAt := artifact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_artifacts (id, profile_id, url, profile, queries, results, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		artifact.ID, artifact.ProfileID, artifact.URL,
		profileJSON, queriesJSON, resultsJSON, contentJSON, createdAt,
	)
	return eris.Wrap(err, "postgres: insert run artifact")
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.RunArtifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, profile_id, url, profile, queries, results, content, created_at
		 FROM run_artifacts WHERE id = $1`, id)
	return scanPgArtifact(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunArtifact, error) {
	query := `SELECT id, profile_id, url, profile, queries, results, content, created_at
		FROM run_artifacts WHERE 1=1`
	var args []any

	if filter.ProfileID != "" {
		args = append(args, filter.ProfileID)
		query += ` AND profile_id = $1`
	}
	if filter.URL != "" {
		args = append(args, filter.URL)
		query += ` AND url = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run artifacts")
	}
	defer rows.Close()

	var artifacts []model.RunArtifact
	for rows.Next() {
		a, scanErr := scanPgArtifact(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, eris.Wrap(rows.Err(), "postgres: iterate run artifacts")
}

func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM run_artifacts WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete run artifact %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, event model.UsageEvent) error {
	id := event.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_events (id, identity, op_class, created_at) VALUES ($1, $2, $3, $4)`,
		id, event.Identity, event.OpClass, createdAt,
	)
	return eris.Wrap(err, "postgres: insert usage event")
}

func (s *PostgresStore) CountUsage(ctx context.Context, identity, opClass string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_events WHERE identity = $1 AND op_class = $2 AND created_at >= $3`,
		identity, opClass, since,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count usage events")
}

func scanPgArtifact(row pgx.Row) (*model.RunArtifact, error) {
	var a model.RunArtifact
	var profileJSON, queriesJSON, resultsJSON, contentJSON string

	err := row.Scan(&a.ID, &a.ProfileID, &a.URL,
		&profileJSON, &queriesJSON, &resultsJSON, &contentJSON, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run artifact")
	}
	return unmarshalArtifact(a, profileJSON, queriesJSON, resultsJSON, contentJSON)
}
