package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. It is satisfied
// by *pgxpool.Pool and by pgxmock pools in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlInsertFile       = `INSERT INTO files (id, filename, storage_key, url, size, uploaded_at) VALUES ($1, $2, $3, $4, $5, $6)`
	sqlInsertComparison = `INSERT INTO comparisons (id, entities, query, documents_analyzed, result, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	sqlLinkFile         = `UPDATE files SET comparison_id = $1 WHERE id = $2`
	sqlGetComparison    = `SELECT result FROM comparisons WHERE id = $1`
	sqlListComparisons  = `SELECT id, entities, query, documents_analyzed, created_at FROM comparisons ORDER BY created_at DESC, id LIMIT $1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_file":       sqlInsertFile,
	"insert_comparison": sqlInsertComparison,
	"get_comparison":    sqlGetComparison,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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

	// Statements are prepared before migration on fresh databases, so a
	// missing table is not fatal here.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS comparisons (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entities           JSONB NOT NULL,
	query              TEXT NOT NULL DEFAULT '',
	documents_analyzed INTEGER NOT NULL DEFAULT 0,
	result             JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS files (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	comparison_id TEXT REFERENCES comparisons(id),
	filename      TEXT NOT NULL,
	storage_key   TEXT NOT NULL,
	url           TEXT NOT NULL DEFAULT '',
	size          BIGINT NOT NULL DEFAULT 0,
	uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_files_comparison_id ON files(comparison_id);
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

func (s *PostgresStore) SaveFile(ctx context.Context, f *FileRecord) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, sqlInsertFile, f.ID, f.Filename, f.Key, f.URL, f.Size, f.UploadedAt)
	return eris.Wrap(err, "postgres: insert file")
}

func (s *PostgresStore) CreateComparison(ctx context.Context, resp *model.CompareResponse, fileIDs []string) (string, error) {
	id := uuid.New().String()
	stored := *resp
	stored.ComparisonID = id

	resultJSON, err := json.Marshal(&stored)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal result")
	}
	entitiesJSON, err := json.Marshal(resp.Entities)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal entities")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin")
	}
	_, err = tx.Exec(ctx, sqlInsertComparison,
		id, string(entitiesJSON), resp.Query, resp.DocumentsAnalyzed, string(resultJSON), createdAt(resp),
	)
	if err != nil {
		tx.Rollback(ctx) //nolint:errcheck
		return "", eris.Wrap(err, "postgres: insert comparison")
	}
	for _, fid := range fileIDs {
		if _, err := tx.Exec(ctx, sqlLinkFile, id, fid); err != nil {
			tx.Rollback(ctx) //nolint:errcheck
			return "", eris.Wrapf(err, "postgres: link file %s", fid)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit")
	}
	return id, nil
}

func (s *PostgresStore) GetComparison(ctx context.Context, id string) (*model.CompareResponse, error) {
	var resultJSON []byte
	err := s.pool.QueryRow(ctx, sqlGetComparison, id).Scan(&resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: comparison %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get comparison %s", id)
	}

	var resp model.CompareResponse
	if err := json.Unmarshal(resultJSON, &resp); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	resp.ComparisonID = id
	return &resp, nil
}

func (s *PostgresStore) ListComparisons(ctx context.Context, limit int) ([]ComparisonSummary, error) {
	rows, err := s.pool.Query(ctx, sqlListComparisons, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comparisons")
	}
	defer rows.Close()

	var out []ComparisonSummary
	for rows.Next() {
		var c ComparisonSummary
		var entitiesJSON []byte
		if err := rows.Scan(&c.ID, &entitiesJSON, &c.Query, &c.DocumentsAnalyzed, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparison")
		}
		if err := json.Unmarshal(entitiesJSON, &c.Entities); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal entities")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate comparisons")
}
