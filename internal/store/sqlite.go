package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hl-compare/hl-compare/internal/model"
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS comparisons (
	id                 TEXT PRIMARY KEY,
	entities           TEXT NOT NULL,
	query              TEXT NOT NULL DEFAULT '',
	documents_analyzed INTEGER NOT NULL DEFAULT 0,
	result             TEXT NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS files (
	id            TEXT PRIMARY KEY,
	comparison_id TEXT REFERENCES comparisons(id),
	filename      TEXT NOT NULL,
	storage_key   TEXT NOT NULL,
	url           TEXT NOT NULL DEFAULT '',
	size          INTEGER NOT NULL DEFAULT 0,
	uploaded_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at);
CREATE INDEX IF NOT EXISTS idx_files_comparison_id ON files(comparison_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveFile(ctx context.Context, f *FileRecord) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, filename, storage_key, url, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Filename, f.Key, f.URL, f.Size, f.UploadedAt,
	)
	return eris.Wrap(err, "sqlite: insert file")
}

func (s *SQLiteStore) CreateComparison(ctx context.Context, resp *model.CompareResponse, fileIDs []string) (string, error) {
	id := uuid.New().String()
	stored := *resp
	stored.ComparisonID = id

	resultJSON, err := json.Marshal(&stored)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal result")
	}
	entitiesJSON, err := json.Marshal(resp.Entities)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal entities")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO comparisons (id, entities, query, documents_analyzed, result, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(entitiesJSON), resp.Query, resp.DocumentsAnalyzed, string(resultJSON), createdAt(resp),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert comparison")
	}
	for _, fid := range fileIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE files SET comparison_id = ? WHERE id = ?`, id, fid); err != nil {
			return "", eris.Wrapf(err, "sqlite: link file %s", fid)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit")
	}
	return id, nil
}

func (s *SQLiteStore) GetComparison(ctx context.Context, id string) (*model.CompareResponse, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM comparisons WHERE id = ?`, id).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: comparison %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get comparison %s", id)
	}

	var resp model.CompareResponse
	if err := json.Unmarshal([]byte(resultJSON), &resp); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	resp.ComparisonID = id
	return &resp, nil
}

func (s *SQLiteStore) ListComparisons(ctx context.Context, limit int) ([]ComparisonSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entities, query, documents_analyzed, created_at FROM comparisons ORDER BY created_at DESC, id LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comparisons")
	}
	defer rows.Close() //nolint:errcheck

	var out []ComparisonSummary
	for rows.Next() {
		var c ComparisonSummary
		var entitiesJSON string
		if err := rows.Scan(&c.ID, &entitiesJSON, &c.Query, &c.DocumentsAnalyzed, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comparison")
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &c.Entities); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal entities")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate comparisons")
}
