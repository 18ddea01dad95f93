// Package store persists uploaded file records and comparison results.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("store: not found")

// FileRecord is one stored upload.
type FileRecord struct {
	ID           string    `json:"id"`
	ComparisonID string    `json:"comparison_id,omitempty"`
	Filename     string    `json:"filename"`
	Key          string    `json:"key"`
	URL          string    `json:"url,omitempty"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ComparisonSummary is the listing view of a stored comparison.
type ComparisonSummary struct {
	ID                string    `json:"id"`
	Entities          []string  `json:"entities"`
	Query             string    `json:"query,omitempty"`
	DocumentsAnalyzed int       `json:"documents_analyzed"`
	CreatedAt         time.Time `json:"created_at"`
}

// DefaultListLimit caps ListComparisons when no limit is given.
const DefaultListLimit = 50

// Store defines the persistence interface for comparisons.
type Store interface {
	// Files
	SaveFile(ctx context.Context, f *FileRecord) error

	// Comparisons
	CreateComparison(ctx context.Context, resp *model.CompareResponse, fileIDs []string) (string, error)
	GetComparison(ctx context.Context, id string) (*model.CompareResponse, error)
	ListComparisons(ctx context.Context, limit int) ([]ComparisonSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func listLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultListLimit
	}
	return limit
}

func createdAt(resp *model.CompareResponse) time.Time {
	if resp.GeneratedAt.IsZero() {
		return time.Now().UTC()
	}
	return resp.GeneratedAt.UTC()
}
