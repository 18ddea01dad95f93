package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl-compare/hl-compare/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS comparisons`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveFile(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`INSERT INTO files`).
		WithArgs(pgxmock.AnyArg(), "apple.pdf", "k_apple.pdf", "/files/k_apple.pdf", int64(42), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	f := &FileRecord{Filename: "apple.pdf", Key: "k_apple.pdf", URL: "/files/k_apple.pdf", Size: 42}
	require.NoError(t, s.SaveFile(context.Background(), f))
	assert.NotEmpty(t, f.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateComparison_LinksFiles(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO comparisons`).
		WithArgs(pgxmock.AnyArg(), `["Apple","Meta"]`, "valuation", 2, pgxmock.AnyArg(), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE files SET comparison_id = \$1 WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), "file-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	id, err := s.CreateComparison(context.Background(), sampleResponse(at, "Apple", "Meta"), []string{"file-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateComparison_RollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO comparisons`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.CreateComparison(context.Background(), sampleResponse(time.Now(), "Apple", "Meta"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert comparison")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetComparison(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT result FROM comparisons WHERE id = \$1`).
		WithArgs("cmp-1").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).
			AddRow([]byte(`{"comparison":{"valuation_metrics":{"Apple":{"key_facts":{"pe_ratio":{"value":28.5}}}}},"documents_analyzed":1,"entities":["Apple","Meta"]}`)))

	got, err := s.GetComparison(context.Background(), "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, "cmp-1", got.ComparisonID)
	assert.Equal(t, []string{"Apple", "Meta"}, got.Entities)
	assert.NotNil(t, got.Comparison.Metric(model.CategoryValuationMetrics, "Apple", "pe_ratio"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetComparison_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT result FROM comparisons WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetComparison(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListComparisons(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, entities, query, documents_analyzed, created_at FROM comparisons`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "entities", "query", "documents_analyzed", "created_at"}).
			AddRow("cmp-2", []byte(`["Tesla","Ford"]`), "", 3, at.Add(time.Hour)).
			AddRow("cmp-1", []byte(`["Apple","Meta"]`), "valuation", 2, at))

	list, err := s.ListComparisons(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cmp-2", list[0].ID)
	assert.Equal(t, []string{"Tesla", "Ford"}, list[0].Entities)
	assert.Equal(t, 2, list[1].DocumentsAnalyzed)
	assert.Equal(t, "valuation", list[1].Query)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
