package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pricebook/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows ---

// mockRows implements pgx.Rows for testing Query results.
type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		switch v := d.(type) {
		case *time.Time:
			*v = row[i].(time.Time)
		case *int64:
			*v = row[i].(int64)
		case *string:
			*v = row[i].(string)
		case *[]byte:
			*v = row[i].([]byte)
		}
	}
	return nil
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// --- CatalogVersionRepo Tests ---

func TestCatalogVersionRepo_Insert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogVersionRepo(db, nil)

	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := []byte("catalogName: Firearms\n")
	rec := &types.CatalogVersionRecord{
		CatalogName:   "Firearms",
		EffectiveDate: time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
		SourceKey:     "catalogs/firearms-2011-01-01.yaml",
	}

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 5 && args[0] == "Firearms" && args[3] == Checksum(body)
	})).Return(&mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int64) = 7
		*dest[1].(*time.Time) = published
		return nil
	}})

	err := repo.Insert(context.Background(), rec, body)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, published, rec.PublishedAt)
	assert.Equal(t, Checksum(body), rec.Checksum)
	db.AssertExpectations(t)
}

func TestCatalogVersionRepo_Insert_Conflict(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogVersionRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	err := repo.Insert(context.Background(), &types.CatalogVersionRecord{
		CatalogName:   "Firearms",
		EffectiveDate: time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
	}, []byte("x"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConflictCatalogExists, appErr.Code)
	assert.Equal(t, "Firearms", appErr.Details["catalog_name"])
}

func TestCatalogVersionRepo_Insert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogVersionRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	err := repo.Insert(context.Background(), &types.CatalogVersionRecord{CatalogName: "Firearms"}, []byte("x"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestCatalogVersionRepo_List(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogVersionRepo(db, nil)

	eff1 := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	eff2 := time.Date(2011, 2, 2, 0, 0, 0, 0, time.UTC)
	pub := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := newMockRows([][]any{
		{int64(1), "Firearms", eff1, "a.yaml", "abc", pub},
		{int64(2), "Firearms", eff2, "b.yaml", "def", pub},
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	out, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, eff2, out[1].EffectiveDate)
	assert.Equal(t, "b.yaml", out[1].SourceKey)
	assert.True(t, rows.closed)
}

func TestCatalogVersionRepo_ListDocuments(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogVersionRepo(db, nil)

	rows := newMockRows([][]any{
		{"a.yaml", []byte("one")},
		{"b.yaml.zst", []byte("two")},
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	docs, err := repo.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, types.CatalogDocument{Name: "b.yaml.zst", Body: []byte("two")}, docs[1])
}

func TestCatalogVersionRepo_ListDocuments_Errors(t *testing.T) {
	tests := []struct {
		name     string
		rows     *mockRows
		queryErr error
	}{
		{name: "query fails", queryErr: errors.New("boom")},
		{name: "scan fails", rows: &mockRows{data: [][]any{{"a", []byte("x")}}, idx: -1, scanErr: errors.New("bad column")}},
		{name: "iteration fails", rows: &mockRows{idx: -1, errVal: errors.New("stream broken")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			repo := NewCatalogVersionRepo(db, nil)
			if tt.rows != nil {
				db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(tt.rows, nil)
			} else {
				db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil, tt.queryErr)
			}

			_, err := repo.ListDocuments(context.Background())
			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
		})
	}
}

func TestCatalogVersionRepo_Delete(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogVersionRepo(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{int64(3)}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{int64(4)}).
		Return(pgconn.NewCommandTag("DELETE 0"), nil).Once()

	require.NoError(t, repo.Delete(context.Background(), 3))

	err := repo.Delete(context.Background(), 4)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundCatalogVersion, appErr.Code)
	db.AssertExpectations(t)
}

func TestCatalogVersionRepo_Ping(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogVersionRepo(db, nil)

	db.On("QueryRow", mock.Anything, "SELECT 1", mock.Anything).
		Return(&mockRow{scanErr: errors.New("down")})

	err := repo.Ping(context.Background())
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestChecksum_Stable(t *testing.T) {
	assert.Equal(t, Checksum([]byte("abc")), Checksum([]byte("abc")))
	assert.NotEqual(t, Checksum([]byte("abc")), Checksum([]byte("abd")))
	assert.Len(t, Checksum(nil), 64)
}
