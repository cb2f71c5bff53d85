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

	"postroom/internal/types"
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

// --- Mock Rows for Query ---

type mockRows struct {
	scanFns []func(dest ...any) error
	idx     int
	closed  bool
	errVal  error
}

func newMockRows(scanFns ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFns: scanFns, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.scanFns)
}

func (r *mockRows) Scan(dest ...any) error {
	return r.scanFns[r.idx](dest...)
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func scanWorkspaceRow(id, ownerID, name string, tier types.PlanTier, subEnd *time.Time, sparkOverride *int64, now time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*string) = ownerID
		*dest[2].(*string) = name
		*dest[3].(*types.PlanTier) = tier
		*dest[4].(**time.Time) = subEnd
		*dest[5].(**int64) = nil
		*dest[6].(**int64) = nil
		*dest[7].(**int64) = nil
		*dest[8].(**int64) = sparkOverride
		*dest[9].(*time.Time) = now
		*dest[10].(*time.Time) = now
		*dest[11].(**time.Time) = nil
		return nil
	}
}

// --- WorkspaceRepository Tests ---

func TestWorkspaceRepository_Create_DefaultsToBasic(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			params := args.Get(2).([]any)
			assert.Equal(t, types.PlanBasic, params[3])
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), &types.Workspace{
		ID:      "ws_1",
		OwnerID: "acct_1",
		Name:    "Acme Social",
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestWorkspaceRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(context.Background(), &types.Workspace{ID: "ws_1"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestWorkspaceRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	now := time.Now().UTC()
	end := now.Add(30 * 24 * time.Hour)
	sparkLimit := int64(1000)

	row := &mockRow{scanFn: scanWorkspaceRow("ws_1", "acct_1", "Acme Social", types.PlanPro, &end, &sparkLimit, now)}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	ws, err := repo.GetByID(context.Background(), "ws_1")
	require.NoError(t, err)
	assert.Equal(t, "ws_1", ws.ID)
	assert.Equal(t, "acct_1", ws.OwnerID)
	assert.Equal(t, types.PlanPro, ws.PlanTier)
	require.NotNil(t, ws.SubscriptionEnd)
	assert.Equal(t, end, *ws.SubscriptionEnd)
	require.NotNil(t, ws.Overrides.MaxSparksMonth)
	assert.Equal(t, int64(1000), *ws.Overrides.MaxSparksMonth)
	assert.Nil(t, ws.Overrides.MaxMembers)
}

func TestWorkspaceRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	ws, err := repo.GetByID(context.Background(), "ws_missing")
	require.Error(t, err)
	assert.Nil(t, ws)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundWorkspace, appErr.Code)
}

func TestWorkspaceRepository_ListByOwner_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(), nil)

	result, err := repo.ListByOwner(context.Background(), "acct_nobody")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestWorkspaceRepository_ListByOwner_Multiple(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	now := time.Now().UTC()
	rows := newMockRows(
		scanWorkspaceRow("ws_1", "acct_1", "First", types.PlanBasic, nil, nil, now),
		scanWorkspaceRow("ws_2", "acct_1", "Second", types.PlanPro, nil, nil, now),
	)
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	result, err := repo.ListByOwner(context.Background(), "acct_1")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "ws_1", result[0].ID)
	assert.Equal(t, "ws_2", result[1].ID)
	assert.Equal(t, types.PlanPro, result[1].PlanTier)
}

func TestWorkspaceRepository_UpdatePlan_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdatePlan(context.Background(), "ws_missing", types.PlanPro, nil)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundWorkspace, appErr.Code)
}

func TestWorkspaceRepository_UpdateOverrides_PassesAllColumns(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	members := int64(25)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			params := args.Get(2).([]any)
			require.Len(t, params, 5)
			assert.Equal(t, &members, params[0])
			assert.Nil(t, params[1])
			assert.Nil(t, params[2])
			assert.Nil(t, params[3])
			assert.Equal(t, "ws_1", params[4])
		}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.UpdateOverrides(context.Background(), "ws_1", types.LimitOverrides{MaxMembers: &members})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestWorkspaceRepository_Delete_AlreadyDeleted(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Delete(context.Background(), "ws_gone")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundWorkspace, appErr.Code)
}

func TestWorkspaceRepository_CountByOwner(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkspaceRepository(db)

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int64) = 3
		return nil
	}}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	count, err := repo.CountByOwner(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
