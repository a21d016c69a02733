package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return NewSQLiteRepository(db)
}

func TestSetGet_Upsert(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("old")))
	require.NoError(t, r.Set(ctx, "k", []byte("new")))

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestGet_AbsentReturnsNil(t *testing.T) {
	r := setupRepo(t)

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestDeviceID(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	id, err := r.GetString(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, r.SetString(ctx, KeyDeviceID, "dev-1"))
	id, err = r.GetString(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", id)
}

func TestTimes(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	got, err := r.GetTime(ctx, KeyLastSyncAt)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	at := time.Date(2025, 5, 6, 7, 8, 9, 10, time.UTC)
	require.NoError(t, r.SetTime(ctx, KeyLastSyncAt, at))
	got, err = r.GetTime(ctx, KeyLastSyncAt)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	require.NoError(t, r.SetString(ctx, KeyLastSyncAt, "yesterday"))
	_, err = r.GetTime(ctx, KeyLastSyncAt)
	require.Error(t, err)
}

func TestListAndDelete(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte{0xAA}))
	require.NoError(t, r.Set(ctx, "b", []byte{0xBB}))
	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"b": {0xBB}}, m)
}
