package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGet(t *testing.T) {
	db := newTestDB(t)

	row := SessionRow{
		ID:        "admin@web-01-a3f2",
		Host:      "web-01",
		User:      "admin",
		Port:      2222,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.SaveSession(row))

	got, ok, err := db.Get("admin@web-01-a3f2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "web-01", got.Host)
	assert.Equal(t, "admin", got.User)
	assert.Equal(t, 2222, got.Port)
	assert.True(t, got.ClosedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkClosed(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveSession(SessionRow{ID: "host-1111", Host: "host", CreatedAt: time.Now()}))
	require.NoError(t, db.MarkClosed("host-1111"))

	got, ok, err := db.Get("host-1111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.ClosedAt.IsZero())

	// Unknown id is a no-op.
	require.NoError(t, db.MarkClosed("unknown"))
}

func TestListOpen(t *testing.T) {
	db := newTestDB(t)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, db.SaveSession(SessionRow{ID: "a-0001", Host: "a", CreatedAt: base}))
	require.NoError(t, db.SaveSession(SessionRow{ID: "b-0002", Host: "b", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, db.SaveSession(SessionRow{ID: "c-0003", Host: "c", CreatedAt: base.Add(2 * time.Minute)}))
	require.NoError(t, db.MarkClosed("b-0002"))

	open, err := db.ListOpen()
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "a-0001", open[0].ID)
	assert.Equal(t, "c-0003", open[1].ID)
}

func TestReopenPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	db1, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db1.Migrate())
	require.NoError(t, db1.SaveSession(SessionRow{ID: "x-9999", Host: "x", CreatedAt: time.Now()}))
	require.NoError(t, db1.Close())

	db2, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db2.Migrate())
	defer db2.Close()

	_, ok, err := db2.Get("x-9999")
	require.NoError(t, err)
	assert.True(t, ok)
}
