//go:build integration
// +build integration

package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Storefront/internal/storage"
)

func TestSQLStore_Postgres(t *testing.T) {
	testSQLStore(t, storage.Postgres, os.Getenv("TEST_POSTGRES_DSN"))
}

func TestSQLStore_MySQL(t *testing.T) {
	testSQLStore(t, storage.MySQL, os.Getenv("TEST_MYSQL_DSN"))
}

func testSQLStore(t *testing.T, dialect storage.Dialect, dsn string) {
	t.Helper()
	if dsn == "" {
		t.Skipf("no dsn for %s", dialect)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.OpenSQL(ctx, dialect, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := storage.NewSQLStore(db, dialect)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Ping(ctx))

	key := "it-" + time.Now().Format("150405.000000")

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, key, "one"))
	require.NoError(t, s.Set(ctx, key, "two"))

	v, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", v)
}
