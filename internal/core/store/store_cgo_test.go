//go:build cgo

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptfill/promptfill/internal/config"
)

func TestOpenLibsqlMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.Equal(t, DefaultPrincipal, store.Principal())
	require.NoError(t, store.Close())
}

func TestOpenLibsqlLocalFileConfiguresSQLite(t *testing.T) {
	ctx := context.Background()

	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   "file:" + t.TempDir() + "/promptfill.db",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.Equal(t, 1, store.DB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	require.Contains(t, journalMode, "wal")

	var busyTimeout int
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	require.GreaterOrEqual(t, busyTimeout, 1000)

	require.NoError(t, store.Migrate(ctx))
	_, err = store.Save(ctx, SaveInput{Name: "cgo-check", Body: "Hello {{name}}"})
	require.NoError(t, err)
}
