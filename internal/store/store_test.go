package store_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/store"
	"github.com/nhle/daycare-notify/tests/testutil"
)

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	return map[string]store.Store{
		"sqlite": testutil.NewTestStore(t),
		"file":   store.NewFileStore(filepath.Join(t.TempDir(), "state", "kv.json"), testutil.DiscardLogger()),
		"memory": store.NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "read_notifications:u1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "read_notifications:u1", `["complaint-1"]`))
			require.NoError(t, s.Set(ctx, "read_notifications:u2", `[]`))

			v, ok, err := s.Get(ctx, "read_notifications:u1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `["complaint-1"]`, v)

			require.NoError(t, s.Set(ctx, "read_notifications:u1", `["complaint-1","meeting-2"]`))
			v, _, err = s.Get(ctx, "read_notifications:u1")
			require.NoError(t, err)
			assert.Equal(t, `["complaint-1","meeting-2"]`, v)

			require.NoError(t, s.Delete(ctx, "read_notifications:u1"))
			require.NoError(t, s.Delete(ctx, "read_notifications:missing"))
			_, ok, err = s.Get(ctx, "read_notifications:u1")
			require.NoError(t, err)
			assert.False(t, ok)

			v, ok, err = s.Get(ctx, "read_notifications:u2")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[]`, v)

			require.NoError(t, s.Close())
		})
	}
}

func TestSQLiteStoreMigrations(t *testing.T) {
	s := testutil.NewTestStore(t)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "readstate.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.json")
	corrupt := []byte(`{"read_notifications:u2":["complaint-1"`)
	require.NoError(t, os.WriteFile(path, corrupt, 0o600))

	var logs bytes.Buffer
	s := store.NewFileStore(path, slog.New(slog.NewTextHandler(&logs, nil)))
	_, _, err := s.Get(ctx, "k")
	assert.Error(t, err)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	backup, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, corrupt, backup)
	assert.Contains(t, logs.String(), "Store file corrupt")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     model.StorageConfig
		wantErr error
	}{
		{name: "sqlite", cfg: model.StorageConfig{Driver: "sqlite", Path: filepath.Join(dir, "a.db")}},
		{name: "default driver", cfg: model.StorageConfig{Path: filepath.Join(dir, "b.db")}},
		{name: "file", cfg: model.StorageConfig{Driver: "FILE", Path: filepath.Join(dir, "c.json")}},
		{name: "memory", cfg: model.StorageConfig{Driver: "memory"}},
		{name: "unknown", cfg: model.StorageConfig{Driver: "redis"}, wantErr: store.ErrUnknownDriver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := store.Open(ctx, tt.cfg, testutil.DiscardLogger())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, s.Set(ctx, "k", "v"))
			require.NoError(t, s.Close())
		})
	}
}
