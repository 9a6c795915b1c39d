package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"io.winapps.huddle/internal/notify"
)

var (
	_ notify.KeyValueStore = (*Memory)(nil)
	_ notify.KeyValueStore = (*SQLite)(nil)
	_ notify.KeyValueStore = (*Redis)(nil)
)

func newTestSQLite(t *testing.T, path string) *SQLite {
	t.Helper()
	s, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

func exerciseStore(t *testing.T, s notify.KeyValueStore) {
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, notify.KeyDeviceToken, "tok-1"))
	require.NoError(t, s.Set(ctx, notify.KeyDeviceToken, "tok-2"))
	v, ok, err := s.Get(ctx, notify.KeyDeviceToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v)

	require.NoError(t, s.Delete(ctx, notify.KeyDeviceToken))
	require.NoError(t, s.Delete(ctx, notify.KeyDeviceToken))
	_, ok, err = s.Get(ctx, notify.KeyDeviceToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	exerciseStore(t, newTestSQLite(t, ":memory:"))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.db")
	ctx := context.Background()

	first, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, notify.KeySettings, `{"enabled":false}`))
	require.NoError(t, first.Close())

	second := newTestSQLite(t, path)
	v, ok, err := second.Get(ctx, notify.KeySettings)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"enabled":false}`, v)
}
