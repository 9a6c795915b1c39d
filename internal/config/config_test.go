package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient_Defaults(t *testing.T) {
	for _, k := range []string{"HUDDLE_PLATFORM", "HUDDLE_KV_BACKEND", "HUDDLE_SESSION_BACKEND", "HUDDLE_HTTP_TIMEOUT", "HUDDLE_BADGE_REFRESH"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "android", cfg.Platform)
	assert.Equal(t, "sqlite", cfg.KVBackend)
	assert.Equal(t, "kv", cfg.SessionBackend)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.BadgeRefresh)
}

func TestLoadClient_Invalid(t *testing.T) {
	t.Setenv("HUDDLE_PLATFORM", "web")
	_, err := LoadClient()
	assert.Error(t, err)

	t.Setenv("HUDDLE_PLATFORM", "ios")
	t.Setenv("HUDDLE_KV_BACKEND", "etcd")
	_, err = LoadClient()
	assert.Error(t, err)

	t.Setenv("HUDDLE_KV_BACKEND", "memory")
	t.Setenv("HUDDLE_HTTP_TIMEOUT", "soon")
	_, err = LoadClient()
	assert.Error(t, err)
}

func TestLoadServer_DatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_DB", "huddle_test")
	t.Setenv("POSTGRES_SSLMODE", "")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:secret@db:5433/huddle_test?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, "postgres", cfg.StoreBackend)

	t.Setenv("DATABASE_URL", "postgres://override")
	cfg, err = LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "postgres://override", cfg.DatabaseURL)
}

func TestLoadServer_BadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HUDDLE_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HUDDLE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("HUDDLE_TEST_DOTENV"))

	assert.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestParsePairs(t *testing.T) {
	assert.Equal(t, map[string]string{"tok-1": "user-1", "tok-2": "user-2"}, parsePairs("tok-1=user-1, tok-2=user-2,broken,=x"))
	assert.Empty(t, parsePairs(""))
}
