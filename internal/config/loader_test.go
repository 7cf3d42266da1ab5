package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the hybridq config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "hybridq")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL.Duration())
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.Embeddings.Model)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "documents", cfg.VectorStore.Chromem.Collection)
	assert.Equal(t, 5, cfg.Query.MaxDocResults)
	assert.False(t, cfg.Database.ConnectionString.IsSet())
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  port: 9191
cache:
  ttl: 30s
query:
  sql_timeout: 2s
  max_doc_results: 3
vectorstore:
  provider: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
database:
  connection_string: postgres://app:hunter2@db:5432/hr
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Duration())
	assert.Equal(t, 2*time.Second, cfg.Query.SQLTimeout.Duration())
	assert.Equal(t, 3, cfg.Query.MaxDocResults)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, "postgres://app:hunter2@db:5432/hr", cfg.Database.ConnectionString.Value())
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 9191\n", 0600)

	t.Setenv("HYBRIDQ_SERVER_PORT", "9292")
	t.Setenv("HYBRIDQ_QUERY_DOC_TIMEOUT", "750ms")
	t.Setenv("HYBRIDQ_VECTORSTORE_CHROMEM_PATH", "/var/lib/hybridq/vectors")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9292, cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Query.DocTimeout.Duration())
	assert.Equal(t, "/var/lib/hybridq/vectors", cfg.VectorStore.Chromem.Path)
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 9191\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("server:\n  port: 1\n"), 0600))

	_, err := LoadWithFile(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path validation failed")
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad provider", "embeddings:\n  provider: openai\n", "unknown embeddings provider"},
		{"tei without url", "embeddings:\n  provider: tei\n", "base_url required"},
		{"bad vectorstore", "vectorstore:\n  provider: pinecone\n", "unknown vectorstore provider"},
		{"bad port", "server:\n  port: 70000\n", "invalid server port"},
		{"bad sample rate", "telemetry:\n  sample_rate: 2\n", "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestHome(t)
			path := writeConfig(t, dir, tt.yaml, 0600)

			_, err := LoadWithFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", envKey("HYBRIDQ_SERVER_PORT"))
	assert.Equal(t, "query.sql_timeout", envKey("HYBRIDQ_QUERY_SQL_TIMEOUT"))
	assert.Equal(t, "vectorstore.qdrant.use_tls", envKey("HYBRIDQ_VECTORSTORE_QDRANT_USE_TLS"))
	assert.Equal(t, "vectorstore.provider", envKey("HYBRIDQ_VECTORSTORE_PROVIDER"))
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("postgres://app:hunter2@db/hr")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.NotContains(t, fmt.Sprintf("%v %s %#v", s, s, s), "hunter2")

	data, err := json.Marshal(struct {
		DSN Secret `json:"dsn"`
	}{DSN: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"dsn":"[REDACTED]"}`, string(data))
	assert.Equal(t, "postgres://app:hunter2@db/hr", s.Value())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
