package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "index.json", cfg.Indexer.IndexPath)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Contains(t, cfg.Indexer.Extensions, ".xhtml")
	assert.False(t, cfg.Redis.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9999
indexer:
  indexPath: /tmp/corpus.json.gz
  extensions: [".xhtml"]
  workers: 2
search:
  defaultLimit: 5
  maxResults: 50
  timeout: 2s
redis:
  enabled: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/tmp/corpus.json.gz", cfg.Indexer.IndexPath)
	assert.Equal(t, []string{".xhtml"}, cfg.Indexer.Extensions)
	assert.Equal(t, 2, cfg.Indexer.Workers)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeout)
	assert.True(t, cfg.Redis.Enabled)
	// untouched sections keep their defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SEROOST_SERVER_PORT", "7070")
	t.Setenv("SEROOST_INDEXER_EXTENSIONS", ".html,.htm")
	t.Setenv("SEROOST_KAFKA_ENABLED", "true")
	t.Setenv("SEROOST_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SEROOST_SEARCH_MAX_RESULTS", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{".html", ".htm"}, cfg.Indexer.Extensions)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 100, cfg.Search.MaxResults)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Indexer.IndexPath = ""
	cfg.Indexer.Workers = 0
	cfg.Search.MaxResults = 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexPath")
	assert.Contains(t, err.Error(), "workers")
	assert.Contains(t, err.Error(), "maxResults")
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", p.DSN())
}

func TestRateLimitOverride(t *testing.T) {
	t.Setenv("SEROOST_SERVER_RATE_LIMIT", "120")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Server.RateLimit)

	cfg.Server.RateLimit = -1
	assert.ErrorContains(t, cfg.Validate(), "rateLimit")
}
