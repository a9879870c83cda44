package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 10*time.Minute, cfg.Retrieval.ResultTTL.Std())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[ingestion]
roots = ["/srv/docs", "/srv/code"]
namespace = "docs"

[models]
default = "embed-small"
rust = "embed-code"

[retrieval]
top_k = 8
result_ttl = "30s"
strategy_selection = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/docs", "/srv/code"}, cfg.Ingestion.Roots)
	assert.Equal(t, "docs", cfg.Ingestion.Namespace)
	assert.Equal(t, DefaultSegmentSize, cfg.Ingestion.SegmentSize)
	assert.Equal(t, "embed-small", cfg.Models.Default)
	assert.Equal(t, "embed-code", cfg.Models.Rust)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 30*time.Second, cfg.Retrieval.ResultTTL.Std())
	assert.Equal(t, DefaultChunkTTL, cfg.Retrieval.ChunkTTL)
	assert.True(t, cfg.Retrieval.StrategySelection)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ingestion\nroots = "), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[retrieval]\nchunk_ttl = \"soon\"\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Vector.URLs = []string{"http://a:6334", "http://b:6334"}
	cfg.Retrieval.ChunkTTL = Duration(2 * time.Hour)

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, cfg.Vector.URLs, loaded.Vector.URLs)
	assert.Equal(t, cfg.Retrieval, loaded.Retrieval)
	assert.Equal(t, cfg.Models, loaded.Models)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory driver", mutate: func(c *Config) { c.Metadata.Driver = DriverMemory }},
		{name: "postgres without url", mutate: func(c *Config) { c.Metadata.Driver = DriverPostgres }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Metadata.Driver = "mysql" }, wantErr: true},
		{name: "zero top k", mutate: func(c *Config) { c.Retrieval.TopK = 0 }, wantErr: true},
		{name: "zero segment", mutate: func(c *Config) { c.Ingestion.SegmentSize = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"INGESTION_ROOT":     "/a, /b,",
		"GITHUB_TOKEN":       "ghp_x",
		"MNEMO_METADATA_PG":  "postgres://localhost/mnemo",
		"QDRANT_URL":         "http://single:6334",
		"QDRANT_CLUSTERS":    "http://q1:6334,http://q2:6334",
		"SURREALDB_URL":      "http://surreal:8000",
		"SURREALDB_NS":       "ns1",
		"MNEMO_REDIS_URL":    "redis://localhost:6379/0",
		"MNEMO_WORKERS":      "4",
		"MNEMO_EMBED_MODEL":  "",
		"MNEMO_METRICS_ADDR": ":9000",
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Ingestion.Roots)
	assert.Equal(t, "ghp_x", cfg.Ingestion.GitHubToken)
	assert.Equal(t, DriverPostgres, cfg.Metadata.Driver)
	assert.Equal(t, "postgres://localhost/mnemo", cfg.Metadata.PostgresURL)
	assert.Equal(t, []string{"http://q1:6334", "http://q2:6334"}, cfg.Vector.URLs)
	assert.Equal(t, "http://surreal:8000", cfg.Graph.URL)
	assert.Equal(t, "ns1", cfg.Graph.NS)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 4, cfg.Ingestion.Workers)
	assert.Equal(t, DefaultModel, cfg.Models.Default)
	assert.Equal(t, ":9000", cfg.Metrics.ListenAddr)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"MNEMO_WORKERS": "many"}))

	assert.ErrorContains(t, err, "MNEMO_WORKERS")
	assert.Equal(t, 0, cfg.Ingestion.Workers)
}

func TestConfig_RetrievalNamespace(t *testing.T) {
	t.Run("defaults search what ingest writes", func(t *testing.T) {
		cfg := Default()
		assert.Equal(t, DefaultNamespace, cfg.RetrievalNamespace())
	})

	t.Run("follows the ingestion namespace", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"MNEMO_NAMESPACE": "docs"})))
		assert.Equal(t, "docs", cfg.RetrievalNamespace())
	})

	t.Run("explicit retrieval namespace wins", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
			"MNEMO_NAMESPACE":           "docs",
			"MNEMO_RETRIEVAL_NAMESPACE": "default",
		})))
		assert.Equal(t, "default", cfg.RetrievalNamespace())
	})
}
