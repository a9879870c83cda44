package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultNamespace       = "local"
	DefaultLargeThreshold  = 200 * 1024
	DefaultSegmentSize     = 50 * 1024
	DefaultModel           = "text-embedding-3-small"
	DefaultEmbeddingURL    = "http://localhost:3000/openai/v1"
	DefaultDimensions      = 1536
	DefaultMetadataDriver  = "sqlite"
	DefaultVectorURL       = "localhost:6334"
	DefaultCollection      = "mnemo_chunks"
	DefaultGraphURL        = "ws://localhost:8000/rpc"
	DefaultTopK            = 5
	DefaultGraphDepth      = 2
	DefaultResultTTL       = Duration(10 * time.Minute)
	DefaultChunkTTL        = Duration(time.Hour)
	DefaultProgressChannel = "mnemo:progress"
	DefaultMetricsAddr     = "127.0.0.1:9464"
)

// Metadata store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete mnemo configuration.
type Config struct {
	Ingestion IngestionConfig `toml:"ingestion"`
	Models    ModelsConfig    `toml:"models"`
	Metadata  MetadataConfig  `toml:"metadata"`
	Vector    VectorConfig    `toml:"vector"`
	Graph     GraphConfig     `toml:"graph"`
	Cache     CacheConfig     `toml:"cache"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Progress  ProgressConfig  `toml:"progress"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// IngestionConfig selects the document sources.
type IngestionConfig struct {
	Roots          []string `toml:"roots"`
	Namespace      string   `toml:"namespace"`
	LargeThreshold int      `toml:"large_threshold"`
	SegmentSize    int      `toml:"segment_size"`
	Workers        int      `toml:"workers"`
	GitHubRepo     string   `toml:"github_repo"`
	GitHubToken    string   `toml:"github_token"`
	OpenAPISource  string   `toml:"openapi_source"`
	PDFPaths       []string `toml:"pdf_paths"`
	DOCXPaths      []string `toml:"docx_paths"`
}

// ModelsConfig routes chunks to embedding models. Empty routes use Default.
type ModelsConfig struct {
	Default       string `toml:"default"`
	Rust          string `toml:"rust"`
	Markdown      string `toml:"markdown"`
	OpenAPI       string `toml:"openapi"`
	LargeDocument string `toml:"large_document"`
	Backend       string `toml:"backend"`
	EmbeddingURL  string `toml:"embedding_url"`
	APIKey        string `toml:"api_key"`
	Dimensions    int    `toml:"dimensions"`
}

// MetadataConfig selects the metadata store.
type MetadataConfig struct {
	Driver      string `toml:"driver"`
	SQLiteDir   string `toml:"sqlite_dir"`
	PostgresURL string `toml:"postgres_url"`
}

// VectorConfig points at the Qdrant clusters by gRPC endpoint (for example
// DefaultVectorURL). An empty URL list selects the in-memory store.
type VectorConfig struct {
	URLs       []string `toml:"urls"`
	Collection string   `toml:"collection"`
	APIKey     string   `toml:"api_key"`
}

// GraphConfig points at SurrealDB (for example DefaultGraphURL). An empty URL
// selects the in-memory store.
type GraphConfig struct {
	URL  string `toml:"url"`
	User string `toml:"user"`
	Pass string `toml:"pass"`
	NS   string `toml:"ns"`
	DB   string `toml:"db"`
}

// CacheConfig selects the cache. An empty Redis URL selects the in-memory
// cache.
type CacheConfig struct {
	RedisURL string `toml:"redis_url"`
}

// RetrievalConfig tunes the orchestrator. An empty Namespace searches the
// ingestion namespace.
type RetrievalConfig struct {
	Namespace         string   `toml:"namespace"`
	TopK              int      `toml:"top_k"`
	GraphDepth        int      `toml:"graph_depth"`
	ResultTTL         Duration `toml:"result_ttl"`
	ChunkTTL          Duration `toml:"chunk_ttl"`
	StrategySelection bool     `toml:"strategy_selection"`
}

// ProgressConfig names the Redis channel progress events go to.
type ProgressConfig struct {
	RedisChannel string `toml:"redis_channel"`
}

// MetricsConfig sets the /metrics listen address.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Duration is a time.Duration written as a string ("10m") in TOML.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Ingestion: IngestionConfig{
			Namespace:      DefaultNamespace,
			LargeThreshold: DefaultLargeThreshold,
			SegmentSize:    DefaultSegmentSize,
		},
		Models: ModelsConfig{
			Default:      DefaultModel,
			EmbeddingURL: DefaultEmbeddingURL,
			Dimensions:   DefaultDimensions,
		},
		Metadata: MetadataConfig{Driver: DefaultMetadataDriver},
		Vector:   VectorConfig{Collection: DefaultCollection},
		Retrieval: RetrievalConfig{
			TopK:       DefaultTopK,
			GraphDepth: DefaultGraphDepth,
			ResultTTL:  DefaultResultTTL,
			ChunkTTL:   DefaultChunkTTL,
		},
		Progress: ProgressConfig{RedisChannel: DefaultProgressChannel},
		Metrics:  MetricsConfig{ListenAddr: DefaultMetricsAddr},
	}
}

// RetrievalNamespace returns the namespace queries are filtered by.
func (c Config) RetrievalNamespace() string {
	if c.Retrieval.Namespace != "" {
		return c.Retrieval.Namespace
	}
	return c.Ingestion.Namespace
}

// DefaultPath returns ~/.mnemo/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mnemo", "config.toml"), nil
}

// Load reads the configuration at path over the defaults. An empty path
// uses DefaultPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg to path with restricted permissions.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Metadata.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Metadata.PostgresURL == "" {
			return errors.New("metadata.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown metadata driver %q", c.Metadata.Driver)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Ingestion.SegmentSize <= 0 || c.Ingestion.LargeThreshold <= 0 {
		return errors.New("ingestion.large_threshold and ingestion.segment_size must be positive")
	}
	return nil
}

// ApplyEnv overlays environment variables read through lookup.
// Unparseable numbers are reported and leave the field unchanged.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	list("INGESTION_ROOT", &c.Ingestion.Roots)
	str("MNEMO_NAMESPACE", &c.Ingestion.Namespace)
	num("MNEMO_WORKERS", &c.Ingestion.Workers)
	str("GITHUB_TOKEN", &c.Ingestion.GitHubToken)
	str("MNEMO_GITHUB_REPO", &c.Ingestion.GitHubRepo)
	str("MNEMO_OPENAPI_SOURCE", &c.Ingestion.OpenAPISource)

	str("MNEMO_EMBED_MODEL", &c.Models.Default)
	str("MNEMO_EMBED_BACKEND", &c.Models.Backend)
	str("MNEMO_EMBED_URL", &c.Models.EmbeddingURL)
	str("MNEMO_EMBED_API_KEY", &c.Models.APIKey)
	num("MNEMO_EMBED_DIMENSIONS", &c.Models.Dimensions)

	str("MNEMO_METADATA_DRIVER", &c.Metadata.Driver)
	if v, ok := lookup("MNEMO_METADATA_PG"); ok && v != "" {
		c.Metadata.PostgresURL = v
		c.Metadata.Driver = DriverPostgres
	}

	if v, ok := lookup("QDRANT_URL"); ok && v != "" {
		c.Vector.URLs = []string{v}
	}
	list("QDRANT_CLUSTERS", &c.Vector.URLs)
	str("QDRANT_COLLECTION", &c.Vector.Collection)
	str("QDRANT_API_KEY", &c.Vector.APIKey)

	str("SURREALDB_URL", &c.Graph.URL)
	str("SURREALDB_USER", &c.Graph.User)
	str("SURREALDB_PASS", &c.Graph.Pass)
	str("SURREALDB_NS", &c.Graph.NS)
	str("SURREALDB_DB", &c.Graph.DB)

	str("MNEMO_RETRIEVAL_NAMESPACE", &c.Retrieval.Namespace)
	str("MNEMO_REDIS_URL", &c.Cache.RedisURL)
	str("MNEMO_PROGRESS_CHANNEL", &c.Progress.RedisChannel)
	str("MNEMO_METRICS_ADDR", &c.Metrics.ListenAddr)

	return errors.Join(errs...)
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
