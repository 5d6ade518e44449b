// Package config loads and validates the indexer configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Indexer, Tokenizer, Ranking, Search, Server, Redis, Logging,
// Metrics).
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Indexer   IndexerConfig   `yaml:"indexer"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// IndexerConfig controls block construction, the merge memory bounds, and the
// on-disk layout of the index.
type IndexerConfig struct {
	DataDir          string       `yaml:"dataDir"`
	Positional       bool         `yaml:"positional"`
	Compress         bool         `yaml:"compress"`
	RenameDocs       bool         `yaml:"renameDocs"`
	FileLocationStep int          `yaml:"fileLocationStep"`
	BlockThreshold   int          `yaml:"blockThreshold"`
	MergeThreshold   int          `yaml:"mergeThreshold"`
	MergeChunkSize   int          `yaml:"mergeChunkSize"`
	Source           SourceConfig `yaml:"source"`
}

// SourceConfig describes the tab-delimited document source. Negative column
// numbers count from the end of the line.
type SourceConfig struct {
	SkipHeader  bool  `yaml:"skipHeader"`
	IDColumn    int   `yaml:"idColumn"`
	TextColumns []int `yaml:"textColumns"`
}

// TokenizerConfig controls text normalisation before indexing and querying.
type TokenizerConfig struct {
	MinLength        int    `yaml:"minLength"`
	MaxLength        int    `yaml:"maxLength"`
	CaseFolding      bool   `yaml:"caseFolding"`
	NoNumbers        bool   `yaml:"noNumbers"`
	Stemmer          bool   `yaml:"stemmer"`
	Stopwords        bool   `yaml:"stopwords"`
	StopwordsFile    string `yaml:"stopwordsFile"`
	ContractionsFile string `yaml:"contractionsFile"`
}

// RankingConfig selects the ranking model and its parameters. It is fixed
// once an index is built.
type RankingConfig struct {
	Name      string          `yaml:"name"`
	Document  string          `yaml:"document"`
	Query     string          `yaml:"query"`
	K1        float64         `yaml:"k1"`
	B         float64         `yaml:"b"`
	Proximity ProximityConfig `yaml:"proximity"`
}

// ProximityConfig controls the positional re-ranker applied after scoring.
type ProximityConfig struct {
	Enabled bool    `yaml:"enabled"`
	Window  int     `yaml:"window"`
	Mode    string  `yaml:"mode"`
	Weight  float64 `yaml:"weight"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultLimit         int `yaml:"defaultLimit"`
	MaxResults           int `yaml:"maxResults"`
	MaxConcurrentQueries int `yaml:"maxConcurrentQueries"`
}

// RedisConfig holds the optional result-cache connection. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	PoolSize        int           `yaml:"poolSize"`
	CacheTTL        time.Duration `yaml:"cacheTTL"`
	ConnectAttempts int           `yaml:"connectAttempts"`
	// BreakerFailures consecutive store errors disable the cache for
	// BreakerReset.
	BreakerFailures int           `yaml:"breakerFailures"`
	BreakerReset    time.Duration `yaml:"breakerReset"`
}

// ServerConfig controls the HTTP search API of the serve command.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the sustained requests per second allowed per client
	// address, with bursts up to RateBurst. Zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfig, "reading config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfig, "parsing config file %s: %v", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the defaults used when no file is given.
func Default() *Config {
	return &Config{
		Indexer: IndexerConfig{
			DataDir:          "indexer",
			FileLocationStep: 0,
			BlockThreshold:   1_000_000,
			MergeThreshold:   1_000_000,
			MergeChunkSize:   1000,
			Source: SourceConfig{
				SkipHeader:  true,
				IDColumn:    2,
				TextColumns: []int{-3, -2},
			},
		},
		Tokenizer: TokenizerConfig{
			MinLength:   3,
			MaxLength:   123,
			CaseFolding: true,
			NoNumbers:   true,
			Stemmer:     true,
			Stopwords:   true,
		},
		Ranking: RankingConfig{
			Name:     "vsm",
			Document: "lnc",
			Query:    "ltc",
			K1:       1.2,
			B:        1,
			Proximity: ProximityConfig{
				Window: 5,
				Mode:   "add",
				Weight: 1,
			},
		},
		Search: SearchConfig{
			DefaultLimit:         10,
			MaxResults:           100,
			MaxConcurrentQueries: 4,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Redis: RedisConfig{
			PoolSize:        10,
			CacheTTL:        60 * time.Second,
			ConnectAttempts: 3,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Validate checks the structural constraints of the configuration. Ranking
// scheme codes are validated by the ranker when the model is parsed.
func (c *Config) Validate() error {
	ix := c.Indexer
	switch {
	case ix.DataDir == "":
		return apperrors.New(apperrors.ErrConfig, "indexer.dataDir is required")
	case ix.BlockThreshold <= 0:
		return apperrors.Newf(apperrors.ErrConfig, "indexer.blockThreshold must be positive, got %d", ix.BlockThreshold)
	case ix.MergeThreshold <= 0:
		return apperrors.Newf(apperrors.ErrConfig, "indexer.mergeThreshold must be positive, got %d", ix.MergeThreshold)
	case ix.MergeChunkSize <= 0:
		return apperrors.Newf(apperrors.ErrConfig, "indexer.mergeChunkSize must be positive, got %d", ix.MergeChunkSize)
	case ix.FileLocationStep < 0:
		return apperrors.Newf(apperrors.ErrConfig, "indexer.fileLocationStep must not be negative, got %d", ix.FileLocationStep)
	case len(ix.Source.TextColumns) == 0:
		return apperrors.New(apperrors.ErrConfig, "indexer.source.textColumns must name at least one column")
	}
	p := c.Ranking.Proximity
	if p.Enabled {
		if p.Window < 2 {
			return apperrors.Newf(apperrors.ErrConfig, "ranking.proximity.window must be at least 2, got %d", p.Window)
		}
		if p.Mode != "add" && p.Mode != "multiply" {
			return apperrors.Newf(apperrors.ErrConfig, "ranking.proximity.mode must be add or multiply, got %q", p.Mode)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperrors.Newf(apperrors.ErrConfig, "server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateBurst < 1) {
		return apperrors.Newf(apperrors.ErrConfig, "server rate limit invalid: rateLimit=%v rateBurst=%d",
			c.Server.RateLimit, c.Server.RateBurst)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return apperrors.Newf(apperrors.ErrConfig, "search limits invalid: defaultLimit=%d maxResults=%d",
			c.Search.DefaultLimit, c.Search.MaxResults)
	}
	return nil
}

// applyEnvOverrides reads SPIMI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPIMI_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SPIMI_BLOCK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.BlockThreshold = n
		}
	}
	if v := os.Getenv("SPIMI_MERGE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.MergeThreshold = n
		}
	}
	if v := os.Getenv("SPIMI_RANKING_NAME"); v != "" {
		cfg.Ranking.Name = strings.ToLower(v)
	}
	if v := os.Getenv("SPIMI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SPIMI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SPIMI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPIMI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SPIMI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SPIMI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

// Write stores cfg as YAML at path.
func Write(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file %s: %w", path, err)
	}
	defer f.Close()
	if err := Encode(f, cfg); err != nil {
		return err
	}
	return f.Close()
}

// Encode writes cfg as YAML to w.
func Encode(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
