package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spimi.yaml")
	data := `
indexer:
  dataDir: /tmp/idx
  positional: true
  blockThreshold: 500
ranking:
  name: bm25
  k1: 1.5
  b: 0.5
redis:
  addr: localhost:6379
  cacheTTL: 30s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Indexer.DataDir != "/tmp/idx" || !cfg.Indexer.Positional || cfg.Indexer.BlockThreshold != 500 {
		t.Errorf("indexer = %+v", cfg.Indexer)
	}
	if cfg.Indexer.MergeThreshold != Default().Indexer.MergeThreshold {
		t.Errorf("unset field lost its default: %d", cfg.Indexer.MergeThreshold)
	}
	if cfg.Ranking.Name != "bm25" || cfg.Ranking.K1 != 1.5 || cfg.Ranking.B != 0.5 {
		t.Errorf("ranking = %+v", cfg.Ranking)
	}
	if cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("cacheTTL = %v", cfg.Redis.CacheTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SPIMI_DATA_DIR", "/data/env")
	t.Setenv("SPIMI_BLOCK_THRESHOLD", "42")
	t.Setenv("SPIMI_RANKING_NAME", "BM25")
	t.Setenv("SPIMI_METRICS_PORT", "not-a-port")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Indexer.DataDir != "/data/env" || cfg.Indexer.BlockThreshold != 42 || cfg.Ranking.Name != "bm25" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Indexer, cfg.Ranking)
	}
	if cfg.Metrics.Port != Default().Metrics.Port {
		t.Errorf("invalid port override applied: %d", cfg.Metrics.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("indexer: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{filepath.Join(dir, "missing.yaml"), bad} {
		if _, err := Load(path); !errors.Is(err, apperrors.ErrConfig) {
			t.Errorf("Load(%s) error = %v, want ErrConfig", filepath.Base(path), err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no data dir", func(c *Config) { c.Indexer.DataDir = "" }},
		{"zero block threshold", func(c *Config) { c.Indexer.BlockThreshold = 0 }},
		{"zero merge threshold", func(c *Config) { c.Indexer.MergeThreshold = 0 }},
		{"zero chunk", func(c *Config) { c.Indexer.MergeChunkSize = 0 }},
		{"negative step", func(c *Config) { c.Indexer.FileLocationStep = -1 }},
		{"no text columns", func(c *Config) { c.Indexer.Source.TextColumns = nil }},
		{"tiny window", func(c *Config) { c.Ranking.Proximity = ProximityConfig{Enabled: true, Window: 1, Mode: "add"} }},
		{"bad mode", func(c *Config) { c.Ranking.Proximity = ProximityConfig{Enabled: true, Window: 5, Mode: "max"} }},
		{"limits", func(c *Config) { c.Search.MaxResults = 1; c.Search.DefaultLimit = 5 }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }},
		{"rate without burst", func(c *Config) { c.Server.RateBurst = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, apperrors.ErrConfig) {
				t.Errorf("Validate() = %v, want ErrConfig", err)
			}
		})
	}

	cfg := Default()
	cfg.Ranking.Proximity.Mode = "max"
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled proximity still validated: %v", err)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Indexer.DataDir = "roundtrip"
	cfg.Ranking.Proximity.Enabled = true
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Write(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, cfg); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("dataDir: roundtrip")) {
		t.Errorf("encoded config:\n%s", buf.String())
	}
}
