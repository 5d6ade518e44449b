package executor_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

var documents = []struct{ id, title, body string }{
	{"D1", "pets", "cat cat dog"},
	{"D2", "farm", "dog bird"},
	{"D3", "sky", "bird bird fish cat"},
	{"D4", "travel", "new york skyline"},
	{"D5", "travel", "york new time"},
	{"D6", "the", "and of"},
}

// writeCollection writes the documents in the tab-delimited layout of the
// default source config: id in column 2, text in the two columns before last.
func writeCollection(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("qid\turl\tdocid\ttitle\tbody\textra\n")
	for i, d := range documents {
		fmt.Fprintf(&sb, "q%d\thttp://example.com/%d\t%s\t%s\t%s\tx\n", i, i, d.id, d.title, d.body)
	}
	path := filepath.Join(t.TempDir(), "collection.tsv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Indexer.DataDir = t.TempDir()
	cfg.Indexer.BlockThreshold = 3
	cfg.Indexer.MergeThreshold = 2
	cfg.Indexer.MergeChunkSize = 1
	cfg.Tokenizer.Stemmer = false
	return cfg
}

func build(t *testing.T, cfg *config.Config) *executor.Executor {
	t.Helper()
	engine, err := indexer.NewEngine(cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	summary, err := engine.IndexFile(context.Background(), writeCollection(t))
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if summary.Documents != 5 {
		t.Errorf("indexed %d documents, want 5 (D6 has no terms)", summary.Documents)
	}
	idx, err := executor.OpenIndex(cfg.Indexer.DataDir)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	return executor.New(idx, cfg, metrics.New(prometheus.NewRegistry()))
}

func ids(res *executor.SearchResult) []string {
	out := make([]string, len(res.Results))
	for i, r := range res.Results {
		out[i] = r.DocID
	}
	return out
}

func TestSearchAcrossLayouts(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*config.Config)
	}{
		{"vsm", func(*config.Config) {}},
		{"vsm idf documents", func(c *config.Config) { c.Ranking.Document = "ltn" }},
		{"bm25", func(c *config.Config) { c.Ranking.Name = "bm25"; c.Ranking.B = 0.75 }},
		{"no ranking", func(c *config.Config) { c.Ranking.Name = "none" }},
		{"renamed", func(c *config.Config) { c.Indexer.RenameDocs = true }},
		{"compressed", func(c *config.Config) { c.Indexer.Compress = true }},
		{"skip index", func(c *config.Config) { c.Indexer.FileLocationStep = 2 }},
		{"positional", func(c *config.Config) { c.Indexer.Positional = true }},
		{"everything", func(c *config.Config) {
			c.Indexer.RenameDocs = true
			c.Indexer.Compress = true
			c.Indexer.Positional = true
			c.Indexer.FileLocationStep = 3
			c.Ranking.Name = "bm25"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(t)
			tt.apply(cfg)
			exec := build(t, cfg)
			ctx := context.Background()

			res, err := exec.Search(ctx, "cat", 10)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"D1", "D3"}, ids(res)); diff != "" {
				t.Errorf("cat results mismatch (-want +got):\n%s", diff)
			}
			if res.TermStats["cat"] != 2 {
				t.Errorf("TermStats = %v", res.TermStats)
			}

			res, err = exec.Search(ctx, "bird dog", 10)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"D1", "D2", "D3"}, sorted(ids(res))); diff != "" {
				t.Errorf("bird dog results mismatch (-want +got):\n%s", diff)
			}

			res, err = exec.Search(ctx, "zebra", 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Results) != 0 || res.TotalHits != 0 {
				t.Errorf("unknown term matched %v", ids(res))
			}

			// every indexed term is reachable through the segment table
			for _, d := range documents[:5] {
				for _, term := range strings.Fields(d.body) {
					if _, found, err := exec.Index().Lookup(term); err != nil || !found {
						t.Errorf("Lookup(%q) = found %v, err %v", term, found, err)
					}
				}
			}
		})
	}
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func TestSearchLimits(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Search.DefaultLimit = 1
	cfg.Search.MaxResults = 2
	exec := build(t, cfg)
	ctx := context.Background()

	res, err := exec.Search(ctx, "cat bird dog", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 || res.TotalHits != 3 {
		t.Errorf("default limit: %d results of %d hits", len(res.Results), res.TotalHits)
	}
	res, err = exec.Search(ctx, "cat bird dog", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 2 {
		t.Errorf("max results: got %d", len(res.Results))
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	exec := build(t, baseConfig(t))
	_, err := exec.Search(context.Background(), "the of and", 10)
	if !errors.Is(err, apperrors.ErrInvalidQuery) || !executor.IsNoResults(err) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestProximityBoost(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Ranking.Name = "none"
	cfg.Indexer.Positional = true
	plain := build(t, cfg)

	res, err := plain.Search(context.Background(), "new york", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Results {
		if r.Score != 2 {
			t.Errorf("unboosted %s = %v, want 2", r.DocID, r.Score)
		}
	}

	cfg.Ranking.Proximity = config.ProximityConfig{Enabled: true, Window: 5, Mode: "add", Weight: 1}
	exec := executor.New(plain.Index(), cfg, metrics.New(prometheus.NewRegistry()))
	res, err = exec.Search(context.Background(), "new york", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"D4": 2.5, "D5": 2 + 0.5625/2}
	if len(res.Results) != 2 || res.Results[0].DocID != "D4" {
		t.Fatalf("results = %+v", res.Results)
	}
	for _, r := range res.Results {
		if math.Abs(r.Score-want[r.DocID]) > 1e-9 {
			t.Errorf("%s = %v, want %v", r.DocID, r.Score, want[r.DocID])
		}
	}
}

func TestProximityNeedsPositions(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Ranking.Name = "none"
	cfg.Ranking.Proximity = config.ProximityConfig{Enabled: true, Window: 5, Mode: "add", Weight: 1}
	exec := build(t, cfg)
	res, err := exec.Search(context.Background(), "new york", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Results {
		if r.Score != 2 {
			t.Errorf("%s boosted without positions: %v", r.DocID, r.Score)
		}
	}
}

func TestOpenIndexMissing(t *testing.T) {
	_, err := executor.OpenIndex(filepath.Join(t.TempDir(), "nothing"))
	if !errors.Is(err, apperrors.ErrIndexNotFound) {
		t.Errorf("error = %v, want ErrIndexNotFound", err)
	}
}

func TestReindexReplacesPreviousIndex(t *testing.T) {
	cfg := baseConfig(t)
	keep := filepath.Join(cfg.Indexer.DataDir, "notes.md")
	if err := os.WriteFile(keep, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}
	first := build(t, cfg)
	firstID := first.Index().ID()

	cfg.Indexer.MergeThreshold = 1000
	second := build(t, cfg)
	if second.Index().ID() == firstID {
		t.Error("rebuilt index kept the same id")
	}
	if second.Index().Meta.Segments != 1 {
		t.Errorf("segments = %d, want 1", second.Index().Meta.Segments)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Indexer.DataDir, indexer.BlockDir)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("block directory left behind: %v", err)
	}
}

func TestReindexKeepsFilesNamedLikeSegments(t *testing.T) {
	cfg := baseConfig(t)
	notes := filepath.Join(cfg.Indexer.DataDir, "meeting notes.txt")
	if err := os.WriteFile(notes, []byte("agenda"), 0o644); err != nil {
		t.Fatal(err)
	}
	build(t, cfg)
	exec := build(t, cfg)

	if data, err := os.ReadFile(notes); err != nil || string(data) != "agenda" {
		t.Errorf("user file after re-indexing: %q, %v", data, err)
	}
	meta := exec.Index().Meta
	if len(meta.SegmentFiles) != meta.Segments {
		t.Errorf("recorded %d segment files for %d segments", len(meta.SegmentFiles), meta.Segments)
	}
	for _, name := range meta.SegmentFiles {
		if name == "meeting notes.txt" {
			t.Error("user file recorded as a segment")
		}
	}
	res, err := exec.Search(context.Background(), "cat", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 2 {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestOpenIndexWithoutSegmentList(t *testing.T) {
	cfg := baseConfig(t)
	meta := build(t, cfg).Index().Meta
	meta.SegmentFiles = nil
	if err := indexer.SaveMetadata(cfg.Indexer.DataDir, meta); err != nil {
		t.Fatal(err)
	}
	if _, err := executor.OpenIndex(cfg.Indexer.DataDir); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("error = %v, want ErrCorruptIndex", err)
	}
}

func TestFailedIndexRemovesItsSegments(t *testing.T) {
	cfg := baseConfig(t)
	names := build(t, cfg).Index().Meta.SegmentFiles
	if len(names) < 2 {
		t.Fatalf("need several segments, got %v", names)
	}
	// Forget the index, then leave a foreign file where the last segment goes.
	dir := cfg.Indexer.DataDir
	if err := os.RemoveAll(filepath.Join(dir, indexer.MetadataDir)); err != nil {
		t.Fatal(err)
	}
	for _, name := range names[:len(names)-1] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
	clash := filepath.Join(dir, names[len(names)-1])
	if err := os.WriteFile(clash, []byte("user data"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine, err := indexer.NewEngine(cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.IndexFile(context.Background(), writeCollection(t)); err == nil {
		t.Fatal("indexing overwrote a foreign file")
	}
	if data, _ := os.ReadFile(clash); string(data) != "user data" {
		t.Errorf("foreign file = %q", data)
	}
	for _, name := range names[:len(names)-1] {
		if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("segment %s of the failed run left behind", name)
		}
	}
}

func TestIndexFileRejectsDuplicateDocumentIDs(t *testing.T) {
	for _, rename := range []bool{false, true} {
		t.Run(fmt.Sprintf("rename=%v", rename), func(t *testing.T) {
			cfg := baseConfig(t)
			cfg.Indexer.BlockThreshold = 1
			cfg.Indexer.RenameDocs = rename
			cfg.Ranking.Name = "bm25"
			path := filepath.Join(t.TempDir(), "dups.tsv")
			data := "qid\turl\tdocid\ttitle\tbody\textra\n" +
				"q0\tu0\tD1\tcat\tdog\tx\n" +
				"q1\tu1\tD2\tbird\tbird\tx\n" +
				"q2\tu2\tD1\tcat\tfish\tx\n"
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				t.Fatal(err)
			}
			engine, err := indexer.NewEngine(cfg, metrics.New(prometheus.NewRegistry()))
			if err != nil {
				t.Fatal(err)
			}
			_, err = engine.IndexFile(context.Background(), path)
			if !errors.Is(err, apperrors.ErrSourceIO) {
				t.Fatalf("error = %v, want ErrSourceIO", err)
			}
			if code := apperrors.ExitCode(err); code == 0 {
				t.Error("duplicate ids exit with status 0")
			}
		})
	}
}

func TestIndexFileCancelled(t *testing.T) {
	cfg := baseConfig(t)
	engine, err := indexer.NewEngine(cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.IndexFile(ctx, writeCollection(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memoryStore) FlushByPattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = make(map[string][]byte)
	return n, nil
}

func TestCachedSearcher(t *testing.T) {
	exec := build(t, baseConfig(t))
	m := metrics.New(prometheus.NewRegistry())
	qc := cache.New(&memoryStore{data: make(map[string][]byte)}, time.Minute, exec.Index().ID(), m)
	s := cache.NewSearcher(exec, qc)
	ctx := context.Background()

	direct, err := exec.Search(ctx, "cat", 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		res, err := s.Search(ctx, "Cat", 10)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(direct.Results, res.Results); diff != "" {
			t.Errorf("call %d mismatch (-direct +cached):\n%s", i, diff)
		}
	}
	if hits := testutil.ToFloat64(m.CacheHitsTotal); hits != 1 {
		t.Errorf("cache hits = %v, want 1", hits)
	}
	if misses := testutil.ToFloat64(m.CacheMissesTotal); misses != 1 {
		t.Errorf("cache misses = %v, want 1", misses)
	}
	if _, err := s.Search(ctx, "the", 10); !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}
}
