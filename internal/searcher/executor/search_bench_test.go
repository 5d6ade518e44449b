package executor_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

var benchTerms = []string{"distributed", "search", "analytics", "platform", "indexing", "query", "engine", "ranking"}

// benchIndex indexes n synthetic documents and opens the result.
func benchIndex(b *testing.B, n int, apply func(*config.Config)) *executor.Executor {
	b.Helper()
	var sb strings.Builder
	sb.WriteString("qid\turl\tdocid\ttitle\tbody\textra\n")
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("document about %s and %s", benchTerms[i%len(benchTerms)], benchTerms[(i+1)%len(benchTerms)])
		body := fmt.Sprintf("this document covers %s %s %s in production systems",
			benchTerms[i%len(benchTerms)], benchTerms[(i+2)%len(benchTerms)], benchTerms[(i+3)%len(benchTerms)])
		fmt.Fprintf(&sb, "q\turl\tdoc-%d\t%s\t%s\tx\n", i, title, body)
	}
	src := filepath.Join(b.TempDir(), "bench.tsv")
	if err := os.WriteFile(src, []byte(sb.String()), 0o644); err != nil {
		b.Fatal(err)
	}
	cfg := config.Default()
	cfg.Indexer.DataDir = b.TempDir()
	cfg.Indexer.BlockThreshold = 5000
	cfg.Indexer.MergeThreshold = 2000
	apply(cfg)
	engine, err := indexer.NewEngine(cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		b.Fatal(err)
	}
	if _, err := engine.IndexFile(context.Background(), src); err != nil {
		b.Fatal(err)
	}
	idx, err := executor.OpenIndex(cfg.Indexer.DataDir)
	if err != nil {
		b.Fatal(err)
	}
	return executor.New(idx, cfg, metrics.New(prometheus.NewRegistry()))
}

// BenchmarkIndexFile measures a full index run at several corpus sizes.
func BenchmarkIndexFile(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				benchIndex(b, n, func(*config.Config) {})
			}
		})
	}
}

// BenchmarkSearch measures end-to-end query latency over 10 000 documents.
func BenchmarkSearch(b *testing.B) {
	layouts := map[string]func(*config.Config){
		"plain":      func(*config.Config) {},
		"skip_index": func(c *config.Config) { c.Indexer.FileLocationStep = 16 },
		"compressed": func(c *config.Config) { c.Indexer.Compress = true },
	}
	for name, apply := range layouts {
		b.Run(name, func(b *testing.B) {
			exec := benchIndex(b, 10000, apply)
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Search(ctx, benchTerms[i%len(benchTerms)]+" "+benchTerms[(i+3)%len(benchTerms)], 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSearchParallel measures concurrent query throughput.
func BenchmarkSearchParallel(b *testing.B) {
	exec := benchIndex(b, 10000, func(c *config.Config) { c.Indexer.FileLocationStep = 16 })
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := exec.Search(ctx, benchTerms[i%len(benchTerms)], 10); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}
