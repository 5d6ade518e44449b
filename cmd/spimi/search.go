package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/resilience"
)

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	queriesPath := fs.String("queries", "", "file with one query per line")
	relevancePath := fs.String("relevance", "", "relevance judgments file to evaluate against")
	resultsPath := fs.String("results", "results.txt", "where -queries writes its rankings")
	top := fs.Int("top", 0, "number of results per query")
	proximity := fs.Bool("proximity", false, "re-rank with the positional proximity boost")
	perQuery := fs.Bool("per-query", true, "print metrics for every judged query")
	if err := fs.Parse(args); err != nil {
		return apperrors.Newf(apperrors.ErrConfig, "%v", err)
	}
	if fs.NArg() != 1 {
		return apperrors.New(apperrors.ErrConfig, "search needs exactly one index directory")
	}

	cfg, err := loadConfig(fs, *configPath, func(cfg *config.Config, set map[string]bool) {
		if set["proximity"] {
			cfg.Ranking.Proximity.Enabled = *proximity
		}
		if set["top"] && *top > cfg.Search.MaxResults {
			cfg.Search.MaxResults = *top
		}
	})
	if err != nil {
		return err
	}
	m, stopMetrics := startMetrics(cfg)
	defer stopMetrics()

	idx, err := executor.OpenIndex(fs.Arg(0))
	if err != nil {
		return err
	}
	exec := executor.New(idx, cfg, m)
	searcher, rc := withCache(ctx, cfg, exec, m)
	defer rc.close()

	switch {
	case *relevancePath != "":
		judged, err := evaluation.ReadRelevanceFile(*relevancePath)
		if err != nil {
			return err
		}
		report, err := evaluation.EvaluateRelevance(ctx, searcher, judged, cfg.Search.MaxConcurrentQueries)
		if err != nil {
			return err
		}
		return evaluation.WriteReport(os.Stdout, report, *perQuery)
	case *queriesPath != "":
		queries, err := evaluation.ReadQueriesFile(*queriesPath)
		if err != nil {
			return err
		}
		run, err := evaluation.Replay(ctx, searcher, queries, *top, cfg.Search.MaxConcurrentQueries)
		if err != nil {
			return err
		}
		if err := writeResultsFile(*resultsPath, run); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d queries in %s (%.2f q/s, median %s), results in %s\n",
			len(run.Outcomes), run.Elapsed, run.Throughput(), run.MedianLatency(), *resultsPath)
		return nil
	default:
		return interactive(ctx, searcher, os.Stdin, os.Stdout, *top)
	}
}

// resultCache is the redis result cache wired in front of an executor.
type resultCache struct {
	client  *pkgredis.Client
	queries *cache.QueryCache
}

func (rc *resultCache) close() {
	if rc == nil {
		return
	}
	if err := rc.client.Close(); err != nil {
		slog.Error("closing redis client", "error", err)
	}
}

// withCache wraps exec in the redis result cache when one is configured and
// reachable; otherwise queries go straight to the executor and the returned
// cache is nil. Store calls go through a circuit breaker so a redis outage
// degrades to uncached search.
func withCache(ctx context.Context, cfg *config.Config, exec *executor.Executor, m *metrics.Metrics) (evaluation.Searcher, *resultCache) {
	if cfg.Redis.Addr == "" {
		return exec, nil
	}
	client, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		return exec, nil
	}
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{
		FailureThreshold: cfg.Redis.BreakerFailures,
		ResetTimeout:     cfg.Redis.BreakerReset,
	})
	slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	qc := cache.New(cache.NewGuardedStore(client, breaker), cfg.Redis.CacheTTL, exec.Index().ID(), m)
	return cache.NewSearcher(exec, qc), &resultCache{client: client, queries: qc}
}

func writeResultsFile(path string, run *evaluation.Run) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := evaluation.WriteResults(w, run); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return f.Close()
}

func interactive(ctx context.Context, s evaluation.Searcher, in io.Reader, out io.Writer, top int) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "query> ")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			fmt.Fprint(out, "query> ")
			continue
		}
		res, err := s.Search(ctx, q, top)
		switch {
		case executor.IsNoResults(err):
			fmt.Fprintf(out, "Your search - %s - did not match any documents\n", q)
		case err != nil:
			return err
		case len(res.Results) == 0:
			fmt.Fprintf(out, "Your search - %s - did not match any documents\n", q)
		default:
			for i, r := range res.Results {
				fmt.Fprintf(out, "%3d. %s\t%.6f\n", i+1, r.DocID, r.Score)
			}
			fmt.Fprintf(out, "%d of %d matching documents in %s\n", len(res.Results), res.TotalHits, res.Took)
		}
		fmt.Fprint(out, "query> ")
	}
	return scanner.Err()
}
