package executor

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

var errNoSegment = apperrors.New(apperrors.ErrCorruptIndex, "no segment covers term")

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
	Took      time.Duration      `json:"took"`
}

type Executor struct {
	index   *Index
	cfg     config.SearchConfig
	prox    config.ProximityConfig
	metrics *metrics.Metrics
}

// New creates an executor over idx. Limits and the proximity re-ranker are
// query-time settings and come from cfg.
func New(idx *Index, cfg *config.Config, m *metrics.Metrics) *Executor {
	return &Executor{
		index:   idx,
		cfg:     cfg.Search,
		prox:    cfg.Ranking.Proximity,
		metrics: m,
	}
}

func (e *Executor) Index() *Index {
	return e.index
}

// Search parses and executes a free-text query.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	plan, err := parser.Parse(query, e.index.Tokenizer)
	if err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	return e.Execute(ctx, plan, limit)
}

// Execute scores plan against the index. Terms that were never indexed are
// dropped silently; terms whose posting list cannot be read are logged and
// dropped. Only I/O failures abort the query.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "query-executor")
	limit = e.clampLimit(limit)

	postings := make(map[string]*segment.TermPostings)
	termStats := make(map[string]int)
	for _, term := range plan.Distinct() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tp, found, err := e.index.Lookup(term)
		switch {
		case err != nil && apperrors.Recoverable(err):
			e.metrics.TermLookupsTotal.WithLabelValues("corrupt").Inc()
			log.Warn("dropping unreadable term", "term", term, "error", err)
			continue
		case err != nil:
			return nil, err
		case !found:
			e.metrics.TermLookupsTotal.WithLabelValues("missing").Inc()
			continue
		}
		e.metrics.TermLookupsTotal.WithLabelValues("found").Inc()
		postings[term] = tp
		termStats[term] = len(tp.Postings)
	}

	scores := ranker.Score(e.index.Model, plan.Terms, postings)
	if e.prox.Enabled && e.index.Meta.Positional {
		ranker.Boost(plan.Terms, postings, scores, ranker.ProximityOptions{
			Window: e.prox.Window,
			Mode:   e.prox.Mode,
			Weight: e.prox.Weight,
		})
	}
	ranked := merger.TopK(scores, limit)

	resultType := "hit"
	if len(ranked) == 0 {
		resultType = "empty"
	}
	took := time.Since(start)
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchLatency.WithLabelValues(e.index.Model.Kind.String()).Observe(took.Seconds())
	e.metrics.SearchResultsCount.Observe(float64(len(ranked)))
	log.Info("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"candidates", len(scores),
		"results", len(ranked),
		"took", took,
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: len(scores),
		Results:   ranked,
		TermStats: termStats,
		Took:      took,
	}, nil
}

func (e *Executor) clampLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}
	return limit
}

// IsNoResults reports whether err only means the query had nothing to search
// for.
func IsNoResults(err error) bool {
	return apperrors.Is(err, apperrors.ErrInvalidQuery)
}
