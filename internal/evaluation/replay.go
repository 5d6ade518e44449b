package evaluation

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// Searcher is the ranked retrieval contract the harness replays against.
// Both executor.Executor and cache.Searcher satisfy it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
}

// QueryOutcome is the ranking returned for one replayed query.
type QueryOutcome struct {
	Query   string
	Results []ranker.ScoredDoc
	Latency time.Duration
}

// Run holds every outcome, in input order, and the replay timings.
type Run struct {
	Outcomes []QueryOutcome
	Elapsed  time.Duration
}

// Throughput is queries per second over the whole replay.
func (r *Run) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(len(r.Outcomes)) / r.Elapsed.Seconds()
}

// MedianLatency is the median per-query latency.
func (r *Run) MedianLatency() time.Duration {
	if len(r.Outcomes) == 0 {
		return 0
	}
	lat := make([]time.Duration, len(r.Outcomes))
	for i, o := range r.Outcomes {
		lat[i] = o.Latency
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	mid := len(lat) / 2
	if len(lat)%2 == 0 {
		return (lat[mid-1] + lat[mid]) / 2
	}
	return lat[mid]
}

// Replay runs queries with at most concurrency in flight. Queries with no
// indexable terms yield an empty ranking; any other error stops the replay.
func Replay(ctx context.Context, s Searcher, queries []string, top, concurrency int) (*Run, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	run := &Run{Outcomes: make([]QueryOutcome, len(queries))}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, q := range queries {
		g.Go(func() error {
			qStart := time.Now()
			res, err := s.Search(gctx, q, top)
			outcome := QueryOutcome{Query: q, Results: []ranker.ScoredDoc{}}
			switch {
			case err != nil && apperrors.Is(err, apperrors.ErrInvalidQuery):
				// nothing to search for
			case err != nil:
				return fmt.Errorf("query %q: %w", q, err)
			default:
				outcome.Results = res.Results
			}
			outcome.Latency = time.Since(qStart)
			run.Outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	run.Elapsed = time.Since(start)
	return run, nil
}

// WriteResults writes each outcome as "Q: query", a blank line, then one
// "doc\tscore" line per result and a closing blank line.
func WriteResults(w io.Writer, run *Run) error {
	for _, o := range run.Outcomes {
		if _, err := fmt.Fprintf(w, "Q: %s\n\n", o.Query); err != nil {
			return err
		}
		if len(o.Results) == 0 {
			if _, err := fmt.Fprintf(w, "Your search - %s - did not match any documents\n\n", o.Query); err != nil {
				return err
			}
			continue
		}
		for _, r := range o.Results {
			if _, err := fmt.Fprintf(w, "%s\t%.6f\n", r.DocID, r.Score); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// QueryReport pairs a judged query with its metrics.
type QueryReport struct {
	Query   string
	Metrics []CutoffMetrics
}

// Report is the outcome of replaying a relevance file.
type Report struct {
	Queries []QueryReport
	Mean    []CutoffMetrics
	Run     *Run
}

// EvaluateRelevance replays every judged query at the deepest cutoff and
// scores the rankings.
func EvaluateRelevance(ctx context.Context, s Searcher, judged []RelevanceQuery, concurrency int) (*Report, error) {
	queries := make([]string, len(judged))
	for i, j := range judged {
		queries[i] = j.Query
	}
	run, err := Replay(ctx, s, queries, Cutoffs[len(Cutoffs)-1], concurrency)
	if err != nil {
		return nil, err
	}
	report := &Report{Run: run, Queries: make([]QueryReport, len(judged))}
	all := make([][]CutoffMetrics, len(judged))
	for i, j := range judged {
		all[i] = Evaluate(j.Judgments, run.Outcomes[i].Results)
		report.Queries[i] = QueryReport{Query: j.Query, Metrics: all[i]}
	}
	report.Mean = Average(all)
	return report, nil
}

// WriteReport renders per-query and mean metrics as aligned tables.
func WriteReport(w io.Writer, report *Report, perQuery bool) error {
	if perQuery {
		for _, q := range report.Queries {
			fmt.Fprintf(w, "\nMetrics for Q: %s\n", q.Query)
			if err := writeTable(w, q.Metrics); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(w, "\nMetrics for all queries\n")
	if err := writeTable(w, report.Mean); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nqueries: %d  throughput: %.2f q/s  median latency: %s\n",
		len(report.Run.Outcomes), report.Run.Throughput(), report.Run.MedianLatency())
	return err
}

func writeTable(w io.Writer, rows []CutoffMetrics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Top K\tPrecision\tRecall\tF-Measure\tAverage Precision\tNDCG\t")
	for _, m := range rows {
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t\n",
			m.K, m.Precision, m.Recall, m.F1, m.AveragePrecision, m.NDCG)
	}
	return tw.Flush()
}
