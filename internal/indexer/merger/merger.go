// Package merger streams block files through a bounded-memory k-way merge and
// writes the term-range partitioned segments of the final index.
//
// Every block is internally sorted, so once block b has been read up to term
// last[b] it can only contribute terms greater than last[b]. A buffered term
// is therefore complete, and safe to write, when it is strictly less than the
// minimum last-seen term over the blocks still open. Each round refills only
// the blocks sitting at that minimum, one chunk each.
package merger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/block"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

type Options struct {
	// Threshold is the posting count that triggers a segment write.
	Threshold int
	// ChunkSize is the number of lines read from a block per refill.
	ChunkSize int
	// Step records a skip-index offset every Step terms; 0 disables it.
	Step       int
	Positional bool
	Model      ranking.Model
}

// Result summarises a completed merge.
type Result struct {
	Segments []segment.Ref
	Terms    int
	Postings int
}

type Merger struct {
	opts    Options
	writer  *segment.Writer
	dict    *dictionary.Dictionary
	stats   block.Statistics
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a merger. dict must hold final document frequencies and idf,
// i.e. every block has been flushed and ComputeIDF has run, so that weights
// are written from final statistics only.
func New(opts Options, writer *segment.Writer, dict *dictionary.Dictionary, stats block.Statistics, m *metrics.Metrics) *Merger {
	return &Merger{
		opts:    opts,
		writer:  writer,
		dict:    dict,
		stats:   stats,
		metrics: m,
		logger:  slog.Default().With("component", "merger"),
	}
}

type cursor struct {
	order  int
	reader *block.Reader
	last   string
	primed bool
}

// contribution is one block's postings for a term.
type contribution struct {
	order    int
	postings index.PostingList
}

type pendingTerm struct {
	parts    []contribution
	postings int
}

// Merge consumes blocks, which must be given in write order, and deletes them
// once every segment is written. A failed or cancelled merge leaves the index
// unusable; indexing has to be re-run from the source.
func (m *Merger) Merge(ctx context.Context, blocks []string) (*Result, error) {
	if m.opts.Threshold <= 0 || m.opts.ChunkSize <= 0 {
		return nil, apperrors.Newf(apperrors.ErrConfig, "merge threshold and chunk size must be positive")
	}
	start := time.Now()
	cursors := make([]*cursor, 0, len(blocks))
	defer func() {
		for _, c := range cursors {
			c.reader.Close()
		}
	}()
	for i, path := range blocks {
		r, err := block.OpenReader(path)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, &cursor{order: i, reader: r})
	}
	m.logger.Info("merging blocks", "blocks", len(blocks))

	result := &Result{}
	pending := make(map[string]*pendingTerm)
	for len(cursors) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("merge interrupted: %w", err)
		}
		minLast, _ := minLastSeen(cursors)
		open := make([]*cursor, 0, len(cursors))
		for _, c := range cursors {
			if c.primed && c.last != minLast {
				open = append(open, c)
				continue
			}
			entries, err := c.reader.ReadChunk(m.opts.ChunkSize)
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				c.reader.Close()
				continue
			}
			for _, e := range entries {
				pt, ok := pending[e.Term]
				if !ok {
					pt = &pendingTerm{}
					pending[e.Term] = pt
				}
				pt.parts = append(pt.parts, contribution{order: c.order, postings: e.Postings})
				pt.postings += len(e.Postings)
			}
			c.last = entries[len(entries)-1].Term
			c.primed = true
			open = append(open, c)
		}
		cursors = open

		boundary, bounded := minLastSeen(cursors)
		if err := m.emit(pending, boundary, bounded, result); err != nil {
			return nil, err
		}
	}

	if err := m.verify(result); err != nil {
		return nil, err
	}
	for _, path := range blocks {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing block %s: %w", path, err)
		}
	}
	m.metrics.MergeDuration.Observe(time.Since(start).Seconds())
	m.logger.Info("merge complete",
		"segments", len(result.Segments),
		"terms", result.Terms,
		"postings", result.Postings,
		"duration", time.Since(start),
	)
	return result, nil
}

// minLastSeen returns the smallest last-seen term over primed cursors. ok is
// false when no cursor is left, in which case every buffered term is safe.
func minLastSeen(cursors []*cursor) (string, bool) {
	var min string
	ok := false
	for _, c := range cursors {
		if !c.primed {
			continue
		}
		if !ok || c.last < min {
			min = c.last
			ok = true
		}
	}
	return min, ok
}

// emit writes segments from the buffered terms strictly below boundary. While
// blocks remain open only full batches of Threshold postings are written; when
// unbounded, the remainder goes out as the final segment.
func (m *Merger) emit(pending map[string]*pendingTerm, boundary string, bounded bool, result *Result) error {
	ready := make([]string, 0)
	readyPostings := 0
	for term, pt := range pending {
		if !bounded || term < boundary {
			ready = append(ready, term)
			readyPostings += pt.postings
		}
	}
	if len(ready) == 0 || (bounded && readyPostings < m.opts.Threshold) {
		return nil
	}
	sort.Strings(ready)

	batchStart, batchPostings := 0, 0
	for i, term := range ready {
		batchPostings += pending[term].postings
		if batchPostings >= m.opts.Threshold {
			if err := m.writeSegment(ready[batchStart:i+1], pending, result); err != nil {
				return err
			}
			batchStart, batchPostings = i+1, 0
		}
	}
	if !bounded && batchStart < len(ready) {
		return m.writeSegment(ready[batchStart:], pending, result)
	}
	return nil
}

func (m *Merger) writeSegment(terms []string, pending map[string]*pendingTerm, result *Result) error {
	lines := make([]segment.Line, len(terms))
	postings := 0
	for i, term := range terms {
		pt := pending[term]
		lines[i] = segment.Line{Term: term, Text: m.renderLine(term, pt)}
		postings += pt.postings
	}
	ref, offsets, err := m.writer.Write(lines)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	if m.opts.Step > 0 {
		for i := 0; i < len(terms); i += m.opts.Step {
			m.dict.SetOffset(terms[i], offsets[i])
		}
	}
	for _, term := range terms {
		delete(pending, term)
	}
	result.Segments = append(result.Segments, ref)
	result.Terms += len(terms)
	result.Postings += postings
	m.metrics.SegmentsWrittenTotal.Inc()
	m.metrics.PostingsMergedTotal.Add(float64(postings))
	m.logger.Info("segment written",
		"first", ref.First,
		"last", ref.Last,
		"terms", len(terms),
		"postings", postings,
	)
	return nil
}

// renderLine produces "term[,idf] <posting>+" with final weights. Block
// contributions are concatenated in block order, which is document order.
func (m *Merger) renderLine(term string, pt *pendingTerm) string {
	sort.Slice(pt.parts, func(i, j int) bool {
		return pt.parts[i].order < pt.parts[j].order
	})
	info, _ := m.dict.Get(term)

	var sb strings.Builder
	sb.WriteString(term)
	if info.HasIDF {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(info.IDF, 'f', 6, 64))
	}
	avgLen := m.stats.AvgDocLength()
	for _, part := range pt.parts {
		for _, p := range part.postings {
			switch m.opts.Model.Kind {
			case ranking.KindVSM:
				if m.opts.Model.VSM.Document.UsesIDF() {
					p.Weight *= info.IDF
				}
				p.HasWeight = true
			case ranking.KindBM25:
				p.Weight = m.opts.Model.BM25.Weight(info.IDF, p.TermFreq, m.stats.DocLengths[p.DocID], avgLen)
				p.HasWeight = true
			default:
				p.HasWeight = false
			}
			sb.WriteByte(' ')
			p.AppendTo(&sb, m.opts.Positional)
		}
	}
	return sb.String()
}

// verify checks that every dictionary term was written exactly once and that
// the postings written match the summed block document frequencies.
func (m *Merger) verify(result *Result) error {
	if result.Terms != m.dict.Len() {
		return apperrors.Newf(apperrors.ErrCorruptIndex, "merged %d terms, dictionary has %d", result.Terms, m.dict.Len())
	}
	if total := m.dict.TotalDocFreq(); result.Postings != total {
		return apperrors.Newf(apperrors.ErrCorruptIndex, "merged %d postings, block document frequencies sum to %d",
			result.Postings, total)
	}
	return nil
}
