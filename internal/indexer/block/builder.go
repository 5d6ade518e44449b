// Package block implements the SPIMI block builder: postings accumulate in an
// in-memory arena and are flushed as sorted, self-contained block files once
// a posting-count threshold is reached.
package block

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/docid"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

type Options struct {
	Dir        string
	Threshold  int
	Positional bool
	RenameDocs bool
	Model      ranking.Model
}

// Statistics are the collection-wide counts the merger needs to finalise
// ranking weights.
type Statistics struct {
	Documents   int
	TotalLength int64
	// DocLengths is keyed by stored document id and only filled for BM25.
	DocLengths map[string]int
}

// AvgDocLength is the mean document length in terms.
func (s Statistics) AvgDocLength() float64 {
	if s.Documents == 0 {
		return 0
	}
	return float64(s.TotalLength) / float64(s.Documents)
}

type Builder struct {
	opts     Options
	memIndex *index.MemoryIndex
	dict     *dictionary.Dictionary
	mapper   *docid.Mapper
	metrics  *metrics.Metrics
	logger   *slog.Logger
	blocks   []string
	stats    Statistics
	// seen holds the original id of every indexed document.
	seen map[string]struct{}
}

// NewBuilder creates a builder that writes blocks into opts.Dir and folds
// per-block document frequencies into dict. mapper may be nil when renaming
// is off.
func NewBuilder(opts Options, dict *dictionary.Dictionary, mapper *docid.Mapper, m *metrics.Metrics) (*Builder, error) {
	if opts.Threshold <= 0 {
		return nil, apperrors.Newf(apperrors.ErrConfig, "block threshold must be positive, got %d", opts.Threshold)
	}
	if opts.RenameDocs && mapper == nil {
		return nil, fmt.Errorf("doc renaming enabled without a mapper")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating block directory: %w", err)
	}
	return &Builder{
		opts:     opts,
		memIndex: index.NewMemoryIndex(),
		dict:     dict,
		mapper:   mapper,
		metrics:  m,
		logger:   slog.Default().With("component", "block-builder"),
		stats:    Statistics{DocLengths: make(map[string]int)},
		seen:     make(map[string]struct{}),
	}, nil
}

// IndexTerms adds one document's normalised terms. Documents with no terms
// are skipped entirely: no alias, no count, no statistics. An id that was
// already indexed is rejected with ErrSourceIO.
func (b *Builder) IndexTerms(terms []tokenizer.Token, docID string) error {
	if len(terms) == 0 {
		b.metrics.DocsSkippedTotal.Inc()
		return nil
	}
	lastPos := make(map[string]int, len(terms))
	for _, t := range terms {
		if !index.ValidTerm(t.Term) {
			return apperrors.Newf(apperrors.ErrInvalidTerm, "document %s: term %q", docID, t.Term)
		}
		if prev, seen := lastPos[t.Term]; seen && t.Position <= prev {
			return apperrors.Newf(apperrors.ErrInvalidTerm, "document %s: term %q positions not increasing (%d after %d)",
				docID, t.Term, t.Position, prev)
		}
		lastPos[t.Term] = t.Position
	}
	if _, dup := b.seen[docID]; dup {
		return apperrors.Newf(apperrors.ErrSourceIO, "document id %s appears more than once", docID)
	}
	b.seen[docID] = struct{}{}

	if b.opts.RenameDocs {
		docID = b.mapper.Assign(docID)
	}

	counts := make(map[string]int, len(lastPos))
	for _, t := range terms {
		b.memIndex.Add(t.Term, docID, t.Position, b.opts.Positional)
		counts[t.Term]++
	}
	b.recordRanking(docID, counts, len(terms))

	b.stats.Documents++
	b.stats.TotalLength += int64(len(terms))
	b.metrics.DocsIndexedTotal.Inc()

	if b.memIndex.Postings() >= b.opts.Threshold {
		b.logger.Debug("block threshold reached",
			"postings", b.memIndex.Postings(),
			"threshold", b.opts.Threshold,
		)
		return b.Flush()
	}
	return nil
}

// recordRanking stores the document-local ranking information. VSM weights
// only need this document's counts; BM25 needs the length, and its weight is
// computed at merge time once collection statistics are final.
func (b *Builder) recordRanking(docID string, counts map[string]int, length int) {
	switch b.opts.Model.Kind {
	case ranking.KindVSM:
		for term, w := range b.opts.Model.VSM.Document.DocumentWeights(counts) {
			if p, ok := b.memIndex.Lookup(term, docID); ok {
				p.Weight = w
				p.HasWeight = true
			}
		}
	case ranking.KindBM25:
		b.stats.DocLengths[docID] = length
	}
}

// Flush writes the arena as a new block file, adds each term's block document
// count to the dictionary, and clears the arena. It is a no-op when the arena
// is empty.
func (b *Builder) Flush() error {
	if b.memIndex.Postings() == 0 {
		return nil
	}
	entries := b.memIndex.Snapshot()
	path := filepath.Join(b.opts.Dir, fmt.Sprintf("block%06d.txt", len(b.blocks)))
	if err := writeBlock(path, entries, b.opts.Positional); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	for _, e := range entries {
		b.dict.AddDocFreq(e.Term, len(e.Postings))
	}
	b.blocks = append(b.blocks, path)
	b.metrics.BlocksFlushedTotal.Inc()
	b.logger.Info("block flushed",
		"block", filepath.Base(path),
		"terms", len(entries),
		"postings", b.memIndex.Postings(),
	)
	b.memIndex.Reset()
	return nil
}

// Blocks returns the block files written so far, in write order.
func (b *Builder) Blocks() []string {
	return b.blocks
}

func (b *Builder) Statistics() Statistics {
	return b.stats
}

func writeBlock(path string, entries []index.TermEntry, positional bool) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp block file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 256*1024)
	var sb strings.Builder
	for _, e := range entries {
		sb.Reset()
		sb.WriteString(e.Term)
		for _, p := range e.Postings {
			sb.WriteByte(' ')
			p.AppendTo(&sb, positional)
		}
		sb.WriteByte('\n')
		if _, err := w.WriteString(sb.String()); err != nil {
			return fmt.Errorf("writing term %q: %w", e.Term, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing block: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing block: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming block file: %w", err)
	}
	return nil
}
