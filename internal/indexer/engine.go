package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/block"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/docid"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

// cancelCheckInterval is how many documents are read between context checks.
const cancelCheckInterval = 1024

// Summary describes a finished indexing run.
type Summary struct {
	Documents  int
	Terms      int
	Postings   int
	Blocks     int
	Segments   int
	DiskBytes  int64
	IndexTime  time.Duration
	MergeTime  time.Duration
	TotalTime  time.Duration
	Dir        string
	Positional bool
}

// Engine builds an index from a document source in one run: tokenize, fill
// and flush blocks, compute idf, merge into segments, persist metadata.
type Engine struct {
	cfg     *config.Config
	tok     *tokenizer.Tokenizer
	model   ranking.Model
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewEngine(cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	model, err := ranking.Parse(cfg.Ranking)
	if err != nil {
		return nil, err
	}
	tok, err := tokenizer.New(cfg.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer: %w", err)
	}
	return &Engine{
		cfg:     cfg,
		tok:     tok,
		model:   model,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}, nil
}

// IndexFile indexes the documents of path into the configured data
// directory, replacing any index already there. An interrupted run leaves
// the directory unusable until indexing is repeated.
func (e *Engine) IndexFile(ctx context.Context, path string) (*Summary, error) {
	start := time.Now()
	icfg := e.cfg.Indexer
	dir := icfg.DataDir
	if err := e.prepareDir(dir); err != nil {
		return nil, err
	}

	dict := dictionary.New()
	var mapper *docid.Mapper
	if icfg.RenameDocs {
		mapper = docid.NewMapper()
	}
	blockDir := filepath.Join(dir, BlockDir)
	builder, err := block.NewBuilder(block.Options{
		Dir:        blockDir,
		Threshold:  icfg.BlockThreshold,
		Positional: icfg.Positional,
		RenameDocs: icfg.RenameDocs,
		Model:      e.model,
	}, dict, mapper, e.metrics)
	if err != nil {
		return nil, err
	}

	e.logger.Info("indexing started",
		"source", path,
		"dir", dir,
		"ranking", e.model.Kind.String(),
		"positional", icfg.Positional,
	)
	src, err := source.Open(path, icfg.Source)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	read := 0
	for src.Next() {
		read++
		if read%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("indexing interrupted: %w", err)
			}
		}
		doc := src.Document()
		if err := builder.IndexTerms(e.tok.Tokenize(doc.Text), doc.ID); err != nil {
			return nil, fmt.Errorf("indexing line %d: %w", doc.Line, err)
		}
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	if err := builder.Flush(); err != nil {
		return nil, err
	}
	indexTime := time.Since(start)

	stats := builder.Statistics()
	dict.ComputeIDF(stats.Documents)
	e.logger.Info("blocks complete",
		"documents", stats.Documents,
		"skipped", read-stats.Documents,
		"blocks", len(builder.Blocks()),
		"vocabulary", dict.Len(),
		"elapsed", indexTime,
	)

	mergeStart := time.Now()
	segWriter := segment.NewWriter(dir, icfg.Compress)
	committed := false
	defer func() {
		if !committed {
			e.removeSegments(segWriter.Written())
		}
	}()
	m := merger.New(merger.Options{
		Threshold:  icfg.MergeThreshold,
		ChunkSize:  icfg.MergeChunkSize,
		Step:       icfg.FileLocationStep,
		Positional: icfg.Positional,
		Model:      e.model,
	}, segWriter, dict, stats, e.metrics)
	result, err := m.Merge(ctx, builder.Blocks())
	if err != nil {
		return nil, fmt.Errorf("merging blocks: %w", err)
	}
	if err := os.RemoveAll(blockDir); err != nil {
		return nil, fmt.Errorf("removing block directory: %w", err)
	}
	mergeTime := time.Since(mergeStart)

	if err := dict.Save(MetadataPath(dir, TermInfoFile)); err != nil {
		return nil, err
	}
	if mapper != nil {
		if err := mapper.Save(MetadataPath(dir, DocIDsFile)); err != nil {
			return nil, err
		}
	}
	md := &Metadata{
		CreatedAt:        time.Now().UTC(),
		Source:           path,
		Positional:       icfg.Positional,
		Compress:         icfg.Compress,
		RenameDocs:       icfg.RenameDocs,
		FileLocationStep: icfg.FileLocationStep,
		Tokenizer:        e.cfg.Tokenizer,
		Ranking:          e.cfg.Ranking,
		Documents:        stats.Documents,
		TotalLength:      stats.TotalLength,
		AvgDocLength:     stats.AvgDocLength(),
		Terms:            result.Terms,
		Postings:         result.Postings,
		Blocks:           len(builder.Blocks()),
		Segments:         len(result.Segments),
		SegmentFiles:     segmentFiles(result.Segments),
	}
	if err := SaveMetadata(dir, md); err != nil {
		return nil, err
	}
	committed = true

	size, err := diskSize(dir, result.Segments)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		Documents:  stats.Documents,
		Terms:      result.Terms,
		Postings:   result.Postings,
		Blocks:     md.Blocks,
		Segments:   md.Segments,
		DiskBytes:  size,
		IndexTime:  indexTime,
		MergeTime:  mergeTime,
		TotalTime:  time.Since(start),
		Dir:        dir,
		Positional: icfg.Positional,
	}
	e.logger.Info("indexing complete",
		"documents", summary.Documents,
		"vocabulary", summary.Terms,
		"segments", summary.Segments,
		"disk_bytes", summary.DiskBytes,
		"elapsed", summary.TotalTime,
	)
	return summary, nil
}

// prepareDir removes the segments recorded by a previous run, its blocks and
// its metadata. Files the previous metadata does not list are left alone.
func (e *Engine) prepareDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	prev, err := LoadMetadata(dir)
	switch {
	case err == nil:
		removed := 0
		for _, name := range prev.SegmentFiles {
			if _, _, _, ok := segment.ParseName(name); !ok || filepath.Base(name) != name {
				e.logger.Warn("ignoring recorded segment with a foreign name", "file", name)
				continue
			}
			err := os.Remove(filepath.Join(dir, name))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("removing old segment: %w", err)
			}
			if err == nil {
				removed++
			}
		}
		e.logger.Info("removed previous index", "segments", removed)
	case apperrors.Is(err, apperrors.ErrIndexNotFound):
	default:
		e.logger.Warn("previous index metadata unreadable, keeping its files", "error", err)
	}
	for _, sub := range []string{BlockDir, MetadataDir} {
		if err := os.RemoveAll(filepath.Join(dir, sub)); err != nil {
			return fmt.Errorf("removing %s: %w", sub, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, MetadataDir), 0755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	return nil
}

// removeSegments deletes the segments of a run that failed before its
// metadata was saved, since nothing would record them.
func (e *Engine) removeSegments(refs []segment.Ref) {
	for _, ref := range refs {
		if err := os.Remove(ref.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("removing segment of failed run", "segment", ref.Path, "error", err)
		}
	}
}

func segmentFiles(refs []segment.Ref) []string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = filepath.Base(ref.Path)
	}
	return names
}

// diskSize is the total size of the segment and metadata files of dir.
func diskSize(dir string, refs []segment.Ref) (int64, error) {
	var total int64
	for _, ref := range refs {
		info, err := os.Stat(ref.Path)
		if err != nil {
			return 0, fmt.Errorf("sizing segment: %w", err)
		}
		total += info.Size()
	}
	err := filepath.WalkDir(filepath.Join(dir, MetadataDir), func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing metadata: %w", err)
	}
	return total, nil
}
