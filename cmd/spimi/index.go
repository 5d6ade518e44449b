package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

func runIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	out := fs.String("o", "", "index output directory")
	positional := fs.Bool("positional", false, "store term positions")
	compress := fs.Bool("compress", false, "gzip segment files")
	rename := fs.Bool("rename", false, "replace document ids with short aliases")
	step := fs.Int("step", 0, "record a skip-index offset every N terms (0 disables)")
	blockThreshold := fs.Int("block-threshold", 0, "postings per block")
	mergeThreshold := fs.Int("merge-threshold", 0, "postings per segment")
	chunkSize := fs.Int("chunk-size", 0, "lines read per block during merge")
	rankingName := fs.String("ranking", "", "ranking model: vsm, bm25 or none")
	document := fs.String("document", "", "VSM document weighting scheme")
	query := fs.String("query", "", "VSM query weighting scheme")
	k1 := fs.Float64("k1", 0, "BM25 k1")
	b := fs.Float64("b", 0, "BM25 b")
	if err := fs.Parse(args); err != nil {
		return apperrors.Newf(apperrors.ErrConfig, "%v", err)
	}
	if fs.NArg() != 1 {
		return apperrors.New(apperrors.ErrConfig, "index needs exactly one document file")
	}

	cfg, err := loadConfig(fs, *configPath, func(cfg *config.Config, set map[string]bool) {
		ix := &cfg.Indexer
		if set["o"] {
			ix.DataDir = *out
		}
		if set["positional"] {
			ix.Positional = *positional
		}
		if set["compress"] {
			ix.Compress = *compress
		}
		if set["rename"] {
			ix.RenameDocs = *rename
		}
		if set["step"] {
			ix.FileLocationStep = *step
		}
		if set["block-threshold"] {
			ix.BlockThreshold = *blockThreshold
		}
		if set["merge-threshold"] {
			ix.MergeThreshold = *mergeThreshold
		}
		if set["chunk-size"] {
			ix.MergeChunkSize = *chunkSize
		}
		r := &cfg.Ranking
		if set["ranking"] {
			r.Name = *rankingName
		}
		if set["document"] {
			r.Document = *document
		}
		if set["query"] {
			r.Query = *query
		}
		if set["k1"] {
			r.K1 = *k1
		}
		if set["b"] {
			r.B = *b
		}
	})
	if err != nil {
		return err
	}
	m, stopMetrics := startMetrics(cfg)
	defer stopMetrics()

	engine, err := indexer.NewEngine(cfg, m)
	if err != nil {
		return err
	}
	summary, err := engine.IndexFile(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "indexed %d documents in %s (blocks %s, merge %s)\n",
		summary.Documents, summary.TotalTime, summary.IndexTime, summary.MergeTime)
	fmt.Fprintf(os.Stdout, "vocabulary: %d terms, %d postings\n", summary.Terms, summary.Postings)
	fmt.Fprintf(os.Stdout, "blocks: %d, segments: %d\n", summary.Blocks, summary.Segments)
	fmt.Fprintf(os.Stdout, "index size: %.2f MiB in %s\n", float64(summary.DiskBytes)/(1<<20), summary.Dir)
	return nil
}
