package executor

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/docid"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// Index is a fully loaded, read-only index. It is safe for concurrent use.
type Index struct {
	Dir       string
	Meta      *indexer.Metadata
	Model     ranking.Model
	Tokenizer *tokenizer.Tokenizer

	dict    *dictionary.Dictionary
	locator *dictionary.Locator
	reader  *segment.Reader
}

// OpenIndex loads the metadata, term dictionary, segment table and document
// mapping of the index in dir. Tokenizer and ranking settings come from the
// metadata so queries are normalised the way documents were.
func OpenIndex(dir string) (*Index, error) {
	md, err := indexer.LoadMetadata(dir)
	if err != nil {
		return nil, err
	}
	model, err := ranking.Parse(md.Ranking)
	if err != nil {
		return nil, fmt.Errorf("index ranking settings: %w", err)
	}
	tok, err := tokenizer.New(md.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("index tokenizer settings: %w", err)
	}
	dict, err := dictionary.Load(indexer.MetadataPath(dir, indexer.TermInfoFile))
	if err != nil {
		return nil, err
	}
	if len(md.SegmentFiles) != md.Segments {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "metadata lists %d segment files for %d segments, rebuild the index",
			len(md.SegmentFiles), md.Segments)
	}
	refs, err := dictionary.SegmentRefs(dir, md.SegmentFiles)
	if err != nil {
		return nil, err
	}
	locator, err := dictionary.NewLocator(dict, refs, md.FileLocationStep)
	if err != nil {
		return nil, err
	}
	opts := segment.ParseOptions{Positional: md.Positional}
	if md.RenameDocs {
		mapper, err := docid.Load(indexer.MetadataPath(dir, indexer.DocIDsFile))
		if err != nil {
			return nil, err
		}
		opts.Translator = mapper
	}

	slog.Default().With("component", "index").Info("index loaded",
		"dir", dir,
		"documents", md.Documents,
		"vocabulary", dict.Len(),
		"segments", len(refs),
		"ranking", model.Kind.String(),
	)
	return &Index{
		Dir:       dir,
		Meta:      md,
		Model:     model,
		Tokenizer: tok,
		dict:      dict,
		locator:   locator,
		reader:    segment.NewReader(opts),
	}, nil
}

// ID identifies this build of the index, for cache keys.
func (idx *Index) ID() string {
	return fmt.Sprintf("%s@%d", idx.Dir, idx.Meta.CreatedAt.UnixNano())
}

func (idx *Index) Vocabulary() int {
	return idx.dict.Len()
}

// Lookup reads the posting list of a normalised term. found is false for a
// term that was never indexed.
func (idx *Index) Lookup(term string) (tp *segment.TermPostings, found bool, err error) {
	info, ok := idx.dict.Get(term)
	if !ok {
		return nil, false, nil
	}
	ref, ok := idx.locator.LookupSegment(term)
	if !ok {
		return nil, true, fmt.Errorf("term %q: %w", term, errNoSegment)
	}
	offset, maxScan := idx.locator.LocateOffset(term)
	tp, err = idx.reader.Find(ref, term, offset, maxScan)
	if err != nil {
		return nil, true, err
	}
	if !tp.HasIDF && info.HasIDF {
		tp.IDF = info.IDF
		tp.HasIDF = true
	}
	return tp, true, nil
}
