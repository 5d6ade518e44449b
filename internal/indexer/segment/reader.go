package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// TermPostings is one parsed segment line.
type TermPostings struct {
	Term     string
	IDF      float64
	HasIDF   bool
	Postings index.PostingList
}

// Translator maps stored (aliased) document ids back to original ids.
type Translator interface {
	Original(alias string) (string, bool)
}

type ParseOptions struct {
	Positional bool
	// Translator is nil when the index was built without doc renaming.
	Translator Translator
}

// ParseLine parses "term[,idf] <posting>+" according to opts. Absent weights,
// term frequencies and positions are accepted.
func ParseLine(line string, opts ParseOptions) (*TermPostings, error) {
	key, fields := index.SplitLine(line)
	if key == "" {
		return nil, fmt.Errorf("empty segment line")
	}
	term, rawIDF, _ := strings.Cut(key, ",")
	tp := &TermPostings{
		Term:     term,
		Postings: make(index.PostingList, 0, len(fields)),
	}
	if rawIDF != "" {
		idf, err := strconv.ParseFloat(rawIDF, 64)
		if err != nil {
			return nil, fmt.Errorf("term %q: idf: %w", term, err)
		}
		tp.IDF = idf
		tp.HasIDF = true
	}
	for _, field := range fields {
		p, err := index.DecodePosting(field)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", term, err)
		}
		if !opts.Positional {
			p.Positions = nil
		}
		if opts.Translator != nil {
			original, ok := opts.Translator.Original(p.DocID)
			if !ok {
				return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "term %q: unknown document alias %q", term, p.DocID)
			}
			p.DocID = original
		}
		tp.Postings = append(tp.Postings, p)
	}
	return tp, nil
}

// Reader locates and parses posting lines in segment files. It holds no open
// files, so one Reader may serve concurrent queries.
type Reader struct {
	opts ParseOptions
}

func NewReader(opts ParseOptions) *Reader {
	return &Reader{opts: opts}
}

// Find scans ref from the uncompressed byte offset for term, reading at most
// maxScan lines (no bound when maxScan <= 0). A term that is not where the
// dictionary says it is yields ErrCorruptIndex.
func (r *Reader) Find(ref Ref, term string, offset int64, maxScan int) (*TermPostings, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("opening segment %s: %w", ref.Path, err)
	}
	defer f.Close()

	var in io.Reader = f
	if ref.Compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip segment %s: %w", ref.Path, err)
		}
		defer gz.Close()
		if _, err := io.CopyN(io.Discard, gz, offset); err != nil {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "segment %s: offset %d: %v", ref.Path, offset, err)
		}
		in = gz
	} else if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking segment %s: %w", ref.Path, err)
		}
	}

	br := bufio.NewReaderSize(in, 64*1024)
	for scanned := 0; maxScan <= 0 || scanned < maxScan; scanned++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading segment %s: %w", ref.Path, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lineTerm := index.LineTerm(line)
			if lineTerm == term {
				return ParseLine(line, r.opts)
			}
			if lineTerm > term {
				break
			}
		}
		if err != nil {
			break
		}
	}
	return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "term %q not found in segment %s", term, ref.Path)
}
