package dictionary

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// SegmentRefs resolves the segment file names recorded for the index in dir,
// sorted by term range. Every listed file must exist and carry a segment
// name; other files in dir are never considered.
func SegmentRefs(dir string, names []string) ([]segment.Ref, error) {
	refs := make([]segment.Ref, 0, len(names))
	for _, name := range names {
		first, last, compressed, ok := segment.ParseName(name)
		if !ok || filepath.Base(name) != name {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "recorded segment %q is not a segment name", name)
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "segment %s: %v", name, err)
		}
		refs = append(refs, segment.Ref{
			First:      first,
			Last:       last,
			Path:       path,
			Compressed: compressed,
		})
	}
	sortRefs(refs)
	return refs, nil
}

func sortRefs(refs []segment.Ref) {
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].First < refs[j].First
	})
}

// Locator finds the segment holding a term and where to start scanning it.
type Locator struct {
	dict     *Dictionary
	segments []segment.Ref
	step     int
}

// NewLocator checks that the segment ranges are ordered and pairwise disjoint.
func NewLocator(dict *Dictionary, segments []segment.Ref, step int) (*Locator, error) {
	refs := make([]segment.Ref, len(segments))
	copy(refs, segments)
	sortRefs(refs)
	for i, ref := range refs {
		if ref.First > ref.Last {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "segment %s: first term after last term", ref.Path)
		}
		if i > 0 && refs[i-1].Last >= ref.First {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "segments %s and %s overlap", refs[i-1].Path, ref.Path)
		}
	}
	dict.sort()
	return &Locator{dict: dict, segments: refs, step: step}, nil
}

func (l *Locator) Segments() []segment.Ref {
	return l.segments
}

// LookupSegment binary-searches the segment whose range brackets term.
func (l *Locator) LookupSegment(term string) (segment.Ref, bool) {
	i := sort.Search(len(l.segments), func(i int) bool {
		return l.segments[i].Last >= term
	})
	if i < len(l.segments) && l.segments[i].First <= term {
		return l.segments[i], true
	}
	return segment.Ref{}, false
}

// LocateOffset returns the byte offset to start scanning from and the number
// of lines the scan may read. Without a skip index the whole segment is
// scanned from the start (maxScan 0).
func (l *Locator) LocateOffset(term string) (offset int64, maxScan int) {
	if l.step <= 0 {
		return 0, 0
	}
	terms := l.dict.sorted
	idx := sort.SearchStrings(terms, term)
	if idx == len(terms) || terms[idx] != term {
		return 0, 0
	}
	// The first term of every segment carries an offset, so walking back at
	// most step entries never leaves term's segment.
	for i := 0; i < l.step && idx-i >= 0; i++ {
		info := l.dict.terms[terms[idx-i]]
		if info.HasOffset {
			return info.Offset, i + 1
		}
	}
	return 0, 0
}
