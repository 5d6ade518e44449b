package dictionary

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

func TestDictionaryDocFreqAndIDF(t *testing.T) {
	d := New()
	d.AddDocFreq("cat", 1)
	d.AddDocFreq("dog", 2)
	d.AddDocFreq("cat", 1)
	d.ComputeIDF(4)

	cat, ok := d.Get("cat")
	if !ok || cat.DocFreq != 2 {
		t.Fatalf("cat = %+v, %v", cat, ok)
	}
	if want := math.Log10(2); math.Abs(cat.IDF-want) > 1e-12 || !cat.HasIDF {
		t.Errorf("cat idf = %v, want %v", cat.IDF, want)
	}
	if d.TotalDocFreq() != 4 {
		t.Errorf("TotalDocFreq() = %d, want 4", d.TotalDocFreq())
	}
	if diff := cmp.Diff([]string{"cat", "dog"}, d.Terms()); diff != "" {
		t.Errorf("Terms() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := d.Get("cow"); ok {
		t.Error("Get(cow) found a term never added")
	}
}

func TestDictionarySaveLoad(t *testing.T) {
	d := New()
	d.AddDocFreq("bird", 1)
	d.AddDocFreq("cat", 2)
	d.AddDocFreq("dog", 2)
	d.ComputeIDF(3)
	d.SetOffset("bird", 0)
	d.SetOffset("dog", 57)

	path := filepath.Join(t.TempDir(), "term_info.txt")
	if err := d.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, term := range d.Terms() {
		want, _ := d.Get(term)
		got, ok := loaded.Get(term)
		if !ok {
			t.Fatalf("term %q lost", term)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("term %q mismatch (-want +got):\n%s", term, diff)
		}
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
	if _, _, err := parseTermInfo("bird,x,,"); err == nil {
		t.Error("parseTermInfo accepted a non-numeric document frequency")
	}
	if _, _, err := parseTermInfo("bird,1"); err == nil {
		t.Error("parseTermInfo accepted a short line")
	}
}

func refs(ranges ...[2]string) []segment.Ref {
	out := make([]segment.Ref, len(ranges))
	for i, r := range ranges {
		out[i] = segment.Ref{First: r[0], Last: r[1], Path: r[0] + " " + r[1] + ".txt"}
	}
	return out
}

func TestNewLocatorRejectsOverlap(t *testing.T) {
	d := New()
	_, err := NewLocator(d, refs([2]string{"a", "m"}, [2]string{"k", "z"}), 0)
	if !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("overlapping ranges: error = %v, want ErrCorruptIndex", err)
	}
	_, err = NewLocator(d, refs([2]string{"m", "a"}), 0)
	if !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("inverted range: error = %v, want ErrCorruptIndex", err)
	}
}

func TestLookupSegment(t *testing.T) {
	l, err := NewLocator(New(), refs(
		[2]string{"kiwi", "pear"},
		[2]string{"apple", "fig"},
		[2]string{"plum", "zucchini"},
	), 0)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		term  string
		first string
		found bool
	}{
		{"apple", "apple", true},
		{"banana", "apple", true},
		{"fig", "apple", true},
		{"grape", "", false},
		{"kiwi", "kiwi", true},
		{"pear", "kiwi", true},
		{"pineapple", "", false},
		{"zucchini", "plum", true},
		{"zzz", "", false},
		{"aardvark", "", false},
	}
	for _, tt := range tests {
		ref, ok := l.LookupSegment(tt.term)
		if ok != tt.found || ref.First != tt.first {
			t.Errorf("LookupSegment(%q) = %q, %v; want %q, %v", tt.term, ref.First, ok, tt.first, tt.found)
		}
	}
}

func TestLocateOffset(t *testing.T) {
	d := New()
	for _, term := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		d.AddDocFreq(term, 1)
	}
	// Two segments [a..d] and [e..g] written with step 2.
	d.SetOffset("a", 0)
	d.SetOffset("c", 20)
	d.SetOffset("e", 0)
	d.SetOffset("g", 30)
	l, err := NewLocator(d, refs([2]string{"a", "d"}, [2]string{"e", "g"}), 2)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		term    string
		offset  int64
		maxScan int
	}{
		{"a", 0, 1},
		{"b", 0, 2},
		{"c", 20, 1},
		{"d", 20, 2},
		{"e", 0, 1},
		{"f", 0, 2},
		{"g", 30, 1},
		{"missing", 0, 0},
	}
	for _, tt := range tests {
		offset, maxScan := l.LocateOffset(tt.term)
		if offset != tt.offset || maxScan != tt.maxScan {
			t.Errorf("LocateOffset(%q) = %d, %d; want %d, %d", tt.term, offset, maxScan, tt.offset, tt.maxScan)
		}
	}

	noSkip, err := NewLocator(d, l.Segments(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if offset, maxScan := noSkip.LocateOffset("f"); offset != 0 || maxScan != 0 {
		t.Errorf("without a skip index LocateOffset = %d, %d; want 0, 0", offset, maxScan)
	}
}

func TestSegmentRefs(t *testing.T) {
	dir := t.TempDir()
	w := segment.NewWriter(dir, false)
	mn, _, err := w.Write([]segment.Line{{Term: "m", Text: "m d1,,1"}, {Term: "n", Text: "n d1,,1"}})
	if err != nil {
		t.Fatal(err)
	}
	a, _, err := w.Write([]segment.Line{{Term: "a", Text: "a d1,,1"}})
	if err != nil {
		t.Fatal(err)
	}
	// A user file that happens to look like a segment name.
	if err := os.WriteFile(filepath.Join(dir, "meeting notes.txt"), []byte("agenda"), 0o644); err != nil {
		t.Fatal(err)
	}

	names := []string{filepath.Base(mn.Path), filepath.Base(a.Path)}
	got, err := SegmentRefs(dir, names)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]segment.Ref{a, mn}, got); diff != "" {
		t.Errorf("SegmentRefs mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name  string
		names []string
	}{
		{"missing file", []string{"x y.txt"}},
		{"not a segment name", []string{"notes.md"}},
		{"outside the directory", []string{"../m n.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SegmentRefs(dir, tt.names); !errors.Is(err, apperrors.ErrCorruptIndex) {
				t.Errorf("error = %v, want ErrCorruptIndex", err)
			}
		})
	}
}
