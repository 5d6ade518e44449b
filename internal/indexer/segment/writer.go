// Package segment writes and reads the immutable, term-range partitioned
// segment files produced by the merger. A segment is a text file named
// "<firstTerm> <lastTerm>.txt" (".txt.gz" when compressed) holding one line
// per term in ascending order: "term[,idf] <posting>+".
package segment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	Extension           = ".txt"
	CompressedExtension = ".txt.gz"
)

// Ref identifies one segment file and the term range it covers.
type Ref struct {
	First      string
	Last       string
	Path       string
	Compressed bool
}

// Name returns the file name encoding the range [first, last].
func Name(first, last string, compressed bool) string {
	if compressed {
		return first + " " + last + CompressedExtension
	}
	return first + " " + last + Extension
}

// ParseName recovers the term range from a segment file name.
func ParseName(name string) (first, last string, compressed bool, ok bool) {
	base := name
	switch {
	case strings.HasSuffix(base, CompressedExtension):
		base = strings.TrimSuffix(base, CompressedExtension)
		compressed = true
	case strings.HasSuffix(base, Extension):
		base = strings.TrimSuffix(base, Extension)
	default:
		return "", "", false, false
	}
	first, last, ok = strings.Cut(base, " ")
	if !ok || first == "" || last == "" || strings.Contains(last, " ") {
		return "", "", false, false
	}
	return first, last, compressed, true
}

// Line is one term's rendered line, without the trailing newline.
type Line struct {
	Term string
	Text string
}

// Writer creates new segment files in a directory.
type Writer struct {
	dir      string
	compress bool
	written  []Ref
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dir string, compress bool) *Writer {
	return &Writer{dir: dir, compress: compress}
}

// Write atomically creates a segment holding lines, which must be in strictly
// ascending term order. It writes to a .tmp file first and renames on
// success. The returned offsets are the uncompressed byte offset of each
// line.
func (w *Writer) Write(lines []Line) (Ref, []int64, error) {
	if len(lines) == 0 {
		return Ref{}, nil, fmt.Errorf("cannot write empty segment")
	}
	for i := 1; i < len(lines); i++ {
		if lines[i-1].Term >= lines[i].Term {
			return Ref{}, nil, fmt.Errorf("segment terms out of order: %q before %q", lines[i-1].Term, lines[i].Term)
		}
	}
	first, last := lines[0].Term, lines[len(lines)-1].Term
	finalPath := filepath.Join(w.dir, Name(first, last, w.compress))
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return Ref{}, nil, fmt.Errorf("creating segment directory: %w", err)
	}
	if _, err := os.Stat(finalPath); err == nil {
		return Ref{}, nil, fmt.Errorf("segment %s would overwrite an existing file", finalPath)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return Ref{}, nil, fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	var out io.Writer = f
	var gz *gzip.Writer
	if w.compress {
		gz = gzip.NewWriter(f)
		out = gz
	}
	bw := bufio.NewWriterSize(out, 256*1024)

	offsets := make([]int64, len(lines))
	var offset int64
	for i, line := range lines {
		offsets[i] = offset
		n, err := bw.WriteString(line.Text)
		if err != nil {
			return Ref{}, nil, fmt.Errorf("writing term %q: %w", line.Term, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return Ref{}, nil, fmt.Errorf("writing term %q: %w", line.Term, err)
		}
		offset += int64(n) + 1
	}
	if err := bw.Flush(); err != nil {
		return Ref{}, nil, fmt.Errorf("flushing segment: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return Ref{}, nil, fmt.Errorf("closing gzip stream: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return Ref{}, nil, fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return Ref{}, nil, fmt.Errorf("renaming segment file: %w", err)
	}
	ref := Ref{First: first, Last: last, Path: finalPath, Compressed: w.compress}
	w.written = append(w.written, ref)
	return ref, offsets, nil
}

// Written lists the segments this writer has created, in write order.
func (w *Writer) Written() []Ref {
	return w.written
}
