package block

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
)

// Reader is a sequential cursor over one block file.
type Reader struct {
	path string
	file *os.File
	br   *bufio.Reader
	done bool
	// last is the most recent term read, across chunks.
	last   string
	closed bool
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening block %s: %w", path, err)
	}
	return &Reader{
		path: path,
		file: f,
		br:   bufio.NewReaderSize(f, 64*1024),
	}, nil
}

func (r *Reader) Path() string {
	return r.path
}

// ReadChunk decodes up to n term lines. An empty result means the block is
// exhausted.
func (r *Reader) ReadChunk(n int) ([]index.TermEntry, error) {
	entries := make([]index.TermEntry, 0, n)
	for len(entries) < n && !r.done {
		line, err := r.br.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("reading block %s: %w", r.path, err)
			}
			r.done = true
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		term, fields := index.SplitLine(line)
		entry := index.TermEntry{
			Term:     term,
			Postings: make(index.PostingList, 0, len(fields)),
		}
		for _, field := range fields {
			p, err := index.DecodePosting(field)
			if err != nil {
				return nil, fmt.Errorf("block %s: %w", r.path, err)
			}
			entry.Postings = append(entry.Postings, p)
		}
		if r.last != "" && r.last >= term {
			return nil, fmt.Errorf("block %s: terms out of order at %q", r.path, term)
		}
		r.last = term
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close releases the file. Calling it again is a no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
