// Package source reads the tab-delimited document collection, one document
// per line, transparently decompressing gzip input.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

const maxLineSize = 16 * 1024 * 1024

// Document is one parsed source line.
type Document struct {
	ID   string
	Text string
	Line int
}

// Reader iterates over the documents of a source file.
type Reader struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	cfg     config.SourceConfig
	line    int
	doc     Document
	err     error
}

// Open opens path, detecting gzip by its magic bytes, and skips the header
// line when configured.
func Open(path string, cfg config.SourceConfig) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrSourceIO, "opening %s: %v", path, err)
	}
	r := &Reader{file: f, cfg: cfg}
	br := bufio.NewReader(f)
	var in io.Reader = br
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, apperrors.Newf(apperrors.ErrSourceIO, "opening gzip stream %s: %v", path, err)
		}
		r.gz = gz
		in = gz
	}
	r.scanner = bufio.NewScanner(in)
	r.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	if cfg.SkipHeader && r.scanner.Scan() {
		r.line++
	}
	return r, nil
}

// Next advances to the next document. It returns false at end of input or on
// the first error, which Err then reports.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		doc, err := parseLine(text, r.cfg)
		if err != nil {
			r.err = apperrors.Newf(apperrors.ErrSourceIO, "line %d: %v", r.line, err)
			return false
		}
		doc.Line = r.line
		r.doc = doc
		return true
	}
	if err := r.scanner.Err(); err != nil {
		r.err = apperrors.Newf(apperrors.ErrSourceIO, "reading line %d: %v", r.line+1, err)
	}
	return false
}

func (r *Reader) Document() Document {
	return r.doc
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.file.Close()
}

func parseLine(line string, cfg config.SourceConfig) (Document, error) {
	fields := strings.Split(line, "\t")
	id, err := column(fields, cfg.IDColumn)
	if err != nil {
		return Document{}, fmt.Errorf("document id: %w", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, fmt.Errorf("empty document id")
	}
	if strings.ContainsAny(id, " ,\t") {
		return Document{}, fmt.Errorf("document id %q contains a space or comma", id)
	}
	parts := make([]string, 0, len(cfg.TextColumns))
	for _, c := range cfg.TextColumns {
		text, err := column(fields, c)
		if err != nil {
			return Document{}, fmt.Errorf("text: %w", err)
		}
		parts = append(parts, text)
	}
	return Document{ID: id, Text: strings.Join(parts, " ")}, nil
}

func column(fields []string, idx int) (string, error) {
	if idx < 0 {
		idx += len(fields)
	}
	if idx < 0 || idx >= len(fields) {
		return "", fmt.Errorf("column %d out of range (%d columns)", idx, len(fields))
	}
	return fields[idx], nil
}
