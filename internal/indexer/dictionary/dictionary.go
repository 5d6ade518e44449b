// Package dictionary holds the term dictionary: per-term document frequency,
// idf and the sparse skip-index offsets, plus the locator that turns a term
// into a segment and a starting offset.
package dictionary

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/ranking"
)

// TermInfo is the dictionary record of one term.
type TermInfo struct {
	DocFreq   int
	Offset    int64
	HasOffset bool
	IDF       float64
	HasIDF    bool
}

// Dictionary maps terms to their TermInfo and keeps them in sorted order for
// binary search. Mutation happens only while indexing; a loaded dictionary is
// read-only and safe for concurrent lookups.
type Dictionary struct {
	terms  map[string]*TermInfo
	sorted []string
	dirty  bool
}

func New() *Dictionary {
	return &Dictionary{terms: make(map[string]*TermInfo)}
}

// AddDocFreq adds n documents to term's document frequency.
func (d *Dictionary) AddDocFreq(term string, n int) {
	info, ok := d.terms[term]
	if !ok {
		info = &TermInfo{}
		d.terms[term] = info
		d.dirty = true
	}
	info.DocFreq += n
}

func (d *Dictionary) Get(term string) (TermInfo, bool) {
	info, ok := d.terms[term]
	if !ok {
		return TermInfo{}, false
	}
	return *info, true
}

// SetOffset records the skip-index offset of term within its segment.
func (d *Dictionary) SetOffset(term string, offset int64) {
	if info, ok := d.terms[term]; ok {
		info.Offset = offset
		info.HasOffset = true
	}
}

// ComputeIDF sets idf = log10(n/df) for every term. It must run after every
// block has been flushed so that df is final.
func (d *Dictionary) ComputeIDF(n int) {
	for _, info := range d.terms {
		info.IDF = ranking.IDF(n, info.DocFreq)
		info.HasIDF = true
	}
}

func (d *Dictionary) Len() int {
	return len(d.terms)
}

// Terms returns every term in ascending order.
func (d *Dictionary) Terms() []string {
	d.sort()
	return d.sorted
}

// TotalDocFreq is the sum of document frequencies over all terms.
func (d *Dictionary) TotalDocFreq() int {
	total := 0
	for _, info := range d.terms {
		total += info.DocFreq
	}
	return total
}

func (d *Dictionary) sort() {
	if !d.dirty && len(d.sorted) == len(d.terms) {
		return
	}
	d.sorted = make([]string, 0, len(d.terms))
	for term := range d.terms {
		d.sorted = append(d.sorted, term)
	}
	sort.Strings(d.sorted)
	d.dirty = false
}

// Save writes one "term,documentFrequency,position,idf" line per term in
// ascending order. Absent offsets and idf are left empty.
func (d *Dictionary) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating term info file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, term := range d.Terms() {
		info := d.terms[term]
		var sb strings.Builder
		sb.WriteString(term)
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(info.DocFreq))
		sb.WriteByte(',')
		if info.HasOffset {
			sb.WriteString(strconv.FormatInt(info.Offset, 10))
		}
		sb.WriteByte(',')
		if info.HasIDF {
			sb.WriteString(strconv.FormatFloat(info.IDF, 'g', -1, 64))
		}
		sb.WriteByte('\n')
		if _, err := w.WriteString(sb.String()); err != nil {
			return fmt.Errorf("writing term info file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing term info file: %w", err)
	}
	return f.Close()
}

// Load reads a file written by Save and returns a sorted, read-only
// dictionary.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening term info file: %w", err)
	}
	defer f.Close()

	d := New()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		term, info, err := parseTermInfo(line)
		if err != nil {
			return nil, fmt.Errorf("term info line %d: %w", lineNo, err)
		}
		d.terms[term] = info
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading term info file: %w", err)
	}
	d.dirty = true
	d.sort()
	return d, nil
}

func parseTermInfo(line string) (string, *TermInfo, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 || parts[0] == "" {
		return "", nil, fmt.Errorf("malformed %q", line)
	}
	info := &TermInfo{}
	if parts[1] != "" {
		df, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", nil, fmt.Errorf("document frequency: %w", err)
		}
		info.DocFreq = df
	}
	if parts[2] != "" {
		off, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("position: %w", err)
		}
		info.Offset = off
		info.HasOffset = true
	}
	if parts[3] != "" {
		idf, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return "", nil, fmt.Errorf("idf: %w", err)
		}
		info.IDF = idf
		info.HasIDF = true
	}
	return parts[0], info, nil
}
