// Package docid rewrites document identifiers into short aliases that sort in
// assignment order.
//
// An alias is a length symbol followed by a counter. The counter counts over
// the printable alphabet '0'..'~' like an odometer; when every digit is at
// the last symbol it grows by one digit and the length symbol advances. The
// length symbol makes longer aliases sort after shorter ones, so alias N+1 is
// always greater than alias N under byte-wise comparison.
package docid

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	minChar = '0'
	maxChar = '~'
)

// NextAlias returns the alias that follows prev. NextAlias("") is the first
// alias.
func NextAlias(prev string) string {
	if len(prev) < 2 {
		return string([]byte{minChar, minChar})
	}
	digits := []byte(prev[1:])
	for i := len(digits) - 1; i >= 0; i-- {
		if digits[i] != maxChar {
			digits[i]++
			return string(prev[0]) + string(digits)
		}
		digits[i] = minChar
	}
	// Every digit overflowed: one more digit, next length symbol.
	return string(prev[0]+1) + strings.Repeat(string(rune(minChar)), len(digits)+1)
}

// Mapper owns the alias counter and the original <-> alias bijection.
type Mapper struct {
	last       string
	toOriginal map[string]string
	toAlias    map[string]string
}

func NewMapper() *Mapper {
	return &Mapper{
		toOriginal: make(map[string]string),
		toAlias:    make(map[string]string),
	}
}

// Assign returns the alias of original, allocating the next one on first use.
func (m *Mapper) Assign(original string) string {
	if alias, ok := m.toAlias[original]; ok {
		return alias
	}
	m.last = NextAlias(m.last)
	m.toAlias[original] = m.last
	m.toOriginal[m.last] = original
	return m.last
}

func (m *Mapper) Original(alias string) (string, bool) {
	original, ok := m.toOriginal[alias]
	return original, ok
}

func (m *Mapper) Alias(original string) (string, bool) {
	alias, ok := m.toAlias[original]
	return alias, ok
}

func (m *Mapper) Len() int {
	return len(m.toOriginal)
}

// Save writes one "alias originalId" line per document in alias order.
func (m *Mapper) Save(path string) error {
	aliases := make([]string, 0, len(m.toOriginal))
	for alias := range m.toOriginal {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating doc id file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, alias := range aliases {
		if _, err := fmt.Fprintf(w, "%s %s\n", alias, m.toOriginal[alias]); err != nil {
			return fmt.Errorf("writing doc id file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing doc id file: %w", err)
	}
	return f.Close()
}

// Load reads a file written by Save. The counter resumes after the greatest
// alias read.
func Load(path string) (*Mapper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening doc id file: %w", err)
	}
	defer f.Close()

	m := NewMapper()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		alias, original, ok := strings.Cut(line, " ")
		if !ok || alias == "" || original == "" {
			return nil, fmt.Errorf("doc id file line %d: malformed %q", lineNo, line)
		}
		m.toOriginal[alias] = original
		m.toAlias[original] = alias
		if alias > m.last {
			m.last = alias
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading doc id file: %w", err)
	}
	return m, nil
}
