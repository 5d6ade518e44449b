package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RelevanceQuery is one query of a relevance file with its judgments.
type RelevanceQuery struct {
	Query     string
	Judgments []Judgment
}

// ReadQueries reads one query per non-blank line.
func ReadQueries(r io.Reader) ([]string, error) {
	queries := make([]string, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	return queries, nil
}

// ReadRelevance parses blocks of a "Q: query" line followed by
// "docId relevance" lines, each block ended by a blank line or end of input.
func ReadRelevance(r io.Reader) ([]RelevanceQuery, error) {
	out := make([]RelevanceQuery, 0)
	var cur *RelevanceQuery
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			cur = nil
		case strings.HasPrefix(line, "Q:"):
			out = append(out, RelevanceQuery{Query: strings.TrimSpace(line[2:])})
			cur = &out[len(out)-1]
		case cur == nil:
			return nil, fmt.Errorf("relevance line %d: judgment outside a query block", lineNo)
		default:
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return nil, fmt.Errorf("relevance line %d: want \"doc relevance\", got %q", lineNo, line)
			}
			rel, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("relevance line %d: %w", lineNo, err)
			}
			cur.Judgments = append(cur.Judgments, Judgment{DocID: fields[0], Relevance: rel})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading relevance file: %w", err)
	}
	return out, nil
}

func ReadQueriesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()
	return ReadQueries(f)
}

func ReadRelevanceFile(path string) ([]RelevanceQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening relevance file: %w", err)
	}
	defer f.Close()
	return ReadRelevance(f)
}
