// Package tokenizer provides text normalisation for the indexer and the query
// parser. It optionally lower-cases input, splits on non-alphanumeric
// boundaries, filters by length, numbers and stop-words, expands contractions
// and applies the Snowball English stemmer.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on", "or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they", "have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each", "do", "not", "no", "so", "can", "you",
	"your", "we", "our", "she", "her", "him", "his", "them", "there", "been",
	"would", "could", "should", "than", "then", "these", "those", "very", "about",
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenizer holds the resolved normalisation options.
type Tokenizer struct {
	minLength    int
	maxLength    int
	caseFolding  bool
	noNumbers    bool
	stem         bool
	stopWords    map[string]struct{}
	contractions map[string]string
}

// New builds a Tokenizer from cfg, reading the stop-word and contraction files
// when they are configured.
func New(cfg config.TokenizerConfig) (*Tokenizer, error) {
	t := &Tokenizer{
		minLength:    cfg.MinLength,
		maxLength:    cfg.MaxLength,
		caseFolding:  cfg.CaseFolding,
		noNumbers:    cfg.NoNumbers,
		stem:         cfg.Stemmer,
		stopWords:    make(map[string]struct{}),
		contractions: make(map[string]string),
	}
	if cfg.Stopwords {
		for _, w := range defaultStopWords {
			t.stopWords[w] = struct{}{}
		}
	}
	if cfg.StopwordsFile != "" {
		data, err := os.ReadFile(cfg.StopwordsFile)
		if err != nil {
			return nil, fmt.Errorf("reading stopwords file: %w", err)
		}
		for _, w := range strings.Fields(string(data)) {
			t.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
	if cfg.ContractionsFile != "" {
		if err := t.loadContractions(cfg.ContractionsFile); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tokenizer) loadContractions(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening contractions file: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		token, term, ok := strings.Cut(strings.ToLower(scanner.Text()), ",")
		if !ok {
			continue
		}
		t.contractions[strings.TrimSpace(token)] = strings.TrimSpace(term)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading contractions file: %w", err)
	}
	return nil
}

// Tokenize normalises text and numbers the surviving terms from zero, so
// positions are strictly increasing.
func (t *Tokenizer) Tokenize(text string) []Token {
	terms := t.Normalize(strings.Fields(text))
	tokens := make([]Token, len(terms))
	for i, term := range terms {
		tokens[i] = Token{Term: term, Position: i}
	}
	return tokens
}

// Normalize turns raw words into index terms. The query parser uses it
// directly so that queries and documents share one normalisation.
func (t *Tokenizer) Normalize(words []string) []string {
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if expanded, ok := t.contractions[strings.ToLower(word)]; ok {
			word = expanded
		}
		parts := strings.FieldsFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, part := range parts {
			if term, ok := t.normalizeTerm(part); ok {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

func (t *Tokenizer) normalizeTerm(term string) (string, bool) {
	if t.maxLength > 0 && len(term) > t.maxLength {
		return "", false
	}
	if t.minLength > 0 && len(term) < t.minLength {
		return "", false
	}
	if t.caseFolding {
		term = strings.ToLower(term)
	}
	if _, isStop := t.stopWords[strings.ToLower(term)]; isStop {
		return "", false
	}
	if t.noNumbers && isNumber(term) {
		return "", false
	}
	if t.stem {
		term = english.Stem(term, false)
	}
	if term == "" {
		return "", false
	}
	return term, true
}

func isNumber(term string) bool {
	for _, r := range term {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
