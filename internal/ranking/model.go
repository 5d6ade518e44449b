// Package ranking holds the ranking model chosen at index time and the weight
// formulas shared by the block builder, the merger and the query scorer.
package ranking

import (
	"fmt"
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

type Kind int

const (
	KindNone Kind = iota
	KindVSM
	KindBM25
)

func (k Kind) String() string {
	switch k {
	case KindVSM:
		return "vsm"
	case KindBM25:
		return "bm25"
	default:
		return "none"
	}
}

// Scheme is a SMART weighting code such as "lnc": term frequency, document
// frequency and normalisation, one letter each.
type Scheme struct {
	TF   byte
	DF   byte
	Norm byte
}

func (s Scheme) String() string {
	return string([]byte{s.TF, s.DF, s.Norm})
}

// TermWeight applies the term frequency letter to a raw count.
func (s Scheme) TermWeight(count int) float64 {
	if count <= 0 {
		return 0
	}
	if s.TF == 'l' {
		return 1 + math.Log10(float64(count))
	}
	return float64(count)
}

func (s Scheme) UsesIDF() bool { return s.DF == 't' }
func (s Scheme) Cosine() bool  { return s.Norm == 'c' }

type VSMParams struct {
	Document Scheme
	Query    Scheme
}

type BM25Params struct {
	K1 float64
	B  float64
}

// Model is a tagged choice between the ranking strategies. Only the params
// matching Kind are meaningful.
type Model struct {
	Kind Kind
	VSM  VSMParams
	BM25 BM25Params
}

// Parse validates cfg and returns the model it names.
func Parse(cfg config.RankingConfig) (Model, error) {
	switch strings.ToLower(cfg.Name) {
	case "", "none":
		return Model{Kind: KindNone}, nil
	case "vsm", "vs", "tfidf":
		doc, err := parseScheme(cfg.Document)
		if err != nil {
			return Model{}, apperrors.Newf(apperrors.ErrConfig, "ranking.document: %v", err)
		}
		if doc.UsesIDF() && doc.Cosine() {
			return Model{}, apperrors.Newf(apperrors.ErrConfig,
				"ranking.document %q: idf weighting cannot be cosine normalised at block time", cfg.Document)
		}
		query, err := parseScheme(cfg.Query)
		if err != nil {
			return Model{}, apperrors.Newf(apperrors.ErrConfig, "ranking.query: %v", err)
		}
		return Model{Kind: KindVSM, VSM: VSMParams{Document: doc, Query: query}}, nil
	case "bm25":
		if cfg.B < 0 || cfg.B > 1 {
			return Model{}, apperrors.Newf(apperrors.ErrConfig, "ranking.b must be in [0, 1], got %v", cfg.B)
		}
		if cfg.K1 < 0 {
			return Model{}, apperrors.Newf(apperrors.ErrConfig, "ranking.k1 must not be negative, got %v", cfg.K1)
		}
		return Model{Kind: KindBM25, BM25: BM25Params{K1: cfg.K1, B: cfg.B}}, nil
	default:
		return Model{}, apperrors.Newf(apperrors.ErrConfig, "unknown ranking model %q", cfg.Name)
	}
}

func parseScheme(code string) (Scheme, error) {
	if len(code) != 3 {
		return Scheme{}, fmt.Errorf("scheme %q must have 3 letters", code)
	}
	s := Scheme{TF: code[0], DF: code[1], Norm: code[2]}
	if s.TF != 'n' && s.TF != 'l' {
		return Scheme{}, fmt.Errorf("scheme %q: term frequency must be n or l", code)
	}
	if s.DF != 'n' && s.DF != 't' {
		return Scheme{}, fmt.Errorf("scheme %q: document frequency must be n or t", code)
	}
	if s.Norm != 'n' && s.Norm != 'c' {
		return Scheme{}, fmt.Errorf("scheme %q: normalisation must be n or c", code)
	}
	return s, nil
}

// Weighted reports whether postings carry a stored weight.
func (m Model) Weighted() bool {
	return m.Kind != KindNone
}

// IDF is log10(n/df); zero when df is zero.
func IDF(n int, df int) float64 {
	if df <= 0 || n <= 0 {
		return 0
	}
	return math.Log10(float64(n) / float64(df))
}

// Weight is the BM25 contribution of one (term, document) pair.
func (p BM25Params) Weight(idf float64, tf int, docLen int, avgDocLen float64) float64 {
	if tf <= 0 {
		return 0
	}
	lengthRatio := 1.0
	if avgDocLen > 0 {
		lengthRatio = float64(docLen) / avgDocLen
	}
	f := float64(tf)
	return idf * (p.K1 + 1) * f / (p.K1*((1-p.B)+p.B*lengthRatio) + f)
}

// DocumentWeights computes the VSM weights of one document from its term
// counts: the term frequency letter, then cosine normalisation if requested.
// The idf letter is applied later, at merge time.
func (s Scheme) DocumentWeights(counts map[string]int) map[string]float64 {
	weights := make(map[string]float64, len(counts))
	var sumSquares float64
	for term, cnt := range counts {
		w := s.TermWeight(cnt)
		weights[term] = w
		sumSquares += w * w
	}
	if s.Cosine() && sumSquares > 0 {
		norm := 1 / math.Sqrt(sumSquares)
		for term := range weights {
			weights[term] *= norm
		}
	}
	return weights
}
