// Package ranker turns parsed posting lists into document scores for the
// ranking model the index was built with.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/ranking"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Counts returns the multiplicity of every query term.
func Counts(terms []string) map[string]int {
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	return counts
}

// Score sums the contribution of every query term present in postings.
// Terms without a posting list contribute nothing.
//
//	VSM:  storedWeight × queryWeight × queryCount
//	BM25: ci × queryCount
//	none: tf × queryCount
func Score(model ranking.Model, terms []string, postings map[string]*segment.TermPostings) map[string]float64 {
	counts := Counts(terms)
	scores := make(map[string]float64)
	switch model.Kind {
	case ranking.KindVSM:
		scoreVSM(model.VSM.Query, counts, postings, scores)
	case ranking.KindBM25:
		for term, cnt := range counts {
			tp, ok := postings[term]
			if !ok {
				continue
			}
			for _, p := range tp.Postings {
				scores[p.DocID] += p.Weight * float64(cnt)
			}
		}
	default:
		for term, cnt := range counts {
			tp, ok := postings[term]
			if !ok {
				continue
			}
			for _, p := range tp.Postings {
				scores[p.DocID] += float64(p.TermFreq * cnt)
			}
		}
	}
	return scores
}

func scoreVSM(query ranking.Scheme, counts map[string]int, postings map[string]*segment.TermPostings, scores map[string]float64) {
	var sumSquares float64
	for term, cnt := range counts {
		tp, ok := postings[term]
		if !ok {
			continue
		}
		qw := QueryWeight(query, cnt, tp.IDF)
		sumSquares += qw * qw
		for _, p := range tp.Postings {
			scores[p.DocID] += p.Weight * qw * float64(cnt)
		}
	}
	if query.Cosine() && sumSquares > 0 {
		norm := 1 / math.Sqrt(sumSquares)
		for doc := range scores {
			scores[doc] *= norm
		}
	}
}

// QueryWeight is the unnormalised query-side weight of a term seen cnt times.
func QueryWeight(query ranking.Scheme, cnt int, idf float64) float64 {
	w := query.TermWeight(cnt)
	if query.UsesIDF() {
		w *= idf
	}
	return w
}
