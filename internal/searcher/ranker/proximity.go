package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
)

const (
	BoostAdd      = "add"
	BoostMultiply = "multiply"
)

type ProximityOptions struct {
	// Window is the number of token positions a window spans.
	Window int
	// Mode is BoostAdd or BoostMultiply.
	Mode   string
	Weight float64
}

type occurrence struct {
	term string
	pos  int
}

// Boost re-ranks the documents already in scores by how closely and in what
// order the query terms occur in them. Documents without positions are left
// untouched. scores is updated in place.
func Boost(terms []string, postings map[string]*segment.TermPostings, scores map[string]float64, opts ProximityOptions) {
	if opts.Window <= 1 || len(terms) == 0 {
		return
	}
	distinct := len(Counts(terms))
	byDoc := make(map[string][]occurrence, len(scores))
	for term, tp := range postings {
		for _, p := range tp.Postings {
			if _, ok := scores[p.DocID]; !ok {
				continue
			}
			for _, pos := range p.Positions {
				byDoc[p.DocID] = append(byDoc[p.DocID], occurrence{term: term, pos: pos})
			}
		}
	}
	for doc, occ := range byDoc {
		sort.Slice(occ, func(i, j int) bool {
			if occ[i].pos != occ[j].pos {
				return occ[i].pos < occ[j].pos
			}
			return occ[i].term < occ[j].term
		})
		boost := documentBoost(terms, distinct, occ, opts.Window)
		switch opts.Mode {
		case BoostMultiply:
			scores[doc] *= 1 + opts.Weight*boost
		default:
			scores[doc] += opts.Weight * boost
		}
	}
}

// documentBoost slides a window starting at every occurrence. Windows holding
// a single occurrence score nothing. The sum is averaged over the occurrences.
func documentBoost(terms []string, distinct int, occ []occurrence, window int) float64 {
	if len(occ) == 0 {
		return 0
	}
	var total float64
	for i := range occ {
		end := i + 1
		for end < len(occ) && occ[end].pos-occ[i].pos < window {
			end++
		}
		if end-i < 2 {
			continue
		}
		seq := make([]string, 0, end-i)
		for _, o := range occ[i:end] {
			seq = append(seq, o.term)
		}
		total += windowScore(terms, distinct, seq)
	}
	return total / float64(len(occ))
}

// windowScore is (0.5·(coverage + similarity))², where coverage is the share
// of distinct query terms in the window and similarity is one minus the
// term-level edit distance over the combined sequence lengths.
func windowScore(terms []string, distinct int, seq []string) float64 {
	seen := make(map[string]struct{}, len(seq))
	for _, t := range seq {
		seen[t] = struct{}{}
	}
	coverage := float64(len(seen)) / float64(distinct)
	similarity := 1 - float64(Levenshtein(terms, seq))/float64(len(terms)+len(seq))
	s := 0.5 * (coverage + similarity)
	return s * s
}

// Levenshtein is the edit distance between two term sequences.
func Levenshtein(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
