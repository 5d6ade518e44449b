// Package evaluation replays query files against an index and scores the
// rankings against graded relevance judgments.
package evaluation

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/ranker"
)

// Cutoffs are the ranking depths every query is evaluated at.
var Cutoffs = []int{10, 20, 50}

// Judgment is the graded relevance of one document for a query.
type Judgment struct {
	DocID     string
	Relevance int
}

// CutoffMetrics holds the retrieval quality of one ranking truncated at K.
type CutoffMetrics struct {
	K                int
	Precision        float64
	Recall           float64
	F1               float64
	AveragePrecision float64
	NDCG             float64
}

// Evaluate scores predicted at every cutoff. Average precision is the mean of
// the running precision taken at each retrieved rank, and NDCG uses graded
// relevance with a log2 rank discount.
func Evaluate(judged []Judgment, predicted []ranker.ScoredDoc) []CutoffMetrics {
	relevance := make(map[string]int, len(judged))
	for _, j := range judged {
		relevance[j.DocID] = j.Relevance
	}
	ideal := make([]int, len(judged))
	for i, j := range judged {
		ideal[i] = j.Relevance
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))

	out := make([]CutoffMetrics, 0, len(Cutoffs))
	for _, k := range Cutoffs {
		m := CutoffMetrics{K: k}
		top := predicted
		if len(top) > k {
			top = top[:k]
		}
		tp := 0
		var precisionSum, dcg float64
		for i, doc := range top {
			if rel, ok := relevance[doc.DocID]; ok {
				tp++
				dcg += float64(rel) / math.Log2(float64(i+2))
			}
			precisionSum += float64(tp) / float64(i+1)
		}
		var idcg float64
		for i := 0; i < len(ideal) && i < k; i++ {
			idcg += float64(ideal[i]) / math.Log2(float64(i+2))
		}

		m.Precision = float64(tp) / float64(k)
		if len(judged) > 0 {
			m.Recall = float64(tp) / float64(len(judged))
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		if len(top) > 0 {
			m.AveragePrecision = precisionSum / float64(len(top))
		}
		if idcg > 0 {
			m.NDCG = dcg / idcg
		}
		out = append(out, m)
	}
	return out
}

// Average is the per-cutoff mean over several queries' metrics.
func Average(all [][]CutoffMetrics) []CutoffMetrics {
	if len(all) == 0 {
		return nil
	}
	avg := make([]CutoffMetrics, len(all[0]))
	for i := range avg {
		avg[i].K = all[0][i].K
	}
	for _, metrics := range all {
		for i, m := range metrics {
			avg[i].Precision += m.Precision
			avg[i].Recall += m.Recall
			avg[i].F1 += m.F1
			avg[i].AveragePrecision += m.AveragePrecision
			avg[i].NDCG += m.NDCG
		}
	}
	n := float64(len(all))
	for i := range avg {
		avg[i].Precision /= n
		avg[i].Recall /= n
		avg[i].F1 /= n
		avg[i].AveragePrecision /= n
		avg[i].NDCG /= n
	}
	return avg
}
