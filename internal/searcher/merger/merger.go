// Package merger selects the top-K documents of a score map.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/ranker"
)

// TopK returns the k best documents ordered by descending score, ties broken
// by ascending document id. k <= 0 returns every document.
func TopK(scores map[string]float64, k int) []ranker.ScoredDoc {
	if k <= 0 || k > len(scores) {
		k = len(scores)
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for doc, score := range scores {
		heap.Push(h, ranker.ScoredDoc{DocID: doc, Score: score})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap on rank: the root is the worst kept document.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
