package ranker

import "container/heap"

// ScoredDoc is one ranked document of a generation.
type ScoredDoc struct {
	DocumentID uint64  `json:"document_id"`
	Score      float64 `json:"score"`
	Generation string  `json:"generation"`
}

// TopK returns the limit best documents, highest score first; ties go to
// the lower document id.
func TopK(docs []ScoredDoc, limit int) []ScoredDoc {
	if limit <= 0 {
		limit = 10
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, doc := range docs {
		heap.Push(h, doc)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	if h[i].DocumentID != h[j].DocumentID {
		return h[i].DocumentID > h[j].DocumentID
	}
	return h[i].Generation > h[j].Generation
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
