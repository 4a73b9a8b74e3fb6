package postings

import "sort"

// JoinAnd keeps the documents present in both lists, combining their
// frequencies. Both inputs must be sorted by document id.
func JoinAnd(a, b PostingList) PostingList {
	mustBeSorted(a)
	mustBeSorted(b)
	result := make(PostingList, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocumentID < b[j].DocumentID:
			i++
		case a[i].DocumentID > b[j].DocumentID:
			j++
		default:
			result = append(result, Combine(a[i], b[j]))
			i++
			j++
		}
	}
	return result
}

// JoinOr keeps every document of either list, combining the frequencies of
// documents present in both. Both inputs must be sorted by document id.
func JoinOr(a, b PostingList) PostingList {
	mustBeSorted(a)
	mustBeSorted(b)
	result := make(PostingList, 0, max(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocumentID < b[j].DocumentID:
			result = append(result, a[i])
			i++
		case a[i].DocumentID > b[j].DocumentID:
			result = append(result, b[j])
			j++
		default:
			result = append(result, Combine(a[i], b[j]))
			i++
			j++
		}
	}
	result = append(result, a[i:]...)
	result = append(result, b[j:]...)
	return result
}

// JoinAllOr folds lists left to right with JoinOr.
func JoinAllOr(lists []PostingList) PostingList {
	var acc PostingList
	for _, l := range lists {
		acc = JoinOr(acc, l)
	}
	return acc
}

// Normalize sorts postings by document id and combines duplicates, turning
// an accumulation of raw postings into a valid sorted list.
func Normalize(raw []DocumentPosting) PostingList {
	sorted := make(PostingList, len(raw))
	copy(sorted, raw)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DocumentID < sorted[j].DocumentID
	})
	result := sorted[:0]
	for _, p := range sorted {
		if n := len(result); n > 0 && result[n-1].DocumentID == p.DocumentID {
			result[n-1] = Combine(result[n-1], p)
			continue
		}
		result = append(result, p)
	}
	return result
}
