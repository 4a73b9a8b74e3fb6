package collector

// Reduce folds per-clause score lists left to right in clause order. The
// first clause seeds the accumulator (a leading NOT seeds it empty); each
// later clause intersects (AND), unions (OR), or subtracts (NOT). Scores of
// documents kept by AND and OR are summed. Every list must be sorted by
// document id; the result is too.
func Reduce(contexts []*QueryContext) []DocumentScore {
	if len(contexts) == 0 {
		return nil
	}
	var acc []DocumentScore
	if contexts[0].Operator() != OpNot {
		acc = append(acc, contexts[0].Scores...)
	}
	for _, qc := range contexts[1:] {
		switch qc.Operator() {
		case OpAnd:
			acc = intersect(acc, qc.Scores)
		case OpNot:
			acc = subtract(acc, qc.Scores)
		default:
			acc = union(acc, qc.Scores)
		}
	}
	return acc
}

func intersect(a, b []DocumentScore) []DocumentScore {
	result := make([]DocumentScore, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocumentID < b[j].DocumentID:
			i++
		case a[i].DocumentID > b[j].DocumentID:
			j++
		default:
			d := a[i]
			d.Score += b[j].Score
			result = append(result, d)
			i++
			j++
		}
	}
	return result
}

func union(a, b []DocumentScore) []DocumentScore {
	result := make([]DocumentScore, 0, max(len(a), len(b)))
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
			d := a[i]
			d.Score += b[j].Score
			result = append(result, d)
			i++
			j++
		}
	}
	result = append(result, a[i:]...)
	return append(result, b[j:]...)
}

func subtract(a, b []DocumentScore) []DocumentScore {
	result := make([]DocumentScore, 0, len(a))
	j := 0
	for _, d := range a {
		for j < len(b) && b[j].DocumentID < d.DocumentID {
			j++
		}
		if j < len(b) && b[j].DocumentID == d.DocumentID {
			continue
		}
		result = append(result, d)
	}
	return result
}
