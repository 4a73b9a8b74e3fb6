package trie

// firstRow is the edit distance row of the empty candidate against query.
func firstRow(query []rune, dst []int) []int {
	dst = dst[:0]
	for i := 0; i <= len(query); i++ {
		dst = append(dst, i)
	}
	return dst
}

// nextRow extends the candidate behind prev by c. dst[i] is the edit
// distance between query[:i] and the extended candidate.
func nextRow(prev []int, query []rune, c rune, dst []int) []int {
	dst = append(dst[:0], prev[0]+1)
	for i, q := range query {
		cost := 1
		if q == c {
			cost = 0
		}
		dst = append(dst, min(dst[i]+1, prev[i+1]+1, prev[i]+cost))
	}
	return dst
}

// rowMin is a lower bound on the distance between query and any extension
// of the candidate behind row.
func rowMin(row []int) int {
	m := row[0]
	for _, v := range row[1:] {
		m = min(m, v)
	}
	return m
}

// Distance returns the Levenshtein distance between a and b.
func Distance(a, b string) int {
	query := []rune(a)
	row := firstRow(query, nil)
	var next []int
	for _, c := range b {
		next = nextRow(row, query, c, next)
		row, next = next, row
	}
	return row[len(query)]
}

// rows keeps one distance row per depth of the current trie path.
type rows struct {
	query []rune
	byDep [][]int
}

func newRows(query []rune) *rows {
	r := &rows{query: query}
	r.byDep = append(r.byDep, firstRow(query, nil))
	return r
}

// extend computes the row for a node at depth from the row of its parent.
func (r *rows) extend(depth int, c rune) []int {
	for len(r.byDep) < depth+2 {
		r.byDep = append(r.byDep, make([]int, 0, len(r.query)+1))
	}
	r.byDep[depth+1] = nextRow(r.byDep[depth], r.query, c, r.byDep[depth+1])
	return r.byDep[depth+1]
}
