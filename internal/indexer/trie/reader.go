package trie

// Reader resolves words against one trie. The in-memory, binary, and text
// implementations return identical results, in pre-order, for the same
// data. A Reader instance serves one traversal at a time; open one per
// concurrent query.
type Reader interface {
	// HasWord returns the word node for term, if term was inserted.
	HasWord(term string) (Word, bool, error)
	// StartsWith returns every word beginning with prefix, prefix included.
	StartsWith(prefix string) ([]Word, error)
	// Near returns every word within maxEdits Levenshtein edits of word.
	Near(word string, maxEdits int) ([]Word, error)
	Close() error
}

// Empty is a Reader over a trie with no words.
var Empty Reader = emptyReader{}

type emptyReader struct{}

func (emptyReader) HasWord(string) (Word, bool, error) { return Word{}, false, nil }
func (emptyReader) StartsWith(string) ([]Word, error)  { return nil, nil }
func (emptyReader) Near(string, int) ([]Word, error)   { return nil, nil }
func (emptyReader) Close() error                       { return nil }

type memoryReader struct {
	t *Trie
}

func (m *memoryReader) HasWord(term string) (Word, bool, error) {
	if term == "" {
		return Word{}, false, nil
	}
	id := m.t.find(term)
	if id == none || !m.t.nodes[id].eow {
		return Word{}, false, nil
	}
	return Word{Value: term, Postings: m.t.nodes[id].block}, true, nil
}

func (m *memoryReader) StartsWith(prefix string) ([]Word, error) {
	id := m.t.find(prefix)
	if id == none {
		return nil, nil
	}
	var words []Word
	if id != root && m.t.nodes[id].eow {
		words = append(words, Word{Value: prefix, Postings: m.t.nodes[id].block})
	}
	path := []rune(prefix)
	var walk func(id int32)
	walk = func(id int32) {
		for c := m.t.nodes[id].child; c != none; c = m.t.nodes[c].sibling {
			n := &m.t.nodes[c]
			path = append(path, n.value)
			if n.eow {
				words = append(words, Word{Value: string(path), Postings: n.block})
			}
			walk(c)
			path = path[:len(path)-1]
		}
	}
	walk(id)
	return words, nil
}

func (m *memoryReader) Near(word string, maxEdits int) ([]Word, error) {
	if maxEdits < 0 {
		return nil, nil
	}
	query := []rune(word)
	dist := newRows(query)
	var words []Word
	var path []rune
	var walk func(id int32, depth int)
	walk = func(id int32, depth int) {
		for c := m.t.nodes[id].child; c != none; c = m.t.nodes[c].sibling {
			n := &m.t.nodes[c]
			row := dist.extend(depth, n.value)
			path = append(path[:depth], n.value)
			if n.eow && row[len(query)] <= maxEdits {
				words = append(words, Word{Value: string(path), Postings: n.block})
			}
			if rowMin(row) <= maxEdits {
				walk(c, depth+1)
			}
		}
	}
	walk(root, 0)
	return words, nil
}

func (m *memoryReader) Close() error {
	return nil
}
