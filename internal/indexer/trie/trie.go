// Package trie implements the character trie that maps indexed words to
// their posting blocks.
//
// The build structure is a left-child/right-sibling tree kept in an arena:
// nodes reference each other by slot index, siblings are ordered by
// character, and slot 0 is a sentinel root without a character. A finished
// trie is written as a pre-order stream of fixed-schema records (see
// SerializedNode) in either a binary or a text encoding, and read back by
// one of three interchangeable Readers.
package trie

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
)

const (
	none int32 = -1
	root int32 = 0
)

type node struct {
	value   rune
	eow     bool
	child   int32
	sibling int32
	block   postings.Block
	pending []postings.DocumentPosting
}

// Trie is the in-memory build structure for one field of one index
// generation. It is not safe for concurrent mutation; once built it may be
// read concurrently through Reader.
type Trie struct {
	nodes []node
	words int
}

// Word is a word-terminating trie node resolved by a Reader.
type Word struct {
	Value    string         `json:"value"`
	Postings postings.Block `json:"postings"`
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{nodes: []node{{child: none, sibling: none}}}
}

// Insert adds term, creating any missing nodes on its path and marking the
// last one as the end of a word. Inserting an existing term only attaches
// the given postings to its node. Empty terms are ignored.
func (t *Trie) Insert(term string, ps ...postings.DocumentPosting) {
	if term == "" {
		return
	}
	cur := root
	for _, r := range term {
		cur = t.childFor(cur, r)
	}
	n := &t.nodes[cur]
	if !n.eow {
		n.eow = true
		t.words++
	}
	n.pending = append(n.pending, ps...)
}

// childFor returns the child of parent holding r, inserting it before the
// first greater sibling (or at the tail) when missing.
func (t *Trie) childFor(parent int32, r rune) int32 {
	prev := none
	cur := t.nodes[parent].child
	for cur != none && t.nodes[cur].value < r {
		prev = cur
		cur = t.nodes[cur].sibling
	}
	if cur != none && t.nodes[cur].value == r {
		return cur
	}
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{value: r, child: none, sibling: cur})
	if prev == none {
		t.nodes[parent].child = id
	} else {
		t.nodes[prev].sibling = id
	}
	return id
}

// find walks term from the root and returns the node it ends on, or none.
func (t *Trie) find(term string) int32 {
	cur := root
	for _, r := range term {
		c := t.nodes[cur].child
		for c != none && t.nodes[c].value < r {
			c = t.nodes[c].sibling
		}
		if c == none || t.nodes[c].value != r {
			return none
		}
		cur = c
	}
	return cur
}

// Contains reports whether term was inserted.
func (t *Trie) Contains(term string) bool {
	if term == "" {
		return false
	}
	id := t.find(term)
	return id != none && t.nodes[id].eow
}

// Len returns the number of character nodes, excluding the root.
func (t *Trie) Len() int {
	return len(t.nodes) - 1
}

// Words returns the number of distinct words inserted.
func (t *Trie) Words() int {
	return t.words
}

// Pending returns the postings accumulated under term, normalized into a
// sorted list. It returns nil for unknown terms.
func (t *Trie) Pending(term string) postings.PostingList {
	id := t.find(term)
	if term == "" || id == none {
		return nil
	}
	return postings.Normalize(t.nodes[id].pending)
}

// AttachPostings writes the accumulated postings of every word node to w in
// pre-order and records the resulting block on the node.
func (t *Trie) AttachPostings(w *postings.Writer) error {
	var walk func(id int32) error
	walk = func(id int32) error {
		for c := t.nodes[id].child; c != none; c = t.nodes[c].sibling {
			n := &t.nodes[c]
			if len(n.pending) > 0 {
				block, err := w.Write(postings.Normalize(n.pending))
				if err != nil {
					return fmt.Errorf("writing postings for node %d: %w", c, err)
				}
				n.block = block
				n.pending = nil
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

// Reader returns a Reader over the live tree.
func (t *Trie) Reader() Reader {
	return &memoryReader{t: t}
}
