package trie

import (
	"fmt"
	"io"
)

// Write serializes t to enc in pre-order: each node, then its children
// (recursively), then its next sibling. Weight is the size of the node's
// own subtree, so a reader skips the descendants of a record by advancing
// Weight-1 records.
func Write(t *Trie, enc Encoder) error {
	weights := t.weights()
	var emit func(id int32, depth int) error
	emit = func(id int32, depth int) error {
		for c := t.nodes[id].child; c != none; c = t.nodes[c].sibling {
			n := &t.nodes[c]
			rec := SerializedNode{
				Value:      n.value,
				HasSibling: n.sibling != none,
				HasChild:   n.child != none,
				EndOfWord:  n.eow,
				Depth:      depth,
				Weight:     weights[c],
				Postings:   n.block,
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
			if err := emit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := emit(root, 0); err != nil {
		return fmt.Errorf("serializing trie: %w", err)
	}
	return enc.Flush()
}

// WriteBinary serializes t in the fixed-width binary encoding.
func WriteBinary(t *Trie, w io.Writer) error {
	return Write(t, NewBinaryEncoder(w, t.Len()))
}

// WriteText serializes t in the line encoding.
func WriteText(t *Trie, w io.Writer) error {
	return Write(t, NewTextEncoder(w))
}

// weights returns, per arena slot, one plus the number of descendants.
func (t *Trie) weights() []int {
	weights := make([]int, len(t.nodes))
	var subtree func(id int32) int
	subtree = func(id int32) int {
		w := 1
		for c := t.nodes[id].child; c != none; c = t.nodes[c].sibling {
			w += subtree(c)
		}
		weights[id] = w
		return w
	}
	subtree(root)
	return weights
}
