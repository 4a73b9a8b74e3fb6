// Package postings holds the posting-list model of the index: document
// postings, the blocks that locate them in the postings file, and the
// AND/OR merge-joins used to fold resolved terms into one list per clause.
package postings

import "fmt"

// DocumentPosting records that a term occurs TermFrequency times in a document.
type DocumentPosting struct {
	DocumentID    uint64 `json:"document_id"`
	TermFrequency int    `json:"term_frequency"`
}

// PostingList is a list of postings in ascending document id order.
type PostingList []DocumentPosting

// Block locates one length-prefixed posting list in the postings file.
type Block struct {
	Offset int64  `json:"offset"`
	Length uint32 `json:"length"`
}

// IsZero reports whether b points at nothing.
func (b Block) IsZero() bool {
	return b.Length == 0
}

func (b Block) String() string {
	return fmt.Sprintf("%d+%d", b.Offset, b.Length)
}

// Combine merges two postings of the same document by summing frequencies.
func Combine(a, b DocumentPosting) DocumentPosting {
	if a.DocumentID != b.DocumentID {
		panic(fmt.Sprintf("postings: combining documents %d and %d", a.DocumentID, b.DocumentID))
	}
	return DocumentPosting{
		DocumentID:    a.DocumentID,
		TermFrequency: a.TermFrequency + b.TermFrequency,
	}
}

// DocumentIDs returns the document ids of the list in order.
func (l PostingList) DocumentIDs() []uint64 {
	ids := make([]uint64, len(l))
	for i, p := range l {
		ids[i] = p.DocumentID
	}
	return ids
}

// mustBeSorted panics when l is not strictly ascending by document id or
// carries a frequency below one. Both indicate a corrupt index.
func mustBeSorted(l PostingList) {
	for i, p := range l {
		if p.TermFrequency < 1 {
			panic(fmt.Sprintf("postings: document %d has term frequency %d", p.DocumentID, p.TermFrequency))
		}
		if i > 0 && l[i-1].DocumentID >= p.DocumentID {
			panic(fmt.Sprintf("postings: list not sorted at %d (%d >= %d)", i, l[i-1].DocumentID, p.DocumentID))
		}
	}
}
