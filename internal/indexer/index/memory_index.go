package index

import (
	"sort"
)

// MemoryIndex is the block builder's term -> postings arena. It is owned by a
// single builder and never shared.
type MemoryIndex struct {
	index    map[string][]*Posting
	postings int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string][]*Posting),
	}
}

// Add records one occurrence of term in docID. Documents are added one at a
// time, so a term's current posting for docID is always the last one.
func (m *MemoryIndex) Add(term string, docID string, position int, positional bool) *Posting {
	list := m.index[term]
	var p *Posting
	if n := len(list); n > 0 && list[n-1].DocID == docID {
		p = list[n-1]
	} else {
		p = &Posting{DocID: docID}
		m.index[term] = append(list, p)
		m.postings++
	}
	p.TermFreq++
	if positional {
		p.Positions = append(p.Positions, position)
	}
	return p
}

// Lookup returns the posting of docID for term if docID is the most recently
// added document for that term.
func (m *MemoryIndex) Lookup(term string, docID string) (*Posting, bool) {
	list := m.index[term]
	if n := len(list); n > 0 && list[n-1].DocID == docID {
		return list[n-1], true
	}
	return nil, false
}

// Postings returns the number of (term, document) postings held.
func (m *MemoryIndex) Postings() int {
	return m.postings
}

func (m *MemoryIndex) Terms() int {
	return len(m.index)
}

// Snapshot returns the entries in ascending term order. Postings keep their
// insertion (document) order.
func (m *MemoryIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(m.index))
	for term, list := range m.index {
		postings := make(PostingList, len(list))
		for i, p := range list {
			postings[i] = *p
		}
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (m *MemoryIndex) Reset() {
	m.index = make(map[string][]*Posting)
	m.postings = 0
}
