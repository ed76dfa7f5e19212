// Package msa accumulates filtered BLAST hits into a query-anchored
// pseudo-alignment used for tree building.
package msa

import "bytes"

// Sequence is one named, gap-padded sequence of the collected set.
type Sequence struct {
	Name string
	Seq  string
}

// PseudoMSA collects hit fragments projected onto query coordinates. Every
// collected sequence has exactly the query's length; positions a hit does
// not cover stay '-'. Names are unique: adding a name twice replaces the
// earlier sequence but keeps its original position in iteration order.
type PseudoMSA struct {
	queryID  string
	querySeq string
	order    []string
	seqs     map[string][]byte
}

// New creates an empty collection anchored on the query sequence.
func New(queryID, querySeq string) *PseudoMSA {
	return &PseudoMSA{
		queryID:  queryID,
		querySeq: querySeq,
		seqs:     make(map[string][]byte),
	}
}

// AddHSP projects one high-scoring pair onto the query. queryFrom is the
// 1-based query position of the pair's first aligned column; alignedQuery
// and alignedSubject are the pair's aligned rows with '-' for gaps. Subject
// characters aligned against a query gap are dropped, so the projection
// never exceeds the query length.
func (m *PseudoMSA) AddHSP(name string, queryFrom int, alignedQuery, alignedSubject string) {
	if _, ok := m.seqs[name]; !ok {
		m.order = append(m.order, name)
	}

	buf := bytes.Repeat([]byte{'-'}, len(m.querySeq))
	pos := queryFrom - 1
	n := len(alignedQuery)
	if len(alignedSubject) < n {
		n = len(alignedSubject)
	}
	for i := 0; i < n && pos < len(buf); i++ {
		if alignedQuery[i] == '-' {
			continue
		}
		if pos >= 0 {
			buf[pos] = alignedSubject[i]
		}
		pos++
	}
	m.seqs[name] = buf
}

// Len returns the number of collected hits, excluding the query.
func (m *PseudoMSA) Len() int {
	return len(m.order)
}

// Sequences returns the collected hits in first-insertion order.
func (m *PseudoMSA) Sequences() []Sequence {
	out := make([]Sequence, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, Sequence{Name: name, Seq: string(m.seqs[name])})
	}
	return out
}

// AllSequences returns the query followed by the collected hits.
func (m *PseudoMSA) AllSequences() []Sequence {
	out := make([]Sequence, 0, len(m.order)+1)
	out = append(out, Sequence{Name: m.queryID, Seq: m.querySeq})
	return append(out, m.Sequences()...)
}

// Retain reports whether a high-scoring pair passes the run thresholds: its
// expectation value must be strictly below evalue, and its aligned length
// must cover at least the coverage fraction of the query. Equality keeps a
// hit on coverage but rejects it on evalue.
func Retain(expect float64, alignLen, queryLen int, evalue, coverage float64) bool {
	if queryLen <= 0 {
		return false
	}
	return expect < evalue && float64(alignLen)/float64(queryLen) >= coverage
}
