// Package blastxml decodes BLAST XML (outfmt 5) result streams.
//
// Result documents can carry hundreds of hits per query, so records are
// streamed one <Iteration> at a time instead of decoding the whole document
// at once.
package blastxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// HSP is one high-scoring pair of a hit.
type HSP struct {
	Expect     float64 `xml:"Hsp_evalue"`
	QueryFrom  int     `xml:"Hsp_query-from"`
	AlignLen   int     `xml:"Hsp_align-len"`
	QuerySeq   string  `xml:"Hsp_qseq"`
	SubjectSeq string  `xml:"Hsp_hseq"`
}

// Hit is one aligned subject with its high-scoring pairs.
type Hit struct {
	ID   string `xml:"Hit_id"`
	Def  string `xml:"Hit_def"`
	HSPs []HSP  `xml:"Hit_hsps>Hsp"`
}

// Title reproduces the full defline the hit was reported under, the form
// the label normalizer expects.
func (h Hit) Title() string {
	switch {
	case h.ID == "":
		return h.Def
	case h.Def == "":
		return h.ID
	}
	return h.ID + " " + h.Def
}

// Record is one query iteration of a result stream.
type Record struct {
	QueryID  string `xml:"Iteration_query-ID"`
	QueryDef string `xml:"Iteration_query-def"`
	QueryLen int    `xml:"Iteration_query-len"`
	Hits     []Hit  `xml:"Iteration_hits>Hit"`
}

// Reader streams Records off a BLAST XML document.
type Reader struct {
	dec *xml.Decoder
}

// NewReader wraps r, which must carry a BLAST XML document.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// Next returns the next record, or io.EOF once the stream is exhausted.
func (r *Reader) Next() (*Record, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("blastxml: read token: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Iteration" {
			continue
		}

		var rec Record
		if err := r.dec.DecodeElement(&rec, &se); err != nil {
			return nil, fmt.Errorf("blastxml: decode iteration: %w", err)
		}
		return &rec, nil
	}
}
