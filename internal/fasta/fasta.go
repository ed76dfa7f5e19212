// Package fasta parses and validates FASTA formatted query input.
// The search pipeline only accepts single-record queries, so the parser is
// deliberately small and strict.
package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is returned when the input cannot be parsed as FASTA at all:
// no '>' header line, or sequence data appearing before the first header.
var ErrMalformed = errors.New("malformed FASTA input")

// RecordCountError is returned when the input parses but does not contain
// exactly one record. The count is part of the user-visible message.
type RecordCountError struct {
	Count int
}

func (e *RecordCountError) Error() string {
	return fmt.Sprintf("More than one record in the fasta file! %d", e.Count)
}

// maxLineSize bounds a single input line; unwrapped sequences can be long.
const maxLineSize = 4 * 1024 * 1024

// ParseSingle parses r as FASTA and requires exactly one record.
// It returns the record's id (first whitespace-delimited token of the
// header) and its concatenated sequence.
func ParseSingle(r io.Reader) (string, string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		id      string
		seq     strings.Builder
		records int
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			records++
			if records == 1 {
				fields := strings.Fields(line[1:])
				if len(fields) > 0 {
					id = fields[0]
				}
			}
			continue
		}
		if records == 0 {
			return "", "", ErrMalformed
		}
		if records == 1 {
			seq.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("fasta: read input: %w", err)
	}

	if records == 0 {
		return "", "", ErrMalformed
	}
	if records != 1 {
		return "", "", &RecordCountError{Count: records}
	}
	return id, seq.String(), nil
}
