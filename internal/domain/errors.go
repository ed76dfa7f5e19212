package domain

import "errors"

var (
	// ErrRunNotFound is returned when a run cannot be found by ID.
	ErrRunNotFound = errors.New("blast run not found")

	// ErrBadFastaFile is the user-visible message stored when the query
	// written to local storage fails re-validation before upload.
	ErrBadFastaFile = errors.New("Bad input FASTA file format")
)

// UnsupportedProgramError is returned when a program has no job-type mapping
// on the delegated backend. Its text is stored verbatim on the run.
type UnsupportedProgramError struct {
	Program string
}

func (e *UnsupportedProgramError) Error() string {
	return "Wrong blast program " + e.Program
}
