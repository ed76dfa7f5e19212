package fasta_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blastxplorer/blastxplorer/internal/fasta"
)

func TestParseSingle_Valid(t *testing.T) {
	in := ">NP_001 hemoglobin subunit beta\nMVHLTPEEK\nSAVTALWGKV\n"
	id, seq, err := fasta.ParseSingle(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "NP_001", id)
	assert.Equal(t, "MVHLTPEEKSAVTALWGKV", seq)
}

func TestParseSingle_IDIsFirstHeaderToken(t *testing.T) {
	in := ">sp|P69905|HBA_HUMAN Hemoglobin subunit alpha\nMVLSPADKTN\n"
	id, _, err := fasta.ParseSingle(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "sp|P69905|HBA_HUMAN", id)
}

func TestParseSingle_CRLFAndBlankLines(t *testing.T) {
	in := ">q1 test\r\n\r\nACGT\r\nTTGG\r\n\r\n"
	id, seq, err := fasta.ParseSingle(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "q1", id)
	assert.Equal(t, "ACGTTTGG", seq)
}

func TestParseSingle_MultipleRecords(t *testing.T) {
	in := ">a\nACGT\n>b\nTTTT\n>c\nGGGG\n"
	_, _, err := fasta.ParseSingle(strings.NewReader(in))
	require.Error(t, err)

	var rcErr *fasta.RecordCountError
	require.True(t, errors.As(err, &rcErr))
	assert.Equal(t, 3, rcErr.Count)
	assert.Contains(t, err.Error(), "3")
}

func TestParseSingle_TwoRecords(t *testing.T) {
	in := ">a\nACGT\n>b\nTTTT\n"
	_, _, err := fasta.ParseSingle(strings.NewReader(in))

	var rcErr *fasta.RecordCountError
	require.True(t, errors.As(err, &rcErr))
	assert.Equal(t, 2, rcErr.Count)
}

func TestParseSingle_NoHeader(t *testing.T) {
	_, _, err := fasta.ParseSingle(strings.NewReader("ACGTACGT\n"))
	assert.ErrorIs(t, err, fasta.ErrMalformed)
}

func TestParseSingle_Empty(t *testing.T) {
	_, _, err := fasta.ParseSingle(strings.NewReader(""))
	assert.ErrorIs(t, err, fasta.ErrMalformed)
}

func TestParseSingle_DataBeforeHeader(t *testing.T) {
	_, _, err := fasta.ParseSingle(strings.NewReader("ACGT\n>late header\nACGT\n"))
	assert.ErrorIs(t, err, fasta.ErrMalformed)
}

func TestParseSingle_HeaderOnly(t *testing.T) {
	id, seq, err := fasta.ParseSingle(strings.NewReader(">lonely\n"))
	require.NoError(t, err)
	assert.Equal(t, "lonely", id)
	assert.Equal(t, "", seq)
}
