package phylo_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blastxplorer/blastxplorer/internal/phylo"
)

func TestPDistance(t *testing.T) {
	assert.Equal(t, 0.0, phylo.PDistance("ACGT", "ACGT"))
	assert.Equal(t, 0.25, phylo.PDistance("ACGT", "AGGT"))
	assert.Equal(t, 1.0, phylo.PDistance("ACGT", "TGCA"))
}

func TestPDistance_BothGapPositionsSkipped(t *testing.T) {
	// Middle position is a gap in both sequences: 3 comparable, 0 mismatches.
	assert.Equal(t, 0.0, phylo.PDistance("A-CG", "A-CG"))
	// Gap against a residue counts as a mismatch: 2 comparable, 1 mismatch.
	assert.Equal(t, 0.5, phylo.PDistance("A-", "AA"))
}

func TestPDistance_NoComparablePositions(t *testing.T) {
	assert.Equal(t, 1.0, phylo.PDistance("--", "--"))
}

func TestBuild_TwoSequences(t *testing.T) {
	tree, err := phylo.Build([]string{"A", "B"}, []string{"ACGT", "AGGT"})
	require.NoError(t, err)
	assert.Equal(t, "(A:0.12500,B:0.12500);", tree)
}

func TestBuild_TwoIdenticalSequences(t *testing.T) {
	tree, err := phylo.Build([]string{"A", "B"}, []string{"ACGT", "ACGT"})
	require.NoError(t, err)
	assert.Equal(t, "(A:0.00000,B:0.00000);", tree)
}

func TestBuild_ThreeSequences(t *testing.T) {
	names := []string{"A", "B", "C"}
	seqs := []string{
		"AAAAAAAAAA",
		"CCAAAAAAAA", // 0.2 from A
		"ACGGGAAAAA", // 0.4 from A, 0.4 from B
	}
	tree, err := phylo.Build(names, seqs)
	require.NoError(t, err)
	assert.Equal(t, "(C:0.15000,(A:0.10000,B:0.10000):0.15000);", tree)
}

func TestBuild_FourSequencesStructure(t *testing.T) {
	names := []string{"query", "hit_one", "hit_two", "hit_three"}
	seqs := []string{
		"AAAAAAAAAA",
		"AAAAAAAACC",
		"AAGGGGAAAA",
		"TTGGGGAACC",
	}
	tree, err := phylo.Build(names, seqs)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(tree, ";"))
	assert.Equal(t, strings.Count(tree, "("), strings.Count(tree, ")"))
	for _, name := range names {
		assert.Contains(t, tree, name)
	}

	// Deterministic: same input yields the same tree.
	again, err := phylo.Build(names, seqs)
	require.NoError(t, err)
	assert.Equal(t, tree, again)
}

func TestBuild_NotEnoughSequences(t *testing.T) {
	_, err := phylo.Build([]string{"only"}, []string{"ACGT"})
	assert.ErrorIs(t, err, phylo.ErrNotEnoughSequences)

	_, err = phylo.Build(nil, nil)
	assert.ErrorIs(t, err, phylo.ErrNotEnoughSequences)
}

func TestBuild_MismatchedInput(t *testing.T) {
	_, err := phylo.Build([]string{"a", "b"}, []string{"ACGT"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, phylo.ErrNotEnoughSequences)
}
