package phylo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNotEnoughSequences is returned when fewer than two sequences are
// available, which cannot form a tree.
var ErrNotEnoughSequences = errors.New("not enough sequences to build a tree")

// Build computes a neighbor-joining tree over the given sequences and
// returns it serialized as newick. names and seqs are parallel slices;
// the sequences are expected to be gap-padded to a common length.
func Build(names []string, seqs []string) (string, error) {
	if len(names) != len(seqs) {
		return "", fmt.Errorf("phylo: %d names for %d sequences", len(names), len(seqs))
	}
	if len(names) < 2 {
		return "", ErrNotEnoughSequences
	}
	return neighborJoining(names, distanceMatrix(seqs)), nil
}

// PDistance is the fraction of comparable positions (positions where not
// both sequences carry a gap) at which the two sequences disagree. A gap
// aligned against a residue counts as a mismatch. Pairs with no comparable
// positions are maximally distant.
func PDistance(a, b string) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	comparable, mismatches := 0, 0
	for i := 0; i < n; i++ {
		if a[i] == '-' && b[i] == '-' {
			continue
		}
		comparable++
		if a[i] != b[i] {
			mismatches++
		}
	}
	if comparable == 0 {
		return 1
	}
	return float64(mismatches) / float64(comparable)
}

func distanceMatrix(seqs []string) [][]float64 {
	n := len(seqs)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist := PDistance(seqs[i], seqs[j])
			d[i][j] = dist
			d[j][i] = dist
		}
	}
	return d
}

// neighborJoining runs the Saitou-Nei agglomeration: repeatedly join the
// pair minimizing the Q criterion until two nodes remain, then join those.
// Nodes carry their partial newick representation as they merge.
func neighborJoining(names []string, d [][]float64) string {
	nodes := make([]string, len(names))
	copy(nodes, names)

	for len(nodes) > 2 {
		n := len(nodes)

		r := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				r[i] += d[i][j]
			}
		}

		bi, bj := 0, 1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				q := float64(n-2)*d[i][j] - r[i] - r[j]
				if q < best {
					best, bi, bj = q, i, j
				}
			}
		}

		li := d[bi][bj]/2 + (r[bi]-r[bj])/(2*float64(n-2))
		lj := d[bi][bj] - li
		joined := fmt.Sprintf("(%s:%s,%s:%s)", nodes[bi], branch(li), nodes[bj], branch(lj))

		survivors := make([]int, 0, n-2)
		for k := 0; k < n; k++ {
			if k != bi && k != bj {
				survivors = append(survivors, k)
			}
		}

		m := n - 1
		nd := make([][]float64, m)
		for i := range nd {
			nd[i] = make([]float64, m)
		}
		next := make([]string, 0, m)
		for a, ka := range survivors {
			next = append(next, nodes[ka])
			for b, kb := range survivors {
				nd[a][b] = d[ka][kb]
			}
			du := (d[bi][ka] + d[bj][ka] - d[bi][bj]) / 2
			nd[a][m-1] = du
			nd[m-1][a] = du
		}
		next = append(next, joined)

		nodes, d = next, nd
	}

	half := d[0][1] / 2
	return fmt.Sprintf("(%s:%s,%s:%s);", nodes[0], branch(half), nodes[1], branch(half))
}

// branch formats a branch length, clamping the small negative values
// neighbor joining can produce to zero.
func branch(l float64) string {
	if l < 0 {
		l = 0
	}
	return strconv.FormatFloat(l, 'f', 5, 64)
}
