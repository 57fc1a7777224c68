package gnn

import "fmt"

// Adjacency stores incoming neighbourhoods in CSR form, indexed by
// destination node. Two variants are kept because the layer types treat
// self-loops differently:
//
//   - mean: every edge (multi-edges and existing self-loops included) plus one
//     added self-loop per node
//   - attn: existing self-loops removed, then exactly one self-loop per node
//
// Added self-loops come after the real edges of a node.
type Adjacency struct {
	N int

	meanPtr []int
	meanSrc []int
	attnPtr []int
	attnSrc []int
}

// NewAdjacency validates the edge list against n nodes and builds both
// neighbourhood variants.
func NewAdjacency(n int, edges [][2]int) (*Adjacency, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: adjacency needs at least one node", ErrShapeMismatch)
	}
	for k, e := range edges {
		if e[0] < 0 || e[0] >= n || e[1] < 0 || e[1] >= n {
			return nil, fmt.Errorf("%w: edge %d (%d->%d) out of range for %d nodes", ErrShapeMismatch, k, e[0], e[1], n)
		}
	}

	a := &Adjacency{N: n}
	a.meanPtr, a.meanSrc = buildCSR(n, edges, false)
	a.attnPtr, a.attnSrc = buildCSR(n, edges, true)
	return a, nil
}

func buildCSR(n int, edges [][2]int, dropLoops bool) ([]int, []int) {
	counts := make([]int, n)
	for _, e := range edges {
		if dropLoops && e[0] == e[1] {
			continue
		}
		counts[e[1]]++
	}

	ptr := make([]int, n+1)
	for i := 0; i < n; i++ {
		ptr[i+1] = ptr[i] + counts[i] + 1
	}

	src := make([]int, ptr[n])
	fill := make([]int, n)
	copy(fill, ptr[:n])
	for _, e := range edges {
		if dropLoops && e[0] == e[1] {
			continue
		}
		src[fill[e[1]]] = e[0]
		fill[e[1]]++
	}
	for i := 0; i < n; i++ {
		src[fill[i]] = i
	}
	return ptr, src
}

// MeanDegree returns the neighbourhood size of node i in the mean variant.
func (a *Adjacency) MeanDegree(i int) int { return a.meanPtr[i+1] - a.meanPtr[i] }

// AttnDegree returns the neighbourhood size of node i in the attention variant.
func (a *Adjacency) AttnDegree(i int) int { return a.attnPtr[i+1] - a.attnPtr[i] }
