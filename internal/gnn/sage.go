package gnn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sageLayer is a GraphSAGE convolution with mean aggregation:
//
//	out_i = mean_{j in N(i)} x_j · Wl + bl + x_i · Wr
type sageLayer struct {
	name    string
	in, out int

	wl *mat.Dense // in x out
	bl *mat.Dense // 1 x out
	wr *mat.Dense // in x out
}

type sageCache struct {
	x   *mat.Dense
	agg *mat.Dense
}

func newSAGE(name string, in, out int, rng *rand.Rand) *sageLayer {
	bound := 1 / math.Sqrt(float64(in))
	return &sageLayer{
		name: name,
		in:   in,
		out:  out,
		wl:   uniform(rng, in, out, bound),
		bl:   uniform(rng, 1, out, bound),
		wr:   uniform(rng, in, out, bound),
	}
}

func (l *sageLayer) params() []Param {
	return []Param{
		{Name: l.name + ".lin_l.weight", Value: l.wl},
		{Name: l.name + ".lin_l.bias", Value: l.bl},
		{Name: l.name + ".lin_r.weight", Value: l.wr},
	}
}

func (l *sageLayer) forward(x *mat.Dense, adj *Adjacency) (*mat.Dense, *sageCache) {
	agg := meanAggregate(x, adj.meanPtr, adj.meanSrc)

	var out, root mat.Dense
	out.Mul(agg, l.wl)
	root.Mul(x, l.wr)
	out.Add(&out, &root)
	addBias(&out, l.bl)

	return &out, &sageCache{x: x, agg: agg}
}

// backward accumulates parameter gradients into g and returns the gradient
// with respect to the layer input when needInput is set.
func (l *sageLayer) backward(c *sageCache, adj *Adjacency, dOut *mat.Dense, g Gradients, needInput bool) *mat.Dense {
	var dWl, dWr mat.Dense
	dWl.Mul(c.agg.T(), dOut)
	dWr.Mul(c.x.T(), dOut)
	g[l.name+".lin_l.weight"] = &dWl
	g[l.name+".lin_l.bias"] = colSum(dOut)
	g[l.name+".lin_r.weight"] = &dWr

	if !needInput {
		return nil
	}

	var dx, dAgg mat.Dense
	dx.Mul(dOut, l.wr.T())
	dAgg.Mul(dOut, l.wl.T())

	// Scatter the aggregate gradient back to every neighbour.
	for i := 0; i < adj.N; i++ {
		lo, hi := adj.meanPtr[i], adj.meanPtr[i+1]
		scale := 1 / float64(hi-lo)
		dRow := dAgg.RawRowView(i)
		for _, j := range adj.meanSrc[lo:hi] {
			floats.AddScaled(dx.RawRowView(j), scale, dRow)
		}
	}
	return &dx
}

func meanAggregate(x *mat.Dense, ptr, src []int) *mat.Dense {
	n, f := x.Dims()
	agg := mat.NewDense(n, f, nil)
	for i := 0; i < n; i++ {
		lo, hi := ptr[i], ptr[i+1]
		if hi == lo {
			continue
		}
		row := agg.RawRowView(i)
		for _, j := range src[lo:hi] {
			floats.Add(row, x.RawRowView(j))
		}
		floats.Scale(1/float64(hi-lo), row)
	}
	return agg
}
