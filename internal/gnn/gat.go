package gnn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// gatLayer is a multi-head graph attention convolution. For head k:
//
//	h      = x · W
//	e_ij   = leaky_relu(att_src_k · h_j + att_dst_k · h_i, 0.2)
//	alpha  = softmax_j(e_ij) over the incoming neighbourhood of i
//	out_ik = sum_j alpha_ij h_jk
//
// Heads are concatenated, or averaged when concat is false, then the bias is
// added.
type gatLayer struct {
	name           string
	in, out, heads int
	concat         bool

	w      *mat.Dense // in x heads*out
	attSrc *mat.Dense // heads x out
	attDst *mat.Dense // heads x out
	bias   *mat.Dense // 1 x width()
}

type gatCache struct {
	x     *mat.Dense
	h     *mat.Dense
	raw   []float64 // pre-activation scores, [edge*heads + head]
	alpha []float64 // attention weights, same layout
}

func newGAT(name string, in, out, heads int, concat bool, rng *rand.Rand) *gatLayer {
	l := &gatLayer{
		name:   name,
		in:     in,
		out:    out,
		heads:  heads,
		concat: concat,
		w:      glorot(rng, in, heads*out, in, heads*out),
		attSrc: glorot(rng, heads, out, heads, out),
		attDst: glorot(rng, heads, out, heads, out),
	}
	l.bias = zeros(1, l.width())
	return l
}

func (l *gatLayer) width() int {
	if l.concat {
		return l.heads * l.out
	}
	return l.out
}

func (l *gatLayer) params() []Param {
	return []Param{
		{Name: l.name + ".lin.weight", Value: l.w},
		{Name: l.name + ".att_src", Value: l.attSrc},
		{Name: l.name + ".att_dst", Value: l.attDst},
		{Name: l.name + ".bias", Value: l.bias},
	}
}

// headTarget returns the output slice head k writes into and its scale.
func (l *gatLayer) headTarget(row []float64, k int) ([]float64, float64) {
	if l.concat {
		return row[k*l.out : (k+1)*l.out], 1
	}
	return row[:l.out], 1 / float64(l.heads)
}

func (l *gatLayer) forward(x *mat.Dense, adj *Adjacency) (*mat.Dense, *gatCache) {
	H, C := l.heads, l.out
	n := adj.N

	var h mat.Dense
	h.Mul(x, l.w)

	sSrc := make([]float64, n*H)
	sDst := make([]float64, n*H)
	for v := 0; v < n; v++ {
		hv := h.RawRowView(v)
		for k := 0; k < H; k++ {
			seg := hv[k*C : (k+1)*C]
			sSrc[v*H+k] = floats.Dot(seg, l.attSrc.RawRowView(k))
			sDst[v*H+k] = floats.Dot(seg, l.attDst.RawRowView(k))
		}
	}

	E := len(adj.attnSrc)
	raw := make([]float64, E*H)
	alpha := make([]float64, E*H)
	out := mat.NewDense(n, l.width(), nil)

	for i := 0; i < n; i++ {
		lo, hi := adj.attnPtr[i], adj.attnPtr[i+1]
		outRow := out.RawRowView(i)
		for k := 0; k < H; k++ {
			maxScore := math.Inf(-1)
			for e := lo; e < hi; e++ {
				r := sSrc[adj.attnSrc[e]*H+k] + sDst[i*H+k]
				raw[e*H+k] = r
				s := leaky(r, AttentionSlope)
				alpha[e*H+k] = s
				if s > maxScore {
					maxScore = s
				}
			}
			sum := 0.0
			for e := lo; e < hi; e++ {
				a := math.Exp(alpha[e*H+k] - maxScore)
				alpha[e*H+k] = a
				sum += a
			}
			target, scale := l.headTarget(outRow, k)
			for e := lo; e < hi; e++ {
				alpha[e*H+k] /= sum + 1e-16
				hj := h.RawRowView(adj.attnSrc[e])[k*C : (k+1)*C]
				floats.AddScaled(target, scale*alpha[e*H+k], hj)
			}
		}
	}
	addBias(out, l.bias)

	return out, &gatCache{x: x, h: &h, raw: raw, alpha: alpha}
}

func (l *gatLayer) backward(c *gatCache, adj *Adjacency, dOut *mat.Dense, g Gradients, needInput bool) *mat.Dense {
	H, C := l.heads, l.out
	n := adj.N

	g[l.name+".bias"] = colSum(dOut)

	dh := mat.NewDense(n, H*C, nil)
	dsSrc := make([]float64, n*H)
	dsDst := make([]float64, n*H)
	var dAlpha []float64

	for i := 0; i < n; i++ {
		lo, hi := adj.attnPtr[i], adj.attnPtr[i+1]
		if cap(dAlpha) < hi-lo {
			dAlpha = make([]float64, hi-lo)
		}
		dAlpha = dAlpha[:hi-lo]
		dRow := dOut.RawRowView(i)

		for k := 0; k < H; k++ {
			grad, scale := l.headTarget(dRow, k)

			weighted := 0.0
			for e := lo; e < hi; e++ {
				j := adj.attnSrc[e]
				a := c.alpha[e*H+k]
				hj := c.h.RawRowView(j)[k*C : (k+1)*C]
				da := scale * floats.Dot(grad, hj)
				dAlpha[e-lo] = da
				weighted += a * da
				floats.AddScaled(dh.RawRowView(j)[k*C:(k+1)*C], scale*a, grad)
			}

			// Softmax then leaky-ReLU backward onto the two score terms.
			for e := lo; e < hi; e++ {
				dz := c.alpha[e*H+k] * (dAlpha[e-lo] - weighted)
				if c.raw[e*H+k] <= 0 {
					dz *= AttentionSlope
				}
				dsSrc[adj.attnSrc[e]*H+k] += dz
				dsDst[i*H+k] += dz
			}
		}
	}

	dAttSrc := zeros(H, C)
	dAttDst := zeros(H, C)
	for v := 0; v < n; v++ {
		hv := c.h.RawRowView(v)
		dhv := dh.RawRowView(v)
		for k := 0; k < H; k++ {
			seg := hv[k*C : (k+1)*C]
			dseg := dhv[k*C : (k+1)*C]
			floats.AddScaled(dAttSrc.RawRowView(k), dsSrc[v*H+k], seg)
			floats.AddScaled(dAttDst.RawRowView(k), dsDst[v*H+k], seg)
			floats.AddScaled(dseg, dsSrc[v*H+k], l.attSrc.RawRowView(k))
			floats.AddScaled(dseg, dsDst[v*H+k], l.attDst.RawRowView(k))
		}
	}
	g[l.name+".att_src"] = dAttSrc
	g[l.name+".att_dst"] = dAttDst

	var dW mat.Dense
	dW.Mul(c.x.T(), dh)
	g[l.name+".lin.weight"] = &dW

	if !needInput {
		return nil
	}
	var dx mat.Dense
	dx.Mul(dh, l.w.T())
	return &dx
}
