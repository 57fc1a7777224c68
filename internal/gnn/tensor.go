package gnn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Param is a named, trainable tensor.
type Param struct {
	Name  string
	Value *mat.Dense
}

// Gradients maps parameter names to their gradient tensors.
type Gradients map[string]*mat.Dense

// NewFeatures copies a row-major feature table into a dense matrix,
// validating that every row has the expected width.
func NewFeatures(rows [][]float64, width int) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty feature matrix", ErrShapeMismatch)
	}
	x := mat.NewDense(len(rows), width, nil)
	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("%w: node %d has %d features, want %d", ErrShapeMismatch, i, len(r), width)
		}
		x.SetRow(i, r)
	}
	return x, nil
}

func addBias(m *mat.Dense, bias *mat.Dense) {
	b := bias.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), b)
	}
}

func colSum(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	dst := out.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(dst, m.RawRowView(i))
	}
	return out
}

func leaky(v, slope float64) float64 {
	if v > 0 {
		return v
	}
	return v * slope
}

// leakyReLU returns a new matrix with the activation applied elementwise.
func leakyReLU(z *mat.Dense, slope float64) *mat.Dense {
	var a mat.Dense
	a.Apply(func(_, _ int, v float64) float64 { return leaky(v, slope) }, z)
	return &a
}

// leakyReLUBackward multiplies the upstream gradient by the activation
// derivative at the pre-activation z.
func leakyReLUBackward(dA, z *mat.Dense, slope float64) *mat.Dense {
	var dz mat.Dense
	dz.Apply(func(i, j int, v float64) float64 {
		if z.At(i, j) > 0 {
			return v
		}
		return v * slope
	}, dA)
	return &dz
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// glorot fills a rows x cols matrix from U(-b, b) with b = sqrt(6/(fanIn+fanOut)).
func glorot(rng *rand.Rand, rows, cols, fanIn, fanOut int) *mat.Dense {
	return uniform(rng, rows, cols, math.Sqrt(6/float64(fanIn+fanOut)))
}

func uniform(rng *rand.Rand, rows, cols int, bound float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
	return mat.NewDense(rows, cols, data)
}

func zeros(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}
