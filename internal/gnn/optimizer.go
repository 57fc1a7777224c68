package gnn

import (
	"fmt"
	"math"
)

// AdamW is Adam with decoupled weight decay.
type AdamW struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	step int
	m    map[string][]float64
	v    map[string][]float64
}

// NewAdamW returns an optimizer with the standard betas and epsilon.
func NewAdamW(lr, weightDecay float64) *AdamW {
	return &AdamW{
		LR:          lr,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		m:           make(map[string][]float64),
		v:           make(map[string][]float64),
	}
}

// Steps returns how many updates have been applied.
func (o *AdamW) Steps() int { return o.step }

// Step applies one update to every parameter in place. Every parameter must
// have a gradient of the same shape.
func (o *AdamW) Step(params []Param, grads Gradients) error {
	for _, p := range params {
		g, ok := grads[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing gradient for %s", ErrShapeMismatch, p.Name)
		}
		pr, pc := p.Value.Dims()
		gr, gc := g.Dims()
		if pr != gr || pc != gc {
			return fmt.Errorf("%w: gradient %s is %dx%d, parameter is %dx%d", ErrShapeMismatch, p.Name, gr, gc, pr, pc)
		}
	}

	o.step++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.step))
	stepSize := o.LR / bc1
	bc2Sqrt := math.Sqrt(bc2)

	for _, p := range params {
		g := grads[p.Name]
		rows, cols := p.Value.Dims()

		m, ok := o.m[p.Name]
		if !ok {
			m = make([]float64, rows*cols)
			o.m[p.Name] = m
			o.v[p.Name] = make([]float64, rows*cols)
		}
		v := o.v[p.Name]

		for r := 0; r < rows; r++ {
			w := p.Value.RawRowView(r)
			gr := g.RawRowView(r)
			for c := 0; c < cols; c++ {
				k := r*cols + c
				w[c] -= o.LR * o.WeightDecay * w[c]
				m[k] = o.Beta1*m[k] + (1-o.Beta1)*gr[c]
				v[k] = o.Beta2*v[k] + (1-o.Beta2)*gr[c]*gr[c]
				w[c] -= stepSize * m[k] / (math.Sqrt(v[k])/bc2Sqrt + o.Eps)
			}
		}
	}
	return nil
}
