package gnn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Model is the four-layer fraud network:
//
//	SAGE(in -> hidden) -> GAT(hidden -> hidden, heads, concat)
//	-> SAGE(hidden*heads -> hidden) -> GAT(hidden -> out, 1 head, mean) -> sigmoid
//
// Forward never mutates the model, so any number of goroutines may score
// concurrently as long as no optimizer step runs at the same time.
type Model struct {
	cfg Config

	conv1 *sageLayer
	conv2 *gatLayer
	conv3 *sageLayer
	conv4 *gatLayer
}

// New builds a freshly initialised model from a validated config.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	return &Model{
		cfg:   cfg,
		conv1: newSAGE("conv1", cfg.InChannels, cfg.HiddenChannels, rng),
		conv2: newGAT("conv2", cfg.HiddenChannels, cfg.HiddenChannels, cfg.Heads, true, rng),
		conv3: newSAGE("conv3", cfg.HiddenChannels*cfg.Heads, cfg.HiddenChannels, rng),
		conv4: newGAT("conv4", cfg.HiddenChannels, cfg.OutChannels, 1, false, rng),
	}, nil
}

// Config returns the model hyperparameters.
func (m *Model) Config() Config { return m.cfg }

// Params lists every trainable tensor in a stable order.
func (m *Model) Params() []Param {
	var ps []Param
	ps = append(ps, m.conv1.params()...)
	ps = append(ps, m.conv2.params()...)
	ps = append(ps, m.conv3.params()...)
	ps = append(ps, m.conv4.params()...)
	return ps
}

// NumParams returns the total scalar parameter count.
func (m *Model) NumParams() int {
	total := 0
	for _, p := range m.Params() {
		r, c := p.Value.Dims()
		total += r * c
	}
	return total
}

// Pass holds the outputs of one forward pass plus the activations needed to
// differentiate it.
type Pass struct {
	Logits []float64 // Pre-sigmoid score per node
	Probs  []float64 // Risk score per node in [0,1]

	adj            *Adjacency
	c1, c3         *sageCache
	c2, c4         *gatCache
	z1, z2, z3, z4 *mat.Dense
}

// Forward runs the network over node features x (N x InChannels) and the
// graph adjacency. Shapes are validated before any computation.
func (m *Model) Forward(x *mat.Dense, adj *Adjacency) (*Pass, error) {
	if x == nil || adj == nil {
		return nil, fmt.Errorf("%w: nil input", ErrShapeMismatch)
	}
	n, f := x.Dims()
	if f != m.cfg.InChannels {
		return nil, fmt.Errorf("%w: feature width %d, model expects %d", ErrShapeMismatch, f, m.cfg.InChannels)
	}
	if n != adj.N {
		return nil, fmt.Errorf("%w: %d feature rows for %d graph nodes", ErrShapeMismatch, n, adj.N)
	}

	p := &Pass{adj: adj}

	p.z1, p.c1 = m.conv1.forward(x, adj)
	a1 := leakyReLU(p.z1, LayerSlope)

	p.z2, p.c2 = m.conv2.forward(a1, adj)
	a2 := leakyReLU(p.z2, LayerSlope)

	p.z3, p.c3 = m.conv3.forward(a2, adj)
	a3 := leakyReLU(p.z3, LayerSlope)

	p.z4, p.c4 = m.conv4.forward(a3, adj)

	p.Logits = make([]float64, n)
	p.Probs = make([]float64, n)
	for i := 0; i < n; i++ {
		p.Logits[i] = p.z4.At(i, 0)
		p.Probs[i] = sigmoid(p.Logits[i])
	}
	return p, nil
}

// Backward propagates dLoss/dLogits through the pass and returns the
// gradient of every parameter, keyed by Param.Name.
func (m *Model) Backward(p *Pass, dLogits []float64) (Gradients, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil pass", ErrShapeMismatch)
	}
	if len(dLogits) != len(p.Logits) {
		return nil, fmt.Errorf("%w: %d logit gradients for %d nodes", ErrShapeMismatch, len(dLogits), len(p.Logits))
	}

	g := make(Gradients, 14)
	dz4 := mat.NewDense(len(dLogits), 1, append([]float64(nil), dLogits...))

	da3 := m.conv4.backward(p.c4, p.adj, dz4, g, true)
	dz3 := leakyReLUBackward(da3, p.z3, LayerSlope)

	da2 := m.conv3.backward(p.c3, p.adj, dz3, g, true)
	dz2 := leakyReLUBackward(da2, p.z2, LayerSlope)

	da1 := m.conv2.backward(p.c2, p.adj, dz2, g, true)
	dz1 := leakyReLUBackward(da1, p.z1, LayerSlope)

	m.conv1.backward(p.c1, p.adj, dz1, g, false)
	return g, nil
}
