package gnn

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rawblock/wallet-gnn/internal/graph"
)

// Inputs converts a built transaction graph into the feature matrix and
// adjacency the model consumes. The feature width is checked against the
// model config here, before any forward pass.
func Inputs(g *graph.Graph, cfg Config) (*mat.Dense, *Adjacency, error) {
	x, err := NewFeatures(g.X, cfg.InChannels)
	if err != nil {
		return nil, nil, err
	}
	adj, err := NewAdjacency(g.NumNodes(), g.EdgeIndex)
	if err != nil {
		return nil, nil, err
	}
	return x, adj, nil
}
