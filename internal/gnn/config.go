// Package gnn implements the fraud-risk graph network: two mean-aggregation
// (GraphSAGE) layers interleaved with two attention (GAT) layers, trained
// full-batch with hand-derived gradients on dense gonum matrices.
package gnn

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned before any computation when inputs do not
	// fit the configured layer widths.
	ErrShapeMismatch = errors.New("gnn: shape mismatch")
	// ErrInvalidConfig flags unusable hyperparameters.
	ErrInvalidConfig = errors.New("gnn: invalid config")
)

const (
	// LayerSlope is the leaky-ReLU slope applied between layers.
	LayerSlope = 0.01
	// AttentionSlope is the leaky-ReLU slope inside attention scores.
	AttentionSlope = 0.2
)

// Config holds the model hyperparameters.
type Config struct {
	InChannels     int    `json:"inChannels"`
	HiddenChannels int    `json:"hiddenChannels"`
	Heads          int    `json:"heads"`
	OutChannels    int    `json:"outChannels"`
	Seed           uint64 `json:"seed"`
}

// DefaultConfig returns the production hyperparameters.
func DefaultConfig() Config {
	return Config{
		InChannels:     15,
		HiddenChannels: 512,
		Heads:          4,
		OutChannels:    1,
		Seed:           42,
	}
}

// Validate rejects non-positive widths. The final layer is squeezed to one
// score per node, so OutChannels must be 1.
func (c Config) Validate() error {
	switch {
	case c.InChannels <= 0:
		return fmt.Errorf("%w: in_channels=%d", ErrInvalidConfig, c.InChannels)
	case c.HiddenChannels <= 0:
		return fmt.Errorf("%w: hidden_channels=%d", ErrInvalidConfig, c.HiddenChannels)
	case c.Heads <= 0:
		return fmt.Errorf("%w: heads=%d", ErrInvalidConfig, c.Heads)
	case c.OutChannels != 1:
		return fmt.Errorf("%w: out_channels=%d (risk head emits exactly one channel)", ErrInvalidConfig, c.OutChannels)
	}
	return nil
}
