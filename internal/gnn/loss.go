package gnn

import (
	"fmt"
	"math"
)

// BCELoss computes the mean binary cross-entropy between sigmoid outputs and
// (possibly soft) targets, together with its gradient with respect to the
// logits. Log terms are clamped at -100. A nil mask weights every node;
// otherwise only nodes with mask[i] set contribute and the mean runs over
// them.
func BCELoss(probs, targets []float64, mask []bool) (float64, []float64, error) {
	if len(probs) != len(targets) {
		return 0, nil, fmt.Errorf("%w: %d outputs vs %d targets", ErrShapeMismatch, len(probs), len(targets))
	}
	if mask != nil && len(mask) != len(probs) {
		return 0, nil, fmt.Errorf("%w: mask length %d vs %d outputs", ErrShapeMismatch, len(mask), len(probs))
	}

	count := 0
	for i := range probs {
		if mask == nil || mask[i] {
			count++
		}
	}
	grad := make([]float64, len(probs))
	if count == 0 {
		return 0, grad, fmt.Errorf("%w: no node contributes to the loss", ErrShapeMismatch)
	}

	total := 0.0
	for i, p := range probs {
		if mask != nil && !mask[i] {
			continue
		}
		y := targets[i]
		total -= y*clampedLog(p) + (1-y)*clampedLog(1-p)

		// d/dlogit of BCE(sigmoid(z)); the p(1-p) factor is floored like
		// the probability-space backward.
		s := p * (1 - p)
		grad[i] = (p - y) * s / math.Max(s, 1e-12) / float64(count)
	}
	return total / float64(count), grad, nil
}

func clampedLog(v float64) float64 {
	return math.Max(math.Log(v), -100)
}
