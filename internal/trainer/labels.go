package trainer

import (
	"fmt"
	"log"

	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// LabelPolicy decides how graph nodes without ground truth enter the loss.
type LabelPolicy string

const (
	// SoftDefault gives unlabeled nodes a 0.5 target and keeps them in the
	// loss and the accuracy denominator.
	SoftDefault LabelPolicy = "soft"
	// MaskUnlabeled excludes unlabeled nodes from loss and accuracy.
	MaskUnlabeled LabelPolicy = "mask"
)

// UnlabeledTarget is the soft target used by SoftDefault.
const UnlabeledTarget = 0.5

// ParseLabelPolicy validates a configured policy string.
func ParseLabelPolicy(s string) (LabelPolicy, error) {
	switch LabelPolicy(s) {
	case "", SoftDefault:
		return SoftDefault, nil
	case MaskUnlabeled:
		return MaskUnlabeled, nil
	default:
		return "", fmt.Errorf("invalid label policy %q (want %q or %q)", s, SoftDefault, MaskUnlabeled)
	}
}

// LabelVector is the per-node training target aligned with graph indices.
type LabelVector struct {
	Targets   []float64
	Mask      []bool // nil under SoftDefault
	Labeled   int    // graph nodes with ground truth
	Unmatched int    // labels whose address is not a graph node
}

// BuildLabelVector aligns labeled addresses with graph node indices. A
// duplicate address keeps its last label.
func BuildLabelVector(g *graph.Graph, labels []models.LabeledAddress, policy LabelPolicy) LabelVector {
	n := g.NumNodes()
	lv := LabelVector{Targets: make([]float64, n)}
	for i := range lv.Targets {
		lv.Targets[i] = UnlabeledTarget
	}

	labeled := make([]bool, n)
	for _, l := range labels {
		idx, ok := g.Index(l.Address)
		if !ok {
			lv.Unmatched++
			continue
		}
		lv.Targets[idx] = l.Label
		labeled[idx] = true
	}
	for _, ok := range labeled {
		if ok {
			lv.Labeled++
		}
	}

	if policy == MaskUnlabeled {
		lv.Mask = labeled
	}
	if lv.Unmatched > 0 {
		log.Printf("[Trainer] Warning: %d labeled addresses have no qualifying transactions and are not in the graph", lv.Unmatched)
	}
	return lv
}
