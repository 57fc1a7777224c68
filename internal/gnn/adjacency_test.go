package gnn

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewAdjacency_SelfLoops(t *testing.T) {
	adj, err := NewAdjacency(3, [][2]int{{0, 1}, {1, 1}, {0, 1}, {2, 0}})
	if err != nil {
		t.Fatalf("NewAdjacency: %v", err)
	}

	// Mean variant keeps every edge and appends one loop per node.
	if got := adj.meanSrc[adj.meanPtr[1]:adj.meanPtr[2]]; !reflect.DeepEqual(got, []int{0, 1, 0, 1}) {
		t.Errorf("mean neighbourhood of 1 = %v", got)
	}
	// Attention variant drops the existing loop before adding its own.
	if got := adj.attnSrc[adj.attnPtr[1]:adj.attnPtr[2]]; !reflect.DeepEqual(got, []int{0, 0, 1}) {
		t.Errorf("attention neighbourhood of 1 = %v", got)
	}
	if adj.MeanDegree(2) != 1 || adj.AttnDegree(2) != 1 {
		t.Errorf("node 2 has only its self-loop, got %d/%d", adj.MeanDegree(2), adj.AttnDegree(2))
	}
	if adj.MeanDegree(0) != 2 {
		t.Errorf("node 0 receives 2->0 plus its loop, got %d", adj.MeanDegree(0))
	}
}

func TestNewAdjacency_OutOfRange(t *testing.T) {
	if _, err := NewAdjacency(2, [][2]int{{0, 2}}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := NewAdjacency(0, nil); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for empty graph, got %v", err)
	}
}
