package graph

import (
	"errors"
	"fmt"

	"github.com/rawblock/wallet-gnn/pkg/models"
)

// ErrEmptyGraph is returned when no edge survives orphan filtering; no
// node or edge tensors can be built from such an input.
var ErrEmptyGraph = errors.New("graph: no edges survived filtering")

// StoreQueryError describes a failed store lookup for one
// (category, direction, address) triple. The builder recovers from it by
// treating the rows as absent.
type StoreQueryError struct {
	Category  models.Category
	Direction models.Direction
	Address   string
	Err       error
}

func (e *StoreQueryError) Error() string {
	return fmt.Sprintf("store query %s/%s for %s: %v", e.Category, e.Direction, e.Address, e.Err)
}

func (e *StoreQueryError) Unwrap() error { return e.Err }
