// Package store provides an in-memory transaction store and CSV dataset
// loaders for offline training and tests.
package store

import (
	"context"
	"sync"

	"github.com/rawblock/wallet-gnn/internal/address"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// MemoryStore keeps rows per category in insertion order and indexes them by
// canonical sender and receiver. It satisfies graph.Store.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[models.Category][]models.TxRow
	byFrom map[models.Category]map[string][]int
	byTo   map[models.Category]map[string][]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		rows:   make(map[models.Category][]models.TxRow),
		byFrom: make(map[models.Category]map[string][]int),
		byTo:   make(map[models.Category]map[string][]int),
	}
	for _, c := range models.Categories {
		s.byFrom[c] = make(map[string][]int)
		s.byTo[c] = make(map[string][]int)
	}
	return s
}

// Add appends rows to the given category. Endpoints are canonicalised on the
// way in.
func (s *MemoryStore) Add(category models.Category, rows ...models.TxRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		row.Category = category
		row.From = address.Canonical(row.From)
		row.To = address.Canonical(row.To)

		pos := len(s.rows[category])
		s.rows[category] = append(s.rows[category], row)
		if row.From != "" {
			s.byFrom[category][row.From] = append(s.byFrom[category][row.From], pos)
		}
		if row.To != "" {
			s.byTo[category][row.To] = append(s.byTo[category][row.To], pos)
		}
	}
}

// Rows returns the rows of a category whose sender (FROM) or receiver (TO)
// matches the address.
func (s *MemoryStore) Rows(ctx context.Context, category models.Category, dir models.Direction, addr string) ([]models.TxRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	index := s.byFrom[category]
	if dir == models.DirectionTo {
		index = s.byTo[category]
	}

	positions := index[address.Canonical(addr)]
	out := make([]models.TxRow, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.rows[category][pos])
	}
	return out, nil
}

// Len returns the number of rows held for a category.
func (s *MemoryStore) Len(category models.Category) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[category])
}
