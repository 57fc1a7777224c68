package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/rawblock/wallet-gnn/internal/address"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

var importColumns = []string{"source_ref", "from_address", "to_address", "value", "block_timestamp"}

// ImportRows bulk-loads rows into the table of their category using COPY.
// Endpoints are canonicalised; rows missing either endpoint are skipped.
func (s *PostgresStore) ImportRows(ctx context.Context, category models.Category, rows []models.TxRow) (int64, error) {
	valid := make([]models.TxRow, 0, len(rows))
	for _, r := range rows {
		r.From = address.Canonical(r.From)
		r.To = address.Canonical(r.To)
		if r.From == "" || r.To == "" {
			continue
		}
		valid = append(valid, r)
	}
	if skipped := len(rows) - len(valid); skipped > 0 {
		log.Printf("[Import] Warning: skipped %d %s rows without both endpoints", skipped, category)
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{category.String()},
		importColumns,
		pgx.CopyFromSlice(len(valid), func(i int) ([]any, error) {
			r := valid[i]
			return []any{r.ID, r.From, r.To, r.Value, r.RawTimestamp}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", category, err)
	}
	return n, nil
}
