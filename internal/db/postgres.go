package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/wallet-gnn/internal/address"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// schemaSQL is compiled into the binary so schema init works from any
// working directory.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL transaction store")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}

	log.Println("Transaction store schema initialized")
	return nil
}

// Ping checks connectivity for health probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetPool exposes the connection pool for subsystems that need raw access
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// Row lookups. Every (category, direction) pair has its own fixed statement;
// table and column names never come from runtime input.
const (
	selectTransactionsFrom = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM transactions WHERE from_address = $1 ORDER BY id`
	selectTransactionsTo = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM transactions WHERE to_address = $1 ORDER BY id`
	selectDEXSwapsFrom = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM dex_swaps WHERE from_address = $1 ORDER BY id`
	selectDEXSwapsTo = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM dex_swaps WHERE to_address = $1 ORDER BY id`
	selectNFTTransfersFrom = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM nft_transfers WHERE from_address = $1 ORDER BY id`
	selectNFTTransfersTo = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM nft_transfers WHERE to_address = $1 ORDER BY id`
	selectTokenTransfersFrom = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM token_transfers WHERE from_address = $1 ORDER BY id`
	selectTokenTransfersTo = `
		SELECT id, from_address, to_address, COALESCE(value, 0)::float8, COALESCE(block_timestamp, '')
		FROM token_transfers WHERE to_address = $1 ORDER BY id`
)

type queryKey struct {
	category  models.Category
	direction models.Direction
}

var rowQueries = map[queryKey]string{
	{models.CategoryNative, models.DirectionFrom}:  selectTransactionsFrom,
	{models.CategoryNative, models.DirectionTo}:    selectTransactionsTo,
	{models.CategoryDEXSwap, models.DirectionFrom}: selectDEXSwapsFrom,
	{models.CategoryDEXSwap, models.DirectionTo}:   selectDEXSwapsTo,
	{models.CategoryNFT, models.DirectionFrom}:     selectNFTTransfersFrom,
	{models.CategoryNFT, models.DirectionTo}:       selectNFTTransfersTo,
	{models.CategoryToken, models.DirectionFrom}:   selectTokenTransfersFrom,
	{models.CategoryToken, models.DirectionTo}:     selectTokenTransfersTo,
}

var _ graph.Store = (*PostgresStore)(nil)

// Rows returns the rows of one category where the address is the sender or
// the receiver, in insertion order.
func (s *PostgresStore) Rows(ctx context.Context, category models.Category, dir models.Direction, addr string) ([]models.TxRow, error) {
	query, ok := rowQueries[queryKey{category, dir}]
	if !ok {
		return nil, fmt.Errorf("no query for %s/%s", category, dir)
	}

	rows, err := s.pool.Query(ctx, query, address.Canonical(addr))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TxRow
	for rows.Next() {
		var (
			id    int64
			row   models.TxRow
			rawTS string
		)
		if err := rows.Scan(&id, &row.From, &row.To, &row.Value, &rawTS); err != nil {
			return nil, err
		}
		row.ID = strconv.FormatInt(id, 10)
		row.Category = category
		row.RawTimestamp = rawTS
		row.Timestamp = graph.ParseTimestamp(rawTS)
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CountRows reports the number of stored rows per category table.
func (s *PostgresStore) CountRows(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(models.Categories))
	batch := &pgx.Batch{}
	for _, cat := range models.Categories {
		// Table names come from the fixed category enum.
		batch.Queue("SELECT COUNT(*) FROM " + pgx.Identifier{cat.String()}.Sanitize())
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, cat := range models.Categories {
		var n int64
		if err := br.QueryRow().Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", cat, err)
		}
		counts[cat.String()] = n
	}
	return counts, nil
}

// SaveLabel upserts the ground truth for one address.
func (s *PostgresStore) SaveLabel(ctx context.Context, addr string, label int, source string) error {
	if label != 0 && label != 1 {
		return fmt.Errorf("invalid label %d (want 0 or 1)", label)
	}
	sql := `
		INSERT INTO address_labels (address, label, source)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET
			label = EXCLUDED.label,
			source = EXCLUDED.source,
			updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, address.Canonical(addr), label, source)
	return err
}

// LoadLabels returns every stored label ordered by address.
func (s *PostgresStore) LoadLabels(ctx context.Context) ([]models.LabeledAddress, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, label FROM address_labels ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make([]models.LabeledAddress, 0)
	for rows.Next() {
		var (
			l     models.LabeledAddress
			label int16
		)
		if err := rows.Scan(&l.Address, &label); err != nil {
			return nil, err
		}
		l.Label = float64(label)
		labels = append(labels, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return labels, nil
}

// SaveRiskAssessment upserts the latest assessment of an address.
func (s *PostgresStore) SaveRiskAssessment(ctx context.Context, a models.RiskAssessment) error {
	sql := `
		INSERT INTO risk_scores (address, risk_score, risk_category, message, transaction_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			risk_category = EXCLUDED.risk_category,
			message = EXCLUDED.message,
			transaction_count = EXCLUDED.transaction_count,
			scored_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, address.Canonical(a.Address), a.RiskScore, a.RiskCategory, a.Message, a.TransactionCount)
	return err
}

// GetRiskAssessment returns the stored assessment of an address.
func (s *PostgresStore) GetRiskAssessment(ctx context.Context, addr string) (models.RiskAssessment, error) {
	var (
		a        models.RiskAssessment
		scoredAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT address, risk_score, risk_category, message, transaction_count, scored_at
		FROM risk_scores WHERE address = $1`, address.Canonical(addr)).
		Scan(&a.Address, &a.RiskScore, &a.RiskCategory, &a.Message, &a.TransactionCount, &scoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.LastUpdated = scoredAt.UTC().Format(time.RFC3339)
	return a, nil
}
