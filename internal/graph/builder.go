package graph

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/wallet-gnn/internal/address"
	"github.com/rawblock/wallet-gnn/internal/metrics"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// Graph Builder
//
// Turns a set of addresses of interest plus their related transfer rows into
// a directed multigraph with engineered node features. Construction is
// two-pass so that orphans (addresses without a qualifying edge) never
// become nodes:
//
//   1. Degree pass:      count endpoint references over every related row
//   2. Materialise pass: keep rows whose endpoints both have degree >= 1,
//                        allocate node indices in row-processing order
//   3. Aggregate:        structural features + per-category timestamp gaps
//
// Rows are fetched once (concurrently, bounded) and buffered per address
// slot, so both passes run over the same in-memory snapshot and the
// processing order is independent of fetch completion order.

// FeatureWidth is the fixed node feature width: 3 structural columns plus a
// (min, mean, max) gap triple for each of the four categories.
const FeatureWidth = 3 + 3*4

// Store is the read side of the transaction store the builder depends on.
// Rows should carry a store-unique ID. ID-less rows are deduplicated by
// content within a build.
type Store interface {
	Rows(ctx context.Context, category models.Category, dir models.Direction, address string) ([]models.TxRow, error)
}

// TimingScope selects how timestamp-gap features are aggregated.
type TimingScope string

const (
	// TimingGlobal derives one set of 12 statistics from the whole batch and
	// copies it onto every node (output-compatible with existing models).
	TimingGlobal TimingScope = "global"
	// TimingPerNode derives the statistics from each node's incident rows.
	TimingPerNode TimingScope = "node"
)

// ParseTimingScope validates a configured timing scope string.
func ParseTimingScope(s string) (TimingScope, error) {
	switch TimingScope(s) {
	case "", TimingGlobal:
		return TimingGlobal, nil
	case TimingPerNode:
		return TimingPerNode, nil
	default:
		return "", fmt.Errorf("invalid timing scope %q (want %q or %q)", s, TimingGlobal, TimingPerNode)
	}
}

// Options tunes a Builder.
type Options struct {
	Concurrency  int                     // Max concurrent address fetches
	TimingScope  TimingScope             // Gap-feature aggregation scope
	OnQueryError func(*StoreQueryError) // Optional hook for recovered store failures
}

// DefaultOptions returns the builder defaults.
func DefaultOptions() Options {
	return Options{
		Concurrency: 8,
		TimingScope: TimingGlobal,
	}
}

// Stats summarises one build for logging and API responses.
type Stats struct {
	Addresses     int           `json:"addresses"`
	FetchedRows   int           `json:"fetchedRows"`
	DuplicateRows int           `json:"duplicateRows"`
	DroppedRows   int           `json:"droppedRows"`
	FailedQueries int           `json:"failedQueries"`
	Nodes         int           `json:"nodes"`
	Edges         int           `json:"edges"`
	Duration      time.Duration `json:"duration"`
}

// Graph bundles the node feature matrix, the edge list and the edge
// attributes together with the address <-> index bijection.
type Graph struct {
	X         [][]float64    // N x FeatureWidth
	EdgeIndex [][2]int       // (src, dst) node indices
	EdgeAttr  [][2]float64   // (value, timestamp)
	NodeMap   map[string]int // canonical address -> dense index
	Nodes     []string       // dense index -> canonical address
	OutDegree []int
	InDegree  []int
	Timing    [4]GapStats // Batch-wide gap statistics per category
	Stats     Stats
}

// NumNodes returns N.
func (g *Graph) NumNodes() int { return len(g.Nodes) }

// NumEdges returns the number of materialised edges.
func (g *Graph) NumEdges() int { return len(g.EdgeIndex) }

// Index looks up the node index of an address in any letter case.
func (g *Graph) Index(addr string) (int, bool) {
	idx, ok := g.NodeMap[address.Canonical(addr)]
	return idx, ok
}

// TransactionCount returns the number of edges incident to a node.
func (g *Graph) TransactionCount(idx int) int {
	if idx < 0 || idx >= len(g.Nodes) {
		return 0
	}
	return g.OutDegree[idx] + g.InDegree[idx]
}

// Builder assembles graphs from a transaction store.
type Builder struct {
	store Store
	opts  Options
}

// NewBuilder creates a builder over the given store.
func NewBuilder(store Store, opts Options) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.TimingScope == "" {
		opts.TimingScope = TimingGlobal
	}
	return &Builder{store: store, opts: opts}
}

// Build constructs the graph for the given addresses of interest. It returns
// ErrEmptyGraph when no edge survives filtering.
func (b *Builder) Build(ctx context.Context, addresses []string) (*Graph, error) {
	start := time.Now()
	addrs := uniqueCanonical(addresses)

	rows, stats, err := b.fetch(ctx, addrs)
	if err != nil {
		return nil, err
	}
	stats.Addresses = len(addrs)

	g := materialise(rows, b.opts.TimingScope)
	stats.DroppedRows = len(rows) - len(g.EdgeIndex)
	stats.Nodes = len(g.Nodes)
	stats.Edges = len(g.EdgeIndex)
	stats.Duration = time.Since(start)
	metrics.GraphBuildDuration.Observe(stats.Duration.Seconds())

	if len(g.EdgeIndex) == 0 {
		log.Printf("[GraphBuilder] Warning: no edges found for %d addresses (%d rows fetched, %d failed queries)",
			stats.Addresses, stats.FetchedRows, stats.FailedQueries)
		return nil, ErrEmptyGraph
	}

	g.Stats = stats
	log.Printf("[GraphBuilder] Graph built: nodes=%d edges=%d addresses=%d dropped=%d duplicates=%d failedQueries=%d (%s)",
		stats.Nodes, stats.Edges, stats.Addresses, stats.DroppedRows, stats.DuplicateRows, stats.FailedQueries, stats.Duration)
	return g, nil
}

// rowKey identifies a store row across the queries of one build. Rows with
// an ID are keyed by it. ID-less rows are keyed by their content plus their
// ordinal among identical rows of the same query result, so the same row
// reached from both endpoints collapses while genuine repeats survive.
type rowKey struct {
	cat   models.Category
	id    string
	from  string
	to    string
	value float64
	ts    float64
	raw   string
	nth   int
}

type fetchedRow struct {
	row models.TxRow
	key rowKey
}

// keyRows assigns dedupe keys to one query result.
func keyRows(cat models.Category, rows []models.TxRow) []fetchedRow {
	out := make([]fetchedRow, 0, len(rows))
	var seen map[rowKey]int
	for _, row := range rows {
		row.Category = cat
		row.From = address.Canonical(row.From)
		row.To = address.Canonical(row.To)

		k := rowKey{cat: cat, id: row.ID}
		if row.ID == "" {
			if seen == nil {
				seen = make(map[rowKey]int)
			}
			k = rowKey{cat: cat, from: row.From, to: row.To, value: row.Value, ts: row.Timestamp, raw: row.RawTimestamp}
			n := seen[k]
			seen[k] = n + 1
			k.nth = n
		}
		out = append(out, fetchedRow{row: row, key: k})
	}
	return out
}

// fetch pulls every related row for every address with bounded concurrency,
// then flattens the per-address buffers in input order and drops rows that
// were already reached through another endpoint.
func (b *Builder) fetch(ctx context.Context, addrs []string) ([]models.TxRow, Stats, error) {
	var stats Stats
	slots := make([][]fetchedRow, len(addrs))

	var mu sync.Mutex
	var failures []*StoreQueryError

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.opts.Concurrency)

	for i, addr := range addrs {
		eg.Go(func() error {
			var related []fetchedRow
			for _, cat := range models.Categories {
				for _, dir := range models.Directions {
					if err := egCtx.Err(); err != nil {
						return err
					}
					rows, err := b.store.Rows(egCtx, cat, dir, addr)
					if err != nil {
						if egCtx.Err() != nil {
							return egCtx.Err()
						}
						mu.Lock()
						failures = append(failures, &StoreQueryError{Category: cat, Direction: dir, Address: addr, Err: err})
						mu.Unlock()
						continue
					}
					related = append(related, keyRows(cat, rows)...)
				}
			}
			slots[i] = related
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, stats, fmt.Errorf("fetch related rows: %w", err)
	}

	for _, f := range failures {
		stats.FailedQueries++
		metrics.StoreQueryFailures.WithLabelValues(f.Category.String()).Inc()
		log.Printf("[GraphBuilder] Warning: %v (rows treated as absent)", f)
		if b.opts.OnQueryError != nil {
			b.opts.OnQueryError(f)
		}
	}

	seen := make(map[rowKey]struct{})
	var ordered []models.TxRow
	for _, slot := range slots {
		for _, fr := range slot {
			stats.FetchedRows++
			if _, dup := seen[fr.key]; dup {
				stats.DuplicateRows++
				continue
			}
			seen[fr.key] = struct{}{}
			ordered = append(ordered, fr.row)
		}
	}
	return ordered, stats, nil
}

// materialise runs the degree pass and the materialisation pass over the
// buffered rows and attaches node features.
func materialise(rows []models.TxRow, scope TimingScope) *Graph {
	// Degree pass: every referenced endpoint, inside the address set or not.
	degree := make(map[string]int)
	for _, row := range rows {
		if row.From != "" {
			degree[row.From]++
		}
		if row.To != "" {
			degree[row.To]++
		}
	}

	g := &Graph{NodeMap: make(map[string]int)}
	var catTimestamps [4][]float64
	var nodeTimestamps [][4][]float64

	indexOf := func(addr string) int {
		if idx, ok := g.NodeMap[addr]; ok {
			return idx
		}
		idx := len(g.Nodes)
		g.NodeMap[addr] = idx
		g.Nodes = append(g.Nodes, addr)
		g.OutDegree = append(g.OutDegree, 0)
		g.InDegree = append(g.InDegree, 0)
		if scope == TimingPerNode {
			nodeTimestamps = append(nodeTimestamps, [4][]float64{})
		}
		return idx
	}

	// Materialisation pass.
	for _, row := range rows {
		if degree[row.From] < 1 || degree[row.To] < 1 {
			continue
		}
		src := indexOf(row.From)
		dst := indexOf(row.To)

		g.EdgeIndex = append(g.EdgeIndex, [2]int{src, dst})
		g.EdgeAttr = append(g.EdgeAttr, [2]float64{row.Value, row.Timestamp})
		g.OutDegree[src]++
		g.InDegree[dst]++

		catTimestamps[row.Category] = append(catTimestamps[row.Category], row.Timestamp)
		if scope == TimingPerNode {
			nodeTimestamps[src][row.Category] = append(nodeTimestamps[src][row.Category], row.Timestamp)
			if dst != src {
				nodeTimestamps[dst][row.Category] = append(nodeTimestamps[dst][row.Category], row.Timestamp)
			}
		}
	}

	for _, cat := range models.Categories {
		g.Timing[cat] = ComputeGapStats(catTimestamps[cat])
	}

	g.X = make([][]float64, len(g.Nodes))
	for i, addr := range g.Nodes {
		timing := g.Timing
		if scope == TimingPerNode {
			for _, cat := range models.Categories {
				timing[cat] = ComputeGapStats(nodeTimestamps[i][cat])
			}
		}
		g.X[i] = nodeFeatures(float64(g.OutDegree[i]), float64(g.InDegree[i]), address.PatternScore(addr), timing)
	}
	return g
}

// nodeFeatures lays out one feature row:
// [out_degree, in_degree, pattern, native(min,mean,max), dex(...), nft(...), token(...)].
func nodeFeatures(out, in, pattern float64, timing [4]GapStats) []float64 {
	row := make([]float64, 0, FeatureWidth)
	row = append(row, out, in, pattern)
	for _, cat := range models.Categories {
		row = append(row, timing[cat].Min, timing[cat].Mean, timing[cat].Max)
	}
	return row
}

// uniqueCanonical canonicalises addresses, drops blanks and duplicates and
// keeps first-seen order so index assignment is reproducible.
func uniqueCanonical(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		c := address.Canonical(a)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
