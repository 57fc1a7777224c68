package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// Column synonyms used by the exported datasets. The first header present
// wins, in the order listed.
var (
	fromColumns      = []string{"FROM_ADDRESS", "ORIGIN_FROM_ADDRESS", "NFT_FROM_ADDRESS"}
	toColumns        = []string{"TO_ADDRESS", "ORIGIN_TO_ADDRESS", "NFT_TO_ADDRESS"}
	valueColumns     = []string{"VALUE_PRECISE", "AMOUNT_PRECISE"}
	timestampColumns = []string{"BLOCK_TIMESTAMP"}
)

// ErrMissingColumn is returned when a CSV lacks a required column.
var ErrMissingColumn = errors.New("csv: required column missing")

// headerIndex maps upper-cased header names to column positions.
type headerIndex map[string]int

func newHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		h = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if _, exists := idx[h]; !exists {
			idx[h] = i
		}
	}
	return idx
}

func (h headerIndex) first(names []string) (int, bool) {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i, true
		}
	}
	return -1, false
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParseValue converts a precise decimal string into a float64. Empty or
// malformed values count as 0.
func ParseValue(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ReadRows parses a category CSV export. Each row gets a store-unique ID of
// the form "<table>:<source>:<line>" so re-fetches of the same row can be
// recognised by the graph builder.
func ReadRows(r io.Reader, category models.Category, source string) ([]models.TxRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", category, err)
	}
	h := newHeaderIndex(header)

	fromIdx, ok := h.first(fromColumns)
	if !ok {
		return nil, fmt.Errorf("%w: %s needs one of %v", ErrMissingColumn, category, fromColumns)
	}
	toIdx, ok := h.first(toColumns)
	if !ok {
		return nil, fmt.Errorf("%w: %s needs one of %v", ErrMissingColumn, category, toColumns)
	}
	tsIdx, _ := h.first(timestampColumns)

	var valueIdx []int
	for _, name := range valueColumns {
		if i, ok := h[name]; ok {
			valueIdx = append(valueIdx, i)
		}
	}

	var rows []models.TxRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", category, line, err)
		}

		value := 0.0
		for _, i := range valueIdx {
			if v := ParseValue(cell(record, i)); v != 0 {
				value = v
				break
			}
		}

		rawTS := cell(record, tsIdx)
		rows = append(rows, models.TxRow{
			ID:           category.String() + ":" + source + ":" + strconv.Itoa(line),
			Category:     category,
			From:         cell(record, fromIdx),
			To:           cell(record, toIdx),
			Value:        value,
			Timestamp:    graph.ParseTimestamp(rawTS),
			RawTimestamp: rawTS,
		})
	}
	return rows, nil
}

// ReadAddresses reads the ADDRESS column of an address list.
func ReadAddresses(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read address header: %w", err)
	}
	addrIdx, ok := newHeaderIndex(header)["ADDRESS"]
	if !ok {
		return nil, fmt.Errorf("%w: ADDRESS", ErrMissingColumn)
	}

	var out []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read addresses: %w", err)
		}
		if a := cell(record, addrIdx); a != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// ReadLabels reads an (ADDRESS, LABEL) training or test set. Labels must be
// 0 or 1.
func ReadLabels(r io.Reader) ([]models.LabeledAddress, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read label header: %w", err)
	}
	h := newHeaderIndex(header)
	addrIdx, ok := h["ADDRESS"]
	if !ok {
		return nil, fmt.Errorf("%w: ADDRESS", ErrMissingColumn)
	}
	labelIdx, ok := h["LABEL"]
	if !ok {
		return nil, fmt.Errorf("%w: LABEL", ErrMissingColumn)
	}

	var out []models.LabeledAddress
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read labels line %d: %w", line, err)
		}
		addr := cell(record, addrIdx)
		if addr == "" {
			continue
		}
		label, err := strconv.ParseFloat(cell(record, labelIdx), 64)
		if err != nil || (label != 0 && label != 1) {
			return nil, fmt.Errorf("invalid LABEL %q on line %d (want 0 or 1)", cell(record, labelIdx), line)
		}
		out = append(out, models.LabeledAddress{Address: addr, Label: label})
	}
	return out, nil
}

// categoryFiles lists the dataset file names per category.
var categoryFiles = map[models.Category]string{
	models.CategoryNative:  "transactions.csv",
	models.CategoryDEXSwap: "dex_swaps.csv",
	models.CategoryNFT:     "nft_transfers.csv",
	models.CategoryToken:   "token_transfers.csv",
}

// tokenTransferDir holds additional token transfer shards, one CSV per file.
const tokenTransferDir = "token transfers"

// DatasetFiles resolves the CSV files of a dataset directory per category.
// Missing category files are skipped.
func DatasetFiles(dir string) (map[models.Category][]string, error) {
	files := make(map[models.Category][]string)
	for _, cat := range models.Categories {
		path := filepath.Join(dir, categoryFiles[cat])
		if _, err := os.Stat(path); err == nil {
			files[cat] = append(files[cat], path)
		}
	}

	shardDir := filepath.Join(dir, tokenTransferDir)
	entries, err := os.ReadDir(shardDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", shardDir, err)
	}
	var shards []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			shards = append(shards, filepath.Join(shardDir, e.Name()))
		}
	}
	sort.Strings(shards)
	files[models.CategoryToken] = append(files[models.CategoryToken], shards...)
	return files, nil
}

// LoadDir fills a MemoryStore from a dataset directory.
func LoadDir(dir string) (*MemoryStore, error) {
	files, err := DatasetFiles(dir)
	if err != nil {
		return nil, err
	}

	s := NewMemoryStore()
	for _, cat := range models.Categories {
		for _, path := range files[cat] {
			rows, err := readFile(path, cat)
			if err != nil {
				return nil, err
			}
			s.Add(cat, rows...)
			log.Printf("[Store] Loaded %d %s rows from %s", len(rows), cat, path)
		}
	}
	return s, nil
}

func readFile(path string, cat models.Category) ([]models.TxRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f, cat, filepath.Base(path))
}

// ReadFile parses one category CSV from disk.
func ReadFile(path string, cat models.Category) ([]models.TxRow, error) {
	return readFile(path, cat)
}
