package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rawblock/wallet-gnn/pkg/models"
)

const swapsCSV = `BLOCK_TIMESTAMP,ORIGIN_FROM_ADDRESS,ORIGIN_TO_ADDRESS,AMOUNT_PRECISE,TX_HASH
2024-03-01 12:00:00+0000,0xAAAA000000000000000000000000000000000001,0xbbbb000000000000000000000000000000000002,1.5,0x01
2024-03-01 12:00:10+0000,0xbbbb000000000000000000000000000000000002,0xcccc000000000000000000000000000000000003,not-a-number,0x02
garbage,0xcccc000000000000000000000000000000000003,0xaaaa000000000000000000000000000000000001,,0x03
`

func TestReadRows_Synonyms(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(swapsCSV), models.CategoryDEXSwap, "dex_swaps.csv")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	if rows[0].Value != 1.5 {
		t.Errorf("expected value 1.5, got %f", rows[0].Value)
	}
	if rows[1].Value != 0 || rows[2].Value != 0 {
		t.Errorf("malformed/empty values must parse as 0, got %f and %f", rows[1].Value, rows[2].Value)
	}
	if rows[0].Timestamp != 1709294400 {
		t.Errorf("expected ts 1709294400, got %f", rows[0].Timestamp)
	}
	if rows[2].Timestamp != 0 {
		t.Errorf("unparseable timestamp should be epoch 0, got %f", rows[2].Timestamp)
	}
	if rows[0].ID == rows[1].ID {
		t.Errorf("row IDs must be unique, both %q", rows[0].ID)
	}
	for _, r := range rows {
		if r.Category != models.CategoryDEXSwap {
			t.Errorf("unexpected category %v", r.Category)
		}
	}
}

func TestReadRows_ByteOrderMarkHeader(t *testing.T) {
	in := "\uFEFFFROM_ADDRESS,TO_ADDRESS,VALUE_PRECISE\n0xa,0xb,2\n"
	rows, err := ReadRows(strings.NewReader(in), models.CategoryNative, "transactions.csv")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 1 || rows[0].From != "0xa" || rows[0].Value != 2 {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestReadRows_MissingColumn(t *testing.T) {
	_, err := ReadRows(strings.NewReader("A,B\n1,2\n"), models.CategoryNative, "x.csv")
	if err == nil {
		t.Fatal("expected an error for a CSV without address columns")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", 0},
		{"10", 10},
		{"0.000000000000000001", 1e-18},
		{"1e3", 1000},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := ParseValue(tt.raw); got != tt.want {
			t.Errorf("ParseValue(%q) = %g, want %g", tt.raw, got, tt.want)
		}
	}
}

func TestReadLabels(t *testing.T) {
	labels, err := ReadLabels(strings.NewReader("ADDRESS,LABEL\n0xa,1\n0xb,0\n,1\n"))
	if err != nil {
		t.Fatalf("ReadLabels: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(labels))
	}
	if labels[0].Label != 1 || labels[1].Label != 0 {
		t.Errorf("unexpected labels %+v", labels)
	}

	if _, err := ReadLabels(strings.NewReader("ADDRESS,LABEL\n0xa,0.7\n")); err == nil {
		t.Error("expected an error for a non-binary label")
	}
}

func TestReadAddresses(t *testing.T) {
	addrs, err := ReadAddresses(strings.NewReader("address\n0xa\n\n0xb\n"))
	if err != nil {
		t.Fatalf("ReadAddresses: %v", err)
	}
	if len(addrs) != 2 || addrs[0] != "0xa" || addrs[1] != "0xb" {
		t.Errorf("unexpected addresses %v", addrs)
	}
}

func TestMemoryStore_RowsByDirection(t *testing.T) {
	s := NewMemoryStore()
	s.Add(models.CategoryNative,
		models.TxRow{ID: "1", From: "0xA", To: "0xB", Value: 10},
		models.TxRow{ID: "2", From: "0xb", To: "0xc", Value: 5},
	)

	from, err := s.Rows(context.Background(), models.CategoryNative, models.DirectionFrom, "0xB")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(from) != 1 || from[0].ID != "2" {
		t.Errorf("expected row 2 as sender of 0xb, got %+v", from)
	}

	to, _ := s.Rows(context.Background(), models.CategoryNative, models.DirectionTo, "0xb")
	if len(to) != 1 || to[0].ID != "1" {
		t.Errorf("expected row 1 as receiver of 0xb, got %+v", to)
	}

	none, _ := s.Rows(context.Background(), models.CategoryNFT, models.DirectionTo, "0xb")
	if len(none) != 0 {
		t.Errorf("expected no NFT rows, got %d", len(none))
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Rows(ctx, models.CategoryNative, models.DirectionFrom, "0xa"); err == nil {
		t.Error("expected context error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("transactions.csv", "FROM_ADDRESS,TO_ADDRESS,VALUE_PRECISE,BLOCK_TIMESTAMP\n0xa,0xb,1,2024-01-01 00:00:00+0000\n")
	write("nft_transfers.csv", "NFT_FROM_ADDRESS,NFT_TO_ADDRESS,BLOCK_TIMESTAMP\n0xb,0xc,2024-01-01 00:00:00+0000\n")
	write("token transfers/part-0.csv", "FROM_ADDRESS,TO_ADDRESS,AMOUNT_PRECISE\n0xc,0xa,3\n")
	write("token transfers/part-1.csv", "FROM_ADDRESS,TO_ADDRESS,AMOUNT_PRECISE\n0xc,0xd,4\n")

	s, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if s.Len(models.CategoryNative) != 1 || s.Len(models.CategoryNFT) != 1 {
		t.Errorf("unexpected native/nft counts %d/%d", s.Len(models.CategoryNative), s.Len(models.CategoryNFT))
	}
	if s.Len(models.CategoryDEXSwap) != 0 {
		t.Errorf("missing dex file should load nothing, got %d", s.Len(models.CategoryDEXSwap))
	}
	if s.Len(models.CategoryToken) != 2 {
		t.Errorf("expected 2 token rows from shards, got %d", s.Len(models.CategoryToken))
	}
}
