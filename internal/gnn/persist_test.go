package gnn

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	m, _ := New(tinyConfig())
	x, adj := tinyInputs(t)
	want, _ := m.Forward(x, adj)

	var buf bytes.Buffer
	if err := Save(&buf, m, "cuda"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, device, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if device != "cuda" {
		t.Errorf("expected recorded device cuda, got %q", device)
	}
	if loaded.Config() != m.Config() {
		t.Errorf("config mismatch: %+v vs %+v", loaded.Config(), m.Config())
	}

	got, _ := loaded.Forward(x, adj)
	for i := range want.Probs {
		if want.Probs[i] != got.Probs[i] {
			t.Fatalf("score %d differs after reload: %f vs %f", i, want.Probs[i], got.Probs[i])
		}
	}
}

func TestLoad_RejectsGarbage(t *testing.T) {
	if _, _, err := Load(bytes.NewReader([]byte("not a model"))); err == nil {
		t.Error("expected an error for a non-zstd blob")
	}
}

func TestLoad_RejectsShapeMismatch(t *testing.T) {
	m, _ := New(tinyConfig())
	var buf bytes.Buffer
	if err := Save(&buf, m, "cpu"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Claim a hidden width the stored tensors do not have.
	snapModel, _, err := Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snapModel.cfg.HiddenChannels = 5
	var bad bytes.Buffer
	if err := Save(&bad, snapModel, "cpu"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, _, err := Load(&bad); !errors.Is(err, ErrIncompatibleSnapshot) {
		t.Errorf("expected ErrIncompatibleSnapshot, got %v", err)
	}
}

func TestSaveFile_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	m, _ := New(tinyConfig())
	if err := SaveFile(path, m, "cpu"); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	loaded, device, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if device != "cpu" || loaded.NumParams() != m.NumParams() {
		t.Errorf("unexpected reload: device=%q params=%d", device, loaded.NumParams())
	}
}
