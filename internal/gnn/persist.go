package gnn

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"
)

// snapshotVersion is bumped whenever the parameter layout changes.
const snapshotVersion = 1

// ErrIncompatibleSnapshot is returned when a parameter blob does not match
// the layout implied by its config.
var ErrIncompatibleSnapshot = errors.New("gnn: incompatible parameter snapshot")

// Tensor is the serialised form of one named parameter.
type Tensor struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// Snapshot is the persisted model state: hyperparameters, the device the
// parameters were saved from, and every tensor.
type Snapshot struct {
	Version int
	Config  Config
	Device  string
	Tensors []Tensor
}

// Save writes the model as a single zstd-compressed gob blob.
func Save(w io.Writer, m *Model, device string) error {
	snap := Snapshot{
		Version: snapshotVersion,
		Config:  m.cfg,
		Device:  device,
	}
	for _, p := range m.Params() {
		r, c := p.Value.Dims()
		data := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, p.Value.RawRowView(i)...)
		}
		snap.Tensors = append(snap.Tensors, Tensor{Name: p.Name, Rows: r, Cols: c, Data: data})
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("init zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(&snap); err != nil {
		zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Load reads a blob written by Save and rebuilds the model. Every tensor
// name and shape is checked against the config it was saved with. The
// returned string is the device recorded in the blob.
func Load(r io.Reader) (*Model, string, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("init zstd reader: %w", err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, "", fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, "", fmt.Errorf("%w: version %d, want %d", ErrIncompatibleSnapshot, snap.Version, snapshotVersion)
	}

	m, err := New(snap.Config)
	if err != nil {
		return nil, "", err
	}

	params := m.Params()
	if len(snap.Tensors) != len(params) {
		return nil, "", fmt.Errorf("%w: %d tensors, want %d", ErrIncompatibleSnapshot, len(snap.Tensors), len(params))
	}
	for i, p := range params {
		t := snap.Tensors[i]
		rows, cols := p.Value.Dims()
		if t.Name != p.Name || t.Rows != rows || t.Cols != cols || len(t.Data) != rows*cols {
			return nil, "", fmt.Errorf("%w: tensor %d is %s %dx%d, want %s %dx%d",
				ErrIncompatibleSnapshot, i, t.Name, t.Rows, t.Cols, p.Name, rows, cols)
		}
		p.Value.Copy(mat.NewDense(rows, cols, t.Data))
	}
	return m, snap.Device, nil
}

// SaveFile writes the model to path, replacing it atomically.
func SaveFile(path string, m *Model, device string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := Save(f, m, device); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFile reads a model blob from path.
func LoadFile(path string) (*Model, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return Load(f)
}
