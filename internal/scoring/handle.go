package scoring

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rawblock/wallet-gnn/internal/device"
	"github.com/rawblock/wallet-gnn/internal/gnn"
	"github.com/rawblock/wallet-gnn/internal/metrics"
)

// ErrModelUnavailable wraps failures to obtain a model for scoring.
var ErrModelUnavailable = errors.New("model unavailable")

// Loader produces the model on first use.
type Loader func() (*gnn.Model, error)

// FileLoader loads a parameter blob from disk and places it on the
// requested device.
func FileLoader(path string, dev device.Device) Loader {
	return func() (*gnn.Model, error) {
		m, saved, err := gnn.LoadFile(path)
		if err != nil {
			return nil, err
		}
		placed := device.ForLoad(saved, dev)
		log.Printf("[Model] Loaded %s (%d parameters) on %s", path, m.NumParams(), placed)
		return m, nil
	}
}

// DefaultLoadRetry is the minimum delay between load attempts after a
// failure.
const DefaultLoadRetry = 5 * time.Second

// ModelHandle is the process-wide model shared by request handlers. The
// model is loaded lazily on first use and kept once a load succeeds. A failed
// load is retried by later callers, at most once per retry interval; Swap
// installs a newly trained model. Models handed to Swap must not be mutated
// afterwards, since readers use them without holding the lock.
type ModelHandle struct {
	loader Loader
	retry  time.Duration

	mu          sync.RWMutex
	model       *gnn.Model
	loadErr     error
	nextAttempt time.Time
}

// NewModelHandle creates a handle that defers loading until first use. A nil
// loader means the handle only serves swapped-in models.
func NewModelHandle(loader Loader) *ModelHandle {
	return &ModelHandle{loader: loader, retry: DefaultLoadRetry}
}

// SetLoadRetry changes the delay between failed load attempts.
func (h *ModelHandle) SetLoadRetry(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retry = d
}

func (h *ModelHandle) load() (*gnn.Model, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.model != nil {
		return h.model, nil
	}
	if h.loader == nil {
		return nil, fmt.Errorf("%w: no model loader configured", ErrModelUnavailable)
	}
	if h.loadErr != nil && time.Now().Before(h.nextAttempt) {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, h.loadErr)
	}

	m, err := h.loader()
	if err != nil {
		h.loadErr = err
		h.nextAttempt = time.Now().Add(h.retry)
		log.Printf("[Model] Warning: failed to load model (retrying in %s): %v", h.retry, err)
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	h.model = m
	h.loadErr = nil
	metrics.ModelLoaded.Set(1)
	return m, nil
}

// Get returns the active model, loading it if none is active yet.
func (h *ModelHandle) Get() (*gnn.Model, error) {
	h.mu.RLock()
	m := h.model
	h.mu.RUnlock()
	if m != nil {
		return m, nil
	}
	return h.load()
}

// Swap replaces the active model.
func (h *ModelHandle) Swap(m *gnn.Model) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.model = m
	h.loadErr = nil
	metrics.ModelLoaded.Set(1)
	log.Printf("[Model] Active model replaced (%d parameters)", m.NumParams())
}

// Loaded reports whether a model is active without triggering a load.
func (h *ModelHandle) Loaded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model != nil
}
