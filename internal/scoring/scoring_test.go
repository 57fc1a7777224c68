package scoring

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rawblock/wallet-gnn/internal/gnn"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/store"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

const (
	addrA = "0xaaaa000000000000000000000000000000000001"
	addrB = "0xbbbb000000000000000000000000000000000002"
	addrC = "0xcccc000000000000000000000000000000000003"
	addrZ = "0x9999000000000000000000000000000000000009"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, RiskHigh},
		{0.8, RiskHigh},
		{0.79999, RiskMedium},
		{0.6, RiskMedium},
		{0.5, RiskMedium},
		{0.49999, RiskLow},
		{0.2, RiskLow},
		{0, RiskLow},
		{1, RiskHigh},
	}
	for _, tt := range tests {
		if got := Categorize(tt.score); got != tt.want {
			t.Errorf("Categorize(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestUnknownAssessment(t *testing.T) {
	a := UnknownAssessment(addrZ)
	if a.RiskScore != 0 || a.RiskCategory != RiskLow || a.Message != NoTransactionsMessage {
		t.Errorf("unexpected default assessment %+v", a)
	}
}

func smallModel(t *testing.T) *gnn.Model {
	t.Helper()
	m, err := gnn.New(gnn.Config{InChannels: graph.FeatureWidth, HiddenChannels: 8, Heads: 2, OutChannels: 1, Seed: 11})
	if err != nil {
		t.Fatalf("gnn.New: %v", err)
	}
	return m
}

func fixtureStore() *store.MemoryStore {
	s := store.NewMemoryStore()
	s.Add(models.CategoryNative,
		models.TxRow{ID: "1", From: addrA, To: addrB, Value: 10, Timestamp: 100},
		models.TxRow{ID: "2", From: addrB, To: addrC, Value: 5, Timestamp: 200},
	)
	return s
}

func TestScore_KnownAndUnknown(t *testing.T) {
	g, err := graph.NewBuilder(fixtureStore(), graph.DefaultOptions()).Build(context.Background(), []string{addrA, addrB, addrC})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m := smallModel(t)

	a, err := Score(m, g, addrB)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if a.RiskScore < 0 || a.RiskScore > 1 {
		t.Errorf("score %f outside [0,1]", a.RiskScore)
	}
	if a.RiskCategory != Categorize(a.RiskScore) || a.TransactionCount != 2 || a.Message != "" {
		t.Errorf("unexpected assessment %+v", a)
	}

	u, err := Score(m, g, addrZ)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if u.RiskScore != 0 || u.RiskCategory != RiskLow || u.Message != NoTransactionsMessage {
		t.Errorf("unexpected unknown assessment %+v", u)
	}
}

func TestEvaluate_LookupOrDefault(t *testing.T) {
	g, _ := graph.NewBuilder(fixtureStore(), graph.DefaultOptions()).Build(context.Background(), []string{addrA})
	rows, err := Evaluate(smallModel(t), g, []string{addrA, addrZ}, 0.5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Score != 0 || rows[1].Prediction != 0 {
		t.Errorf("unknown address should score 0 / predict 0, got %+v", rows[1])
	}
	if rows[0].Prediction != Predict(rows[0].Score, 0.5) {
		t.Errorf("prediction does not match threshold: %+v", rows[0])
	}
}

func TestEvaluateLabeled(t *testing.T) {
	g, _ := graph.NewBuilder(fixtureStore(), graph.DefaultOptions()).Build(context.Background(), []string{addrA, addrB})
	labels := []models.LabeledAddress{{Address: addrA, Label: 1}, {Address: addrZ, Label: 0}}

	rows, report, err := EvaluateLabeled(smallModel(t), g, labels, 0.5)
	if err != nil {
		t.Fatalf("EvaluateLabeled: %v", err)
	}
	if len(rows) != 2 || report.Confusion.Total() != 2 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, []models.PredictionRow{
		{Address: addrA, Score: 0.91, Prediction: 1},
		{Address: addrZ, Score: 0, Prediction: 0},
	})
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	want := "ADDRESS,PREDICTION\n" + addrA + ",1\n" + addrZ + ",0\n"
	if buf.String() != want {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
}

func TestModelHandle_LoadsOnce(t *testing.T) {
	var calls atomic.Int32
	m := smallModel(t)
	h := NewModelHandle(func() (*gnn.Model, error) {
		calls.Add(1)
		return m, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := h.Get(); err != nil || got != m {
				t.Errorf("Get() = %p, %v", got, err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", calls.Load())
	}
}

func TestModelHandle_SwapAndFailure(t *testing.T) {
	h := NewModelHandle(func() (*gnn.Model, error) { return nil, errors.New("missing file") })
	if _, err := h.Get(); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if h.Loaded() {
		t.Error("handle should not report a model after a failed load")
	}

	m := smallModel(t)
	h.Swap(m)
	got, err := h.Get()
	if err != nil || got != m {
		t.Errorf("expected swapped model, got %p, %v", got, err)
	}
}

func TestModelHandle_RetriesAfterFailedLoad(t *testing.T) {
	var calls atomic.Int32
	m := smallModel(t)
	h := NewModelHandle(func() (*gnn.Model, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("model.bin not yet written")
		}
		return m, nil
	})
	h.SetLoadRetry(0)

	if _, err := h.Get(); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("first Get: expected ErrModelUnavailable, got %v", err)
	}
	got, err := h.Get()
	if err != nil || got != m {
		t.Fatalf("second Get: expected the model once the file exists, got %p, %v", got, err)
	}
	if _, err := h.Get(); err != nil {
		t.Fatalf("third Get: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("loader called %d times, want 2", calls.Load())
	}
	if !h.Loaded() {
		t.Error("handle should report the loaded model")
	}
}

func TestModelHandle_FailedLoadBacksOff(t *testing.T) {
	var calls atomic.Int32
	h := NewModelHandle(func() (*gnn.Model, error) {
		calls.Add(1)
		return nil, errors.New("missing file")
	})
	h.SetLoadRetry(time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := h.Get(); !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("Get %d: expected ErrModelUnavailable, got %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("loader called %d times within the retry window, want 1", calls.Load())
	}
}

func TestModelHandle_SwapBeforeFirstGet(t *testing.T) {
	var calls atomic.Int32
	h := NewModelHandle(func() (*gnn.Model, error) {
		calls.Add(1)
		return nil, errors.New("should not be called")
	})
	m := smallModel(t)
	h.Swap(m)

	if got, err := h.Get(); err != nil || got != m {
		t.Fatalf("expected swapped model, got %p, %v", got, err)
	}
	if calls.Load() != 0 {
		t.Error("loader must not run once a model was swapped in")
	}
}

func TestService_ScoreAddress(t *testing.T) {
	h := NewModelHandle(nil)
	h.Swap(smallModel(t))
	svc := NewService(graph.NewBuilder(fixtureStore(), graph.DefaultOptions()), h)

	a, err := svc.ScoreAddress(context.Background(), "0xBBBB000000000000000000000000000000000002")
	if err != nil {
		t.Fatalf("ScoreAddress: %v", err)
	}
	if a.Address != addrB || a.TransactionCount != 2 {
		t.Errorf("unexpected assessment %+v", a)
	}

	// No transactions at all: empty graph, default verdict.
	u, err := svc.ScoreAddress(context.Background(), addrZ)
	if err != nil {
		t.Fatalf("ScoreAddress: %v", err)
	}
	if u.RiskScore != 0 || u.RiskCategory != RiskLow || u.Message != NoTransactionsMessage {
		t.Errorf("unexpected default %+v", u)
	}

	if _, err := svc.ScoreAddress(context.Background(), "  "); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestService_NoModel(t *testing.T) {
	svc := NewService(graph.NewBuilder(fixtureStore(), graph.DefaultOptions()), NewModelHandle(nil))
	if _, err := svc.ScoreAddress(context.Background(), addrA); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestService_EvaluateAddresses(t *testing.T) {
	h := NewModelHandle(nil)
	h.Swap(smallModel(t))
	svc := NewService(graph.NewBuilder(fixtureStore(), graph.DefaultOptions()), h)

	rows, err := svc.EvaluateAddresses(context.Background(), []string{addrZ}, 0.5)
	if err != nil {
		t.Fatalf("EvaluateAddresses: %v", err)
	}
	if len(rows) != 1 || rows[0].Prediction != 0 || rows[0].Score != 0 {
		t.Errorf("unexpected rows %+v", rows)
	}
}
