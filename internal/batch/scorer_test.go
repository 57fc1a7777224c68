package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rawblock/wallet-gnn/internal/scoring"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// stubAssessor returns a fixed score per address and fails any chunk that
// contains "bad".
type stubAssessor struct {
	scores map[string]float64
	block  chan struct{}
}

func (a *stubAssessor) AssessAddresses(_ context.Context, addrs []string) ([]models.RiskAssessment, error) {
	if a.block != nil {
		<-a.block
	}
	out := make([]models.RiskAssessment, 0, len(addrs))
	for _, addr := range addrs {
		if addr == "bad" {
			return nil, errors.New("store unavailable")
		}
		s, known := a.scores[addr]
		txs := 0
		if known {
			txs = 1
		}
		out = append(out, models.RiskAssessment{Address: addr, RiskScore: s, RiskCategory: scoring.Categorize(s), TransactionCount: txs})
	}
	return out, nil
}

type memorySink struct {
	mu    sync.Mutex
	saved []models.RiskAssessment
}

func (m *memorySink) SaveRiskAssessment(_ context.Context, a models.RiskAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, a)
	return nil
}

func TestScorer_RunsJob(t *testing.T) {
	assessor := &stubAssessor{scores: map[string]float64{"a": 0.95, "b": 0.6, "c": 0.1, "d": 0.85}}
	sink := &memorySink{}
	var alerts []RiskAlert
	var mu sync.Mutex

	s := NewScorer(assessor, sink, func(a RiskAlert) {
		mu.Lock()
		alerts = append(alerts, a)
		mu.Unlock()
	}, 2)

	jobID, err := s.Start(context.Background(), []string{"a", "b", "bad", "c", "d"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Wait()

	p := s.GetProgress()
	if p.JobID != jobID || p.IsRunning {
		t.Errorf("unexpected progress %+v", p)
	}
	// Chunks: [a b] [bad c] [d]; the middle chunk fails as a whole.
	if p.Total != 5 || p.Scored != 3 || p.Failed != 2 || p.High != 2 || p.Medium != 1 {
		t.Errorf("unexpected counters %+v", p)
	}
	if len(sink.saved) != 3 {
		t.Errorf("expected 3 persisted assessments, got %d", len(sink.saved))
	}
	if len(alerts) != 2 || alerts[0].JobID != jobID {
		t.Errorf("expected 2 HIGH alerts for job %s, got %+v", jobID, alerts)
	}
}

func TestScorer_RejectsConcurrentJobs(t *testing.T) {
	assessor := &stubAssessor{scores: map[string]float64{}, block: make(chan struct{})}
	s := NewScorer(assessor, nil, nil, 10)

	if _, err := s.Start(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Start(context.Background(), []string{"b"}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	close(assessor.block)
	s.Wait()
	if s.GetProgress().IsRunning {
		t.Error("job should have finished")
	}
}

func TestScorer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScorer(&stubAssessor{scores: map[string]float64{}}, nil, nil, 1)
	if _, err := s.Start(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Wait()
	if got := s.GetProgress().Scored; got != 0 {
		t.Errorf("cancelled job scored %d addresses", got)
	}
}

// ctxAssessor blocks every chunk until its context is cancelled.
type ctxAssessor struct {
	started chan struct{}
	once    sync.Once
}

func (a *ctxAssessor) AssessAddresses(ctx context.Context, _ []string) ([]models.RiskAssessment, error) {
	a.once.Do(func() { close(a.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScorer_StopCancelsRunningJob(t *testing.T) {
	assessor := &ctxAssessor{started: make(chan struct{})}
	s := NewScorer(assessor, nil, nil, 1)

	addrs := make([]string, 500)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("0x%040x", i)
	}
	// A request-independent parent, as the HTTP handler uses.
	if _, err := s.Start(context.Background(), addrs); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-assessor.started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the running job")
	}

	p := s.GetProgress()
	if p.IsRunning {
		t.Error("job should have finished after Stop")
	}
	if p.Scored != 0 || p.Failed > 1 {
		t.Errorf("expected the job to end at its first chunk, got %+v", p)
	}
	if _, err := s.Start(context.Background(), addrs); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after Stop, got %v", err)
	}
}
