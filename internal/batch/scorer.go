// Package batch scores large address lists in the background, persisting
// results and raising alerts for high-risk wallets as they are found.
package batch

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/wallet-gnn/internal/scoring"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// ErrAlreadyRunning is returned when a job is started while another runs.
var ErrAlreadyRunning = errors.New("batch scoring already in progress")

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("batch scorer stopped")

// Assessor scores a group of addresses against one shared graph.
type Assessor interface {
	AssessAddresses(ctx context.Context, addrs []string) ([]models.RiskAssessment, error)
}

// ResultSink persists assessments. Optional.
type ResultSink interface {
	SaveRiskAssessment(ctx context.Context, a models.RiskAssessment) error
}

// RiskAlert is emitted for every HIGH assessment.
type RiskAlert struct {
	JobID            string  `json:"jobId"`
	Address          string  `json:"address"`
	RiskScore        float64 `json:"riskScore"`
	RiskCategory     string  `json:"riskCategory"`
	TransactionCount int     `json:"transactionCount"`
	Timestamp        string  `json:"timestamp"`
}

// Progress is the scorer state exposed to the API.
type Progress struct {
	JobID     string `json:"jobId"`
	IsRunning bool   `json:"isRunning"`
	Total     int64  `json:"total"`
	Scored    int64  `json:"scored"`
	High      int64  `json:"high"`
	Medium    int64  `json:"medium"`
	Failed    int64  `json:"failed"`
}

// DefaultChunkSize is how many addresses share one graph build.
const DefaultChunkSize = 100

// Scorer runs one batch job at a time.
type Scorer struct {
	assessor  Assessor
	sink      ResultSink
	alertFunc func(RiskAlert) // Optional broadcast callback
	chunkSize int

	// base parents every job context; Stop cancels it.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Progress tracking (atomic for safe concurrent reads)
	jobID     atomic.Value
	isRunning atomic.Bool
	total     atomic.Int64
	scored    atomic.Int64
	high      atomic.Int64
	medium    atomic.Int64
	failed    atomic.Int64
}

// NewScorer creates a batch scorer. sink and alertFunc may be nil.
func NewScorer(assessor Assessor, sink ResultSink, alertFunc func(RiskAlert), chunkSize int) *Scorer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Scorer{
		assessor:  assessor,
		sink:      sink,
		alertFunc: alertFunc,
		chunkSize: chunkSize,
		base:      base,
		cancel:    cancel,
	}
	s.jobID.Store("")
	return s
}

// GetProgress returns the current job progress (thread-safe)
func (s *Scorer) GetProgress() Progress {
	return Progress{
		JobID:     s.jobID.Load().(string),
		IsRunning: s.isRunning.Load(),
		Total:     s.total.Load(),
		Scored:    s.scored.Load(),
		High:      s.high.Load(),
		Medium:    s.medium.Load(),
		Failed:    s.failed.Load(),
	}
}

// Start launches an asynchronous job over the addresses and returns its ID.
// The job ends early when ctx is cancelled or the scorer is stopped.
func (s *Scorer) Start(ctx context.Context, addrs []string) (string, error) {
	if s.base.Err() != nil {
		return "", ErrStopped
	}
	if !s.isRunning.CompareAndSwap(false, true) {
		log.Println("[BatchScorer] Job already in progress, ignoring duplicate request")
		return "", ErrAlreadyRunning
	}

	jobID := uuid.NewString()
	s.jobID.Store(jobID)
	s.total.Store(int64(len(addrs)))
	s.scored.Store(0)
	s.high.Store(0)
	s.medium.Store(0)
	s.failed.Store(0)

	jobCtx, jobCancel := context.WithCancel(s.base)
	stopAfter := context.AfterFunc(ctx, jobCancel)
	if ctx.Err() != nil {
		jobCancel()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.isRunning.Store(false)
		defer jobCancel()
		defer stopAfter()
		s.run(jobCtx, jobID, addrs)
	}()
	return jobID, nil
}

// Wait blocks until the running job, if any, has finished.
func (s *Scorer) Wait() {
	s.wg.Wait()
}

// Stop cancels the running job and waits for it to return. Later calls to
// Start fail with ErrStopped.
func (s *Scorer) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scorer) run(ctx context.Context, jobID string, addrs []string) {
	start := time.Now()
	log.Printf("[BatchScorer] Starting job %s: %d addresses in chunks of %d", jobID, len(addrs), s.chunkSize)

	for lo := 0; lo < len(addrs); lo += s.chunkSize {
		select {
		case <-ctx.Done():
			log.Printf("[BatchScorer] Job %s cancelled after %d/%d addresses", jobID, s.scored.Load(), len(addrs))
			return
		default:
		}

		hi := min(lo+s.chunkSize, len(addrs))
		chunk := addrs[lo:hi]

		assessments, err := s.assessor.AssessAddresses(ctx, chunk)
		if err != nil {
			s.failed.Add(int64(len(chunk)))
			log.Printf("[BatchScorer] Warning: chunk %d-%d failed: %v", lo, hi, err)
			continue
		}
		for _, a := range assessments {
			s.record(ctx, jobID, a)
		}

		if scored := s.scored.Load(); scored%1000 < int64(len(chunk)) {
			log.Printf("[BatchScorer] Progress: %d/%d scored | %d high | %d failed",
				scored, len(addrs), s.high.Load(), s.failed.Load())
		}
	}

	log.Printf("[BatchScorer] Job %s complete: %d scored, %d high risk, %d failed (%s)",
		jobID, s.scored.Load(), s.high.Load(), s.failed.Load(), time.Since(start))
}

func (s *Scorer) record(ctx context.Context, jobID string, a models.RiskAssessment) {
	s.scored.Add(1)
	switch a.RiskCategory {
	case scoring.RiskHigh:
		s.high.Add(1)
		if s.alertFunc != nil {
			s.alertFunc(RiskAlert{
				JobID:            jobID,
				Address:          a.Address,
				RiskScore:        a.RiskScore,
				RiskCategory:     a.RiskCategory,
				TransactionCount: a.TransactionCount,
				Timestamp:        time.Now().UTC().Format(time.RFC3339),
			})
		}
	case scoring.RiskMedium:
		s.medium.Add(1)
	}

	// Defaults for addresses without transactions are not stored.
	if s.sink != nil && a.TransactionCount > 0 {
		if err := s.sink.SaveRiskAssessment(ctx, a); err != nil {
			log.Printf("[BatchScorer] Warning: failed to persist assessment for %s: %v", a.Address, err)
		}
	}
}
