package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/rawblock/wallet-gnn/internal/address"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// ErrInvalidAddress is returned for blank addresses.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Service ties the graph builder to the shared model handle for online
// scoring. Graphs are rebuilt from the store for every request.
type Service struct {
	builder *graph.Builder
	handle  *ModelHandle
}

// NewService creates a scoring service.
func NewService(builder *graph.Builder, handle *ModelHandle) *Service {
	return &Service{builder: builder, handle: handle}
}

// Handle exposes the shared model handle.
func (s *Service) Handle() *ModelHandle { return s.handle }

// ScoreAddress builds the graph around one address and assesses it. An
// address without qualifying transactions gets the default assessment.
func (s *Service) ScoreAddress(ctx context.Context, addr string) (models.RiskAssessment, error) {
	assessments, err := s.AssessAddresses(ctx, []string{addr})
	if err != nil {
		return models.RiskAssessment{}, err
	}
	return assessments[0], nil
}

// AssessAddresses builds one graph over all addresses and assesses each of
// them against it.
func (s *Service) AssessAddresses(ctx context.Context, addrs []string) ([]models.RiskAssessment, error) {
	scored, err := s.run(ctx, addrs)
	if err != nil {
		return nil, err
	}

	out := make([]models.RiskAssessment, len(addrs))
	for i, a := range addrs {
		if scored == nil {
			out[i] = UnknownAssessment(a)
			continue
		}
		out[i] = scored.Assess(a)
	}
	return out, nil
}

// EvaluateAddresses returns thresholded predictions for a batch.
func (s *Service) EvaluateAddresses(ctx context.Context, addrs []string, threshold float64) ([]models.PredictionRow, error) {
	scored, err := s.run(ctx, addrs)
	if err != nil {
		return nil, err
	}
	if scored == nil {
		rows := make([]models.PredictionRow, len(addrs))
		for i, a := range addrs {
			rows[i] = models.PredictionRow{Address: a, Prediction: Predict(0, threshold)}
		}
		return rows, nil
	}
	return scored.Predictions(addrs, threshold), nil
}

// run validates input, fetches the model and scores the batch graph. A nil
// result with a nil error means the graph came out empty.
func (s *Service) run(ctx context.Context, addrs []string) (*Scored, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no addresses given", ErrInvalidAddress)
	}
	for _, a := range addrs {
		if address.Canonical(a) == "" {
			return nil, fmt.Errorf("%w: blank address", ErrInvalidAddress)
		}
	}

	model, err := s.handle.Get()
	if err != nil {
		return nil, err
	}

	g, err := s.builder.Build(ctx, addrs)
	if errors.Is(err, graph.ErrEmptyGraph) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return Run(model, g)
}
