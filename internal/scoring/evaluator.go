// Package scoring applies a trained fraud model to transaction graphs:
// per-address risk assessments, batch predictions and CSV reports.
package scoring

import (
	"fmt"
	"log"
	"time"

	"github.com/rawblock/wallet-gnn/internal/address"
	"github.com/rawblock/wallet-gnn/internal/gnn"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/metrics"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// Scored holds the model output for every node of one graph.
type Scored struct {
	graph  *graph.Graph
	scores []float64
}

// Run performs a single forward pass over the graph.
func Run(model *gnn.Model, g *graph.Graph) (*Scored, error) {
	x, adj, err := gnn.Inputs(g, model.Config())
	if err != nil {
		return nil, err
	}
	pass, err := model.Forward(x, adj)
	if err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}
	return &Scored{graph: g, scores: pass.Probs}, nil
}

// Lookup returns the score of an address. ok is false when the address is
// not a node of the graph.
func (s *Scored) Lookup(addr string) (score float64, ok bool) {
	idx, ok := s.graph.Index(addr)
	if !ok {
		return 0, false
	}
	return s.scores[idx], true
}

// Assess builds the risk assessment for one address. Unknown addresses get
// the conservative default instead of an error.
func (s *Scored) Assess(addr string) models.RiskAssessment {
	idx, ok := s.graph.Index(addr)
	if !ok {
		return UnknownAssessment(addr)
	}
	score := s.scores[idx]
	category := Categorize(score)
	metrics.ScoresTotal.WithLabelValues(category).Inc()
	return models.RiskAssessment{
		Address:          address.Canonical(addr),
		RiskScore:        score,
		RiskCategory:     category,
		TransactionCount: s.graph.TransactionCount(idx),
		LastUpdated:      time.Now().UTC().Format(time.RFC3339),
	}
}

// Predictions applies the lookup-or-default rule to every address and
// thresholds the scores.
func (s *Scored) Predictions(addrs []string, threshold float64) []models.PredictionRow {
	rows := make([]models.PredictionRow, 0, len(addrs))
	missing := 0
	for _, a := range addrs {
		score, ok := s.Lookup(a)
		if !ok {
			missing++
		}
		rows = append(rows, models.PredictionRow{Address: a, Score: score, Prediction: Predict(score, threshold)})
	}
	if missing > 0 {
		log.Printf("[Scorer] Warning: %d of %d addresses not in graph, scored 0.0", missing, len(addrs))
	}
	return rows
}

// UnknownAssessment is the default verdict for an address without
// qualifying transactions.
func UnknownAssessment(addr string) models.RiskAssessment {
	metrics.UnknownAddresses.Inc()
	metrics.ScoresTotal.WithLabelValues(RiskLow).Inc()
	return models.RiskAssessment{
		Address:      address.Canonical(addr),
		RiskScore:    0,
		RiskCategory: RiskLow,
		Message:      NoTransactionsMessage,
	}
}

// Score runs the model over g and assesses one address.
func Score(model *gnn.Model, g *graph.Graph, addr string) (models.RiskAssessment, error) {
	s, err := Run(model, g)
	if err != nil {
		return models.RiskAssessment{}, err
	}
	return s.Assess(addr), nil
}

// Evaluate scores a batch of addresses against one graph and returns the
// thresholded predictions.
func Evaluate(model *gnn.Model, g *graph.Graph, addrs []string, threshold float64) ([]models.PredictionRow, error) {
	s, err := Run(model, g)
	if err != nil {
		return nil, err
	}
	return s.Predictions(addrs, threshold), nil
}

// EvaluateLabeled scores a labeled test set and summarises the result.
func EvaluateLabeled(model *gnn.Model, g *graph.Graph, labels []models.LabeledAddress, threshold float64) ([]models.PredictionRow, metrics.Report, error) {
	addrs := make([]string, len(labels))
	truth := make([]int, len(labels))
	for i, l := range labels {
		addrs[i] = l.Address
		if l.Label >= 0.5 {
			truth[i] = 1
		}
	}

	rows, err := Evaluate(model, g, addrs, threshold)
	if err != nil {
		return nil, metrics.Report{}, err
	}

	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i] = r.Score
	}
	report, err := metrics.Evaluate(scores, truth, threshold)
	if err != nil {
		return nil, metrics.Report{}, err
	}
	return rows, report, nil
}
