// Package shadow runs a candidate model next to the production model over
// the same graph and reports where their risk verdicts diverge. Candidate
// scores are never persisted or served.
package shadow

import (
	"errors"
	"log"
	"math"

	"github.com/rawblock/wallet-gnn/internal/gnn"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/scoring"
)

// ErrNoModel is returned when either side of the comparison is missing.
var ErrNoModel = errors.New("shadow: production and candidate models are required")

// Comparison is the side-by-side verdict for one address.
type Comparison struct {
	Address            string  `json:"address"`
	ProductionScore    float64 `json:"productionScore"`
	ShadowScore        float64 `json:"shadowScore"`
	ProductionCategory string  `json:"productionCategory"`
	ShadowCategory     string  `json:"shadowCategory"`
	Delta              float64 `json:"delta"` // shadow - production
}

// Diverged reports whether the two models put the address in different
// risk categories.
func (c Comparison) Diverged() bool {
	return c.ProductionCategory != c.ShadowCategory
}

// DriftReport summarises a comparison run.
type DriftReport struct {
	Total           int     `json:"total"`
	Divergences     int     `json:"divergences"`     // category changes
	PredictionFlips int     `json:"predictionFlips"` // threshold decision changes
	MeanAbsDelta    float64 `json:"meanAbsDelta"`
	MaxAbsDelta     float64 `json:"maxAbsDelta"`
	Agreement       float64 `json:"agreement"` // share of addresses in the same category
}

// Runner compares a production model against a candidate.
type Runner struct {
	production *gnn.Model
	shadow     *gnn.Model
	threshold  float64
}

// NewRunner creates a runner that thresholds predictions at threshold.
func NewRunner(production, shadow *gnn.Model, threshold float64) (*Runner, error) {
	if production == nil || shadow == nil {
		return nil, ErrNoModel
	}
	return &Runner{production: production, shadow: shadow, threshold: threshold}, nil
}

// Compare scores addrs with both models over g. Addresses that are not
// graph nodes score 0 under both models and never diverge.
func (r *Runner) Compare(g *graph.Graph, addrs []string) ([]Comparison, DriftReport, error) {
	prod, err := scoring.Run(r.production, g)
	if err != nil {
		return nil, DriftReport{}, err
	}
	cand, err := scoring.Run(r.shadow, g)
	if err != nil {
		return nil, DriftReport{}, err
	}

	out := make([]Comparison, len(addrs))
	report := DriftReport{Total: len(addrs)}
	absSum := 0.0
	for i, a := range addrs {
		ps, _ := prod.Lookup(a)
		ss, _ := cand.Lookup(a)
		c := Comparison{
			Address:            a,
			ProductionScore:    ps,
			ShadowScore:        ss,
			ProductionCategory: scoring.Categorize(ps),
			ShadowCategory:     scoring.Categorize(ss),
			Delta:              ss - ps,
		}
		out[i] = c

		abs := math.Abs(c.Delta)
		absSum += abs
		report.MaxAbsDelta = math.Max(report.MaxAbsDelta, abs)
		if c.Diverged() {
			report.Divergences++
			log.Printf("[Shadow] DIVERGENCE on %s: prod=%.4f (%s) shadow=%.4f (%s)",
				a, ps, c.ProductionCategory, ss, c.ShadowCategory)
		}
		if scoring.Predict(ps, r.threshold) != scoring.Predict(ss, r.threshold) {
			report.PredictionFlips++
		}
	}

	if report.Total > 0 {
		report.MeanAbsDelta = absSum / float64(report.Total)
		report.Agreement = float64(report.Total-report.Divergences) / float64(report.Total)
	} else {
		report.Agreement = 1
	}
	return out, report, nil
}
