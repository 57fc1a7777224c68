// Package trainer runs full-batch supervised training of the fraud GNN.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/rawblock/wallet-gnn/internal/gnn"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/metrics"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

var (
	// ErrDiverged marks a non-finite loss.
	ErrDiverged = errors.New("training diverged: non-finite loss")
	// ErrNoLabels is returned when masking leaves nothing to learn from.
	ErrNoLabels = errors.New("no labeled address is part of the graph")
)

// TrainingError aborts a run. Epoch is 1-based; 0 means the run failed
// before the first epoch. LastLoss is NaN when no loss was computed.
type TrainingError struct {
	Epoch    int
	LastLoss float64
	Err      error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed at epoch %d (last loss %.6f): %v", e.Epoch, e.LastLoss, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// Options configures a training run.
type Options struct {
	Epochs       int
	LearningRate float64
	WeightDecay  float64
	Threshold    float64 // Accuracy threshold on the sigmoid output
	LabelPolicy  LabelPolicy
	LogEvery     int // Log every n epochs; 0 disables per-epoch logs
}

// DefaultOptions mirrors the production training setup.
func DefaultOptions() Options {
	return Options{
		Epochs:       100,
		LearningRate: 1e-3,
		WeightDecay:  0.01,
		Threshold:    0.5,
		LabelPolicy:  SoftDefault,
		LogEvery:     10,
	}
}

// EpochStats records one epoch.
type EpochStats struct {
	Epoch    int     `json:"epoch"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// Result summarises a completed run. AverageAccuracy is the mean of the
// per-epoch training accuracies, not the best or the last.
type Result struct {
	AverageAccuracy float64       `json:"averageAccuracy"`
	FinalLoss       float64       `json:"finalLoss"`
	Epochs          int           `json:"epochs"`
	Labeled         int           `json:"labeled"`
	Nodes           int           `json:"nodes"`
	History         []EpochStats  `json:"history"`
	Duration        time.Duration `json:"duration"`
}

// Train fits the model in place on the full graph. The caller must hold the
// model exclusively for the duration of the run. Any failure aborts the
// whole run; there is no partial-epoch recovery.
func Train(ctx context.Context, model *gnn.Model, g *graph.Graph, labels []models.LabeledAddress, opts Options) (Result, error) {
	start := time.Now()
	lastLoss := math.NaN()
	fail := func(epoch int, err error) (Result, error) {
		return Result{}, &TrainingError{Epoch: epoch, LastLoss: lastLoss, Err: err}
	}

	if opts.Epochs <= 0 {
		return fail(0, fmt.Errorf("epochs must be positive, got %d", opts.Epochs))
	}

	x, adj, err := gnn.Inputs(g, model.Config())
	if err != nil {
		return fail(0, err)
	}

	lv := BuildLabelVector(g, labels, opts.LabelPolicy)
	if opts.LabelPolicy == MaskUnlabeled && lv.Labeled == 0 {
		return fail(0, ErrNoLabels)
	}
	if lv.Labeled == 0 {
		log.Printf("[Trainer] Warning: no labeled node in the graph, every target is %.1f", UnlabeledTarget)
	}

	opt := gnn.NewAdamW(opts.LearningRate, opts.WeightDecay)
	res := Result{
		Epochs:  opts.Epochs,
		Labeled: lv.Labeled,
		Nodes:   g.NumNodes(),
		History: make([]EpochStats, 0, opts.Epochs),
	}

	log.Printf("[Trainer] Starting: nodes=%d edges=%d labeled=%d epochs=%d policy=%s params=%d",
		g.NumNodes(), g.NumEdges(), lv.Labeled, opts.Epochs, opts.LabelPolicy, model.NumParams())

	accSum := 0.0
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fail(epoch, err)
		}

		pass, err := model.Forward(x, adj)
		if err != nil {
			return fail(epoch, err)
		}

		loss, dLogits, err := gnn.BCELoss(pass.Probs, lv.Targets, lv.Mask)
		if err != nil {
			return fail(epoch, err)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			lastLoss = loss
			return fail(epoch, ErrDiverged)
		}
		lastLoss = loss

		acc := accuracy(pass.Probs, lv.Targets, lv.Mask, opts.Threshold)

		grads, err := model.Backward(pass, dLogits)
		if err != nil {
			return fail(epoch, err)
		}
		if err := opt.Step(model.Params(), grads); err != nil {
			return fail(epoch, err)
		}

		accSum += acc
		res.History = append(res.History, EpochStats{Epoch: epoch, Loss: loss, Accuracy: acc})
		metrics.TrainingEpochs.Inc()
		metrics.TrainingLoss.Set(loss)

		if opts.LogEvery > 0 && (epoch%opts.LogEvery == 0 || epoch == opts.Epochs) {
			log.Printf("[Trainer] epoch %d/%d loss=%.6f acc=%.4f", epoch, opts.Epochs, loss, acc)
		}
	}

	res.FinalLoss = lastLoss
	res.AverageAccuracy = accSum / float64(opts.Epochs)
	res.Duration = time.Since(start)
	log.Printf("[Trainer] Training complete: average accuracy %.4f, final loss %.6f (%s)",
		res.AverageAccuracy, res.FinalLoss, res.Duration)
	return res, nil
}

// accuracy thresholds the outputs strictly (> threshold) and compares them
// to the targets. Soft 0.5 targets can never match a hard prediction.
func accuracy(probs, targets []float64, mask []bool, threshold float64) float64 {
	correct, total := 0, 0
	for i, p := range probs {
		if mask != nil && !mask[i] {
			continue
		}
		total++
		pred := 0.0
		if p > threshold {
			pred = 1
		}
		if pred == targets[i] {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
