// Package metrics holds evaluation statistics for labeled test sets and the
// Prometheus instrumentation shared by the engine.
package metrics

import (
	"fmt"
	"sort"
)

// Confusion is a binary confusion matrix. Positive means fraudulent (1).
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// NewConfusion tallies thresholded predictions against ground truth.
// Mismatched lengths are an error rather than a silent truncation.
func NewConfusion(predicted, groundTruth []int) (Confusion, error) {
	var c Confusion
	if len(predicted) != len(groundTruth) {
		return c, fmt.Errorf("confusion: %d predictions vs %d labels", len(predicted), len(groundTruth))
	}
	for i := range predicted {
		switch {
		case predicted[i] == 1 && groundTruth[i] == 1:
			c.TP++
		case predicted[i] == 1:
			c.FP++
		case groundTruth[i] == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Total returns the number of tallied samples.
func (c Confusion) Total() int { return c.TP + c.FP + c.TN + c.FN }

// Accuracy = (TP + TN) / total
func (c Confusion) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.Total())
}

// Precision = TP / (TP + FP)
func (c Confusion) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// Recall = TP / (TP + FN)
func (c Confusion) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Report bundles the headline numbers for logs and API responses.
type Report struct {
	Confusion Confusion `json:"confusion"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	AUC       float64   `json:"auc"`
}

// Evaluate builds a Report from continuous scores, a decision threshold and
// binary labels. A score >= threshold counts as a positive prediction.
func Evaluate(scores []float64, groundTruth []int, threshold float64) (Report, error) {
	predicted := make([]int, len(scores))
	for i, s := range scores {
		if s >= threshold {
			predicted[i] = 1
		}
	}
	c, err := NewConfusion(predicted, groundTruth)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Confusion: c,
		Accuracy:  c.Accuracy(),
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
		AUC:       ROCAUC(scores, groundTruth),
	}, nil
}

// ROCAUC computes the area under the ROC curve via the rank-sum
// (Mann-Whitney U) formulation:
//
// AUC = (R_pos - n_pos*(n_pos+1)/2) / (n_pos * n_neg)
//
// where R_pos is the sum of the (1-based, tie-averaged) ranks of positive
// samples. Returns 0.5 when either class is absent.
func ROCAUC(scores []float64, groundTruth []int) float64 {
	n := len(scores)
	if n != len(groundTruth) || n == 0 {
		return 0.5
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		// Tied block [i, j] shares the average rank.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	nPos, nNeg := 0, 0
	rankSum := 0.0
	for i, y := range groundTruth {
		if y == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	u := rankSum - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
