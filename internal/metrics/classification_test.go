package metrics

import (
	"math"
	"testing"
)

func TestConfusion_Counts(t *testing.T) {
	predicted := []int{1, 1, 0, 0, 1, 0}
	groundTruth := []int{1, 0, 0, 1, 1, 0}

	c, err := NewConfusion(predicted, groundTruth)
	if err != nil {
		t.Fatalf("NewConfusion: %v", err)
	}
	if c.TP != 2 || c.FP != 1 || c.TN != 2 || c.FN != 1 {
		t.Fatalf("unexpected confusion %+v", c)
	}
	if math.Abs(c.Accuracy()-4.0/6.0) > 1e-9 {
		t.Errorf("Expected accuracy 0.667. Got: %f", c.Accuracy())
	}
	if math.Abs(c.Precision()-2.0/3.0) > 1e-9 {
		t.Errorf("Expected precision 0.667. Got: %f", c.Precision())
	}
	if math.Abs(c.Recall()-2.0/3.0) > 1e-9 {
		t.Errorf("Expected recall 0.667. Got: %f", c.Recall())
	}
	if math.Abs(c.F1()-2.0/3.0) > 1e-9 {
		t.Errorf("Expected F1 0.667. Got: %f", c.F1())
	}
}

func TestConfusion_LengthMismatch(t *testing.T) {
	if _, err := NewConfusion([]int{1}, []int{1, 0}); err == nil {
		t.Error("Expected an error for mismatched lengths")
	}
}

func TestConfusion_NoPositives(t *testing.T) {
	c, _ := NewConfusion([]int{0, 0}, []int{0, 0})
	if c.Precision() != 0 || c.Recall() != 0 || c.F1() != 0 {
		t.Errorf("Expected zero precision/recall/F1 without positives. Got: %+v", c)
	}
	if c.Accuracy() != 1 {
		t.Errorf("Expected accuracy 1. Got: %f", c.Accuracy())
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		labels []int
		want   float64
	}{
		{"perfect", []float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1}, 1},
		{"inverted", []float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1}, 0},
		{"all tied", []float64{0.5, 0.5, 0.5, 0.5}, []int{0, 1, 0, 1}, 0.5},
		{"single class", []float64{0.1, 0.9}, []int{1, 1}, 0.5},
		{"one swap", []float64{0.1, 0.6, 0.5, 0.9}, []int{0, 0, 1, 1}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ROCAUC(tt.scores, tt.labels); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected AUC=%f. Got: %f", tt.want, got)
			}
		})
	}
}

func TestEvaluate_ThresholdInclusive(t *testing.T) {
	r, err := Evaluate([]float64{0.5, 0.49}, []int{1, 0}, 0.5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if r.Confusion.TP != 1 || r.Confusion.TN != 1 {
		t.Errorf("Expected score == threshold to count as positive. Got: %+v", r.Confusion)
	}
}

func TestStatusBucket(t *testing.T) {
	if statusBucket(200) != "2xx" || statusBucket(429) != "4xx" || statusBucket(503) != "5xx" {
		t.Error("unexpected status buckets")
	}
}
