package graph

import "testing"

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"2024-03-01 12:00:00+0000", 1709294400},
		{"2024-03-01 14:00:00+0200", 1709294400},
		{"2024-03-01 12:00:00+00:00", 1709294400},
		{"2024-03-01T12:00:00Z", 1709294400},
		{"", 0},
		{"yesterday", 0},
	}
	for _, tt := range tests {
		if got := ParseTimestamp(tt.raw); got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %f, want %f", tt.raw, got, tt.want)
		}
	}
}

func TestComputeGapStats(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want GapStats
	}{
		{"empty", nil, GapStats{}},
		{"single", []float64{100}, GapStats{}},
		{"unsorted", []float64{300, 100, 150}, GapStats{Min: 50, Mean: 100, Max: 150}},
		{"epoch zero ignored", []float64{0, 100, 0, 200}, GapStats{Min: 100, Mean: 100, Max: 100}},
		{"only epoch zero", []float64{0, 0}, GapStats{}},
		{"duplicates", []float64{10, 10, 40}, GapStats{Min: 0, Mean: 15, Max: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeGapStats(tt.in); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
