package graph

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Store timestamps look like "2024-03-01 12:34:56+0000". A few close
// variants show up in exported datasets, so they are accepted as well.
var timestampLayouts = []string{
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339,
}

// ParseTimestamp converts a store timestamp into unix seconds.
// Unparseable input yields 0 (epoch) instead of an error.
func ParseTimestamp(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return float64(ts.Unix())
		}
	}
	return 0
}

// GapStats holds the (min, mean, max) of consecutive gaps between sorted
// timestamps.
type GapStats struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// ComputeGapStats sorts the timestamps and summarises the differences
// between neighbours. Epoch-zero entries (unparseable timestamps) are
// ignored. Fewer than two usable timestamps gives a zero triple.
func ComputeGapStats(timestamps []float64) GapStats {
	usable := make([]float64, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts != 0 {
			usable = append(usable, ts)
		}
	}
	if len(usable) < 2 {
		return GapStats{}
	}

	sort.Float64s(usable)

	minGap := math.Inf(1)
	maxGap := math.Inf(-1)
	sum := 0.0
	for i := 1; i < len(usable); i++ {
		gap := usable[i] - usable[i-1]
		sum += gap
		if gap < minGap {
			minGap = gap
		}
		if gap > maxGap {
			maxGap = gap
		}
	}

	return GapStats{
		Min:  minGap,
		Mean: sum / float64(len(usable)-1),
		Max:  maxGap,
	}
}
