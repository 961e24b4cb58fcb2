package bench

import (
	"math"
	"time"
)

// Stats summarizes a set of durations. StdDev is the population standard
// deviation. All fields are zero for an empty set.
type Stats struct {
	N      int
	Mean   time.Duration
	StdDev time.Duration
	Min    time.Duration
	Max    time.Duration
}

// Compute returns the statistics of ds.
func Compute(ds []time.Duration) Stats {
	if len(ds) == 0 {
		return Stats{}
	}

	s := Stats{N: len(ds), Min: ds[0], Max: ds[0]}
	var sum float64
	for _, d := range ds {
		sum += float64(d)
		s.Min = min(s.Min, d)
		s.Max = max(s.Max, d)
	}
	mean := sum / float64(len(ds))

	var sq float64
	for _, d := range ds {
		diff := float64(d) - mean
		sq += diff * diff
	}

	s.Mean = time.Duration(math.Round(mean))
	s.StdDev = time.Duration(math.Round(math.Sqrt(sq / float64(len(ds)))))
	return s
}
