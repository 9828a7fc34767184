// Package timectrl chooses the sparse times at which geometry and rates
// are sampled before interpolation onto the full time-bin grid.
package timectrl

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/gbm-background/model"
)

// DefaultMaxSamples bounds the geometry pass when no limit is given.
const DefaultMaxSamples = 800

// Schedule returns strictly increasing sample times covering bins: the
// first bin start, every k-th bin midpoint, and the last bin stop, with k
// the smallest stride that keeps the total within maxSamples. Including
// both ends means a bin-edge query never extrapolates.
func Schedule(bins model.TimeBinGrid, maxSamples int) ([]float64, error) {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if maxSamples < 2 {
		return nil, fmt.Errorf("%w: need room for at least 2 samples, got %d", model.ErrInvalidTimeBins, maxSamples)
	}
	n := bins.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: no bins to schedule", model.ErrInvalidTimeBins)
	}

	start, stop := bins.Span()
	times := make([]float64, 0, maxSamples)
	times = append(times, start)
	if stride := Stride(n, maxSamples); stride > 0 {
		for i := 0; i < n; i += stride {
			times = appendIncreasing(times, bins.Bin(i).Mid())
		}
	}
	times = appendIncreasing(times, stop)
	return times, nil
}

func appendIncreasing(times []float64, t float64) []float64 {
	if t > times[len(times)-1] {
		return append(times, t)
	}
	return times
}

// Stride returns how many bins separate consecutive scheduled midpoints.
func Stride(n, maxSamples int) int {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	budget := maxSamples - 2
	if budget <= 0 || n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / float64(budget)))
}
