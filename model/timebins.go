package model

import "fmt"

// TimeBin is a [Start, Stop) interval in mission elapsed time (seconds).
type TimeBin struct {
	Start float64
	Stop  float64
}

// Mid returns the bin midpoint.
func (b TimeBin) Mid() float64 { return 0.5 * (b.Start + b.Stop) }

// Width returns the bin duration in seconds.
func (b TimeBin) Width() float64 { return b.Stop - b.Start }

// TimeBinGrid is the canonical, time-ordered sequence of bins used to index
// every rate tensor of one model instance. Gaps between bins are allowed
// (SAA passages, data-quality cuts); overlaps are not.
type TimeBinGrid struct {
	bins []TimeBin
}

// NewTimeBinGrid validates and copies bins.
func NewTimeBinGrid(bins []TimeBin) (TimeBinGrid, error) {
	if len(bins) == 0 {
		return TimeBinGrid{}, fmt.Errorf("%w: no bins", ErrInvalidTimeBins)
	}
	for i, b := range bins {
		if !(b.Stop > b.Start) {
			return TimeBinGrid{}, fmt.Errorf("%w: bin %d has start %v >= stop %v", ErrInvalidTimeBins, i, b.Start, b.Stop)
		}
		if i > 0 && b.Start < bins[i-1].Stop {
			return TimeBinGrid{}, fmt.Errorf("%w: bin %d starts at %v before previous stop %v", ErrInvalidTimeBins, i, b.Start, bins[i-1].Stop)
		}
	}
	out := make([]TimeBin, len(bins))
	copy(out, bins)
	return TimeBinGrid{bins: out}, nil
}

// MustTimeBinGrid is NewTimeBinGrid for static inputs; it panics on error.
func MustTimeBinGrid(bins []TimeBin) TimeBinGrid {
	g, err := NewTimeBinGrid(bins)
	if err != nil {
		panic(err)
	}
	return g
}

// ContiguousTimeBins builds n back-to-back bins of equal width from start.
func ContiguousTimeBins(start, width float64, n int) (TimeBinGrid, error) {
	if n <= 0 || !(width > 0) {
		return TimeBinGrid{}, fmt.Errorf("%w: n=%d width=%v", ErrInvalidTimeBins, n, width)
	}
	bins := make([]TimeBin, n)
	for i := range bins {
		bins[i] = TimeBin{Start: start + float64(i)*width, Stop: start + float64(i+1)*width}
	}
	return TimeBinGrid{bins: bins}, nil
}

// Len returns the number of bins.
func (g TimeBinGrid) Len() int { return len(g.bins) }

// Bin returns bin i.
func (g TimeBinGrid) Bin(i int) TimeBin { return g.bins[i] }

// Bins returns a copy of the bins.
func (g TimeBinGrid) Bins() []TimeBin {
	out := make([]TimeBin, len(g.bins))
	copy(out, g.bins)
	return out
}

// Mids returns the bin midpoints.
func (g TimeBinGrid) Mids() []float64 {
	out := make([]float64, len(g.bins))
	for i, b := range g.bins {
		out[i] = b.Mid()
	}
	return out
}

// Span returns the first start and the last stop.
func (g TimeBinGrid) Span() (float64, float64) {
	if len(g.bins) == 0 {
		return 0, 0
	}
	return g.bins[0].Start, g.bins[len(g.bins)-1].Stop
}

// Equal reports whether both grids hold identical bins.
func (g TimeBinGrid) Equal(other TimeBinGrid) bool {
	if len(g.bins) != len(other.bins) {
		return false
	}
	for i := range g.bins {
		if g.bins[i] != other.bins[i] {
			return false
		}
	}
	return true
}
