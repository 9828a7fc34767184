package model

import "fmt"

// Layout fixes the detector ordering, detected energy binning and selected
// energy channels of one model instance. Every component summed into the
// same model must report an equal Layout.
type Layout struct {
	Detectors []string
	Energy    EnergyGrid
	// Echans selects detected channels by index into Energy. Empty means
	// every channel.
	Echans []int
}

// Validate checks the detector list and echan selection.
func (l Layout) Validate() error {
	if len(l.Detectors) == 0 {
		return fmt.Errorf("%w: layout has no detectors", ErrInconsistentGrid)
	}
	seen := make(map[string]struct{}, len(l.Detectors))
	for _, d := range l.Detectors {
		if _, dup := seen[d]; dup {
			return fmt.Errorf("%w: detector %q listed twice", ErrInconsistentGrid, d)
		}
		seen[d] = struct{}{}
	}
	if l.Energy.NumBins() == 0 {
		return fmt.Errorf("%w: layout has no energy grid", ErrInconsistentGrid)
	}
	for i, e := range l.Echans {
		if e < 0 || e >= l.Energy.NumBins() {
			return fmt.Errorf("%w: echan %d out of range [0,%d)", ErrInconsistentGrid, e, l.Energy.NumBins())
		}
		if i > 0 && e <= l.Echans[i-1] {
			return fmt.Errorf("%w: echans must be strictly increasing", ErrInconsistentGrid)
		}
	}
	return nil
}

// Channels returns the selected channel indices, expanding an empty
// selection to all channels.
func (l Layout) Channels() []int {
	if len(l.Echans) > 0 {
		out := make([]int, len(l.Echans))
		copy(out, l.Echans)
		return out
	}
	out := make([]int, l.Energy.NumBins())
	for i := range out {
		out[i] = i
	}
	return out
}

// NumDetectors returns the detector count.
func (l Layout) NumDetectors() int { return len(l.Detectors) }

// NumEchans returns the selected channel count.
func (l Layout) NumEchans() int {
	if len(l.Echans) > 0 {
		return len(l.Echans)
	}
	return l.Energy.NumBins()
}

// DetectorIndex returns the position of name, or -1.
func (l Layout) DetectorIndex(name string) int {
	for i, d := range l.Detectors {
		if d == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both layouts describe the same canonical grid.
func (l Layout) Equal(other Layout) bool {
	if len(l.Detectors) != len(other.Detectors) || !l.Energy.Equal(other.Energy) {
		return false
	}
	for i := range l.Detectors {
		if l.Detectors[i] != other.Detectors[i] {
			return false
		}
	}
	a, b := l.Channels(), other.Channels()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Require returns ErrInconsistentGrid naming who when other differs.
func (l Layout) Require(other Layout, who string) error {
	if !l.Equal(other) {
		return fmt.Errorf("%w: %s layout (dets=%v, %v, echans=%v) differs from model (dets=%v, %v, echans=%v)",
			ErrInconsistentGrid, who, other.Detectors, other.Energy, other.Channels(), l.Detectors, l.Energy, l.Channels())
	}
	return nil
}
