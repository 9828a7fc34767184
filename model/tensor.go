package model

import (
	"fmt"
	"math"
)

// RateTensor is a dense [time, detector, echan] array of predicted counts
// per time bin.
type RateTensor struct {
	NTime, NDet, NEchan int
	Data                []float64
}

// NewRateTensor allocates a zeroed tensor.
func NewRateTensor(nTime, nDet, nEchan int) *RateTensor {
	return &RateTensor{
		NTime:  nTime,
		NDet:   nDet,
		NEchan: nEchan,
		Data:   make([]float64, nTime*nDet*nEchan),
	}
}

// NewRateTensorFor allocates a zeroed tensor shaped for bins and layout.
func NewRateTensorFor(bins TimeBinGrid, layout Layout) *RateTensor {
	return NewRateTensor(bins.Len(), layout.NumDetectors(), layout.NumEchans())
}

func (r *RateTensor) index(t, d, e int) int { return (t*r.NDet+d)*r.NEchan + e }

// At returns element [t, d, e].
func (r *RateTensor) At(t, d, e int) float64 { return r.Data[r.index(t, d, e)] }

// Set stores v at [t, d, e].
func (r *RateTensor) Set(t, d, e int, v float64) { r.Data[r.index(t, d, e)] = v }

// Row returns the echan slice at [t, d]; it aliases the tensor.
func (r *RateTensor) Row(t, d int) []float64 {
	i := r.index(t, d, 0)
	return r.Data[i : i+r.NEchan]
}

// SameShape reports whether both tensors have equal dimensions.
func (r *RateTensor) SameShape(other *RateTensor) bool {
	return r.NTime == other.NTime && r.NDet == other.NDet && r.NEchan == other.NEchan
}

// Add accumulates other element-wise. Shapes must match exactly.
func (r *RateTensor) Add(other *RateTensor) error {
	if !r.SameShape(other) {
		return fmt.Errorf("%w: tensor shape [%d,%d,%d] vs [%d,%d,%d]", ErrInconsistentGrid,
			r.NTime, r.NDet, r.NEchan, other.NTime, other.NDet, other.NEchan)
	}
	for i, v := range other.Data {
		r.Data[i] += v
	}
	return nil
}

// Scale multiplies every element by k.
func (r *RateTensor) Scale(k float64) {
	for i := range r.Data {
		r.Data[i] *= k
	}
}

// Clone returns a deep copy.
func (r *RateTensor) Clone() *RateTensor {
	out := NewRateTensor(r.NTime, r.NDet, r.NEchan)
	copy(out.Data, r.Data)
	return out
}

// AllFinite reports whether no element is NaN or Inf, returning the first
// offending flat index otherwise.
func (r *RateTensor) AllFinite() (bool, int) {
	for i, v := range r.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, i
		}
	}
	return true, -1
}

// PerSecond converts counts per bin into counts per second.
func (r *RateTensor) PerSecond(bins TimeBinGrid) (*RateTensor, error) {
	if bins.Len() != r.NTime {
		return nil, fmt.Errorf("%w: %d bins for tensor with %d time rows", ErrInconsistentGrid, bins.Len(), r.NTime)
	}
	out := r.Clone()
	for t := 0; t < r.NTime; t++ {
		w := bins.Bin(t).Width()
		for d := 0; d < r.NDet; d++ {
			row := out.Row(t, d)
			for e := range row {
				row[e] /= w
			}
		}
	}
	return out, nil
}
