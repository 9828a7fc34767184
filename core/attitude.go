package core

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/gbm-background/model"
)

// AttitudeProvider supplies spacecraft attitude and position over a time
// window (MET seconds). Implementations read position-history products or
// propagate an orbit.
type AttitudeProvider interface {
	History(ctx context.Context, start, stop float64) (*AttitudeHistory, error)
}

// AttitudeHistory is an ordered, immutable series of attitude samples with
// interpolated lookup. Safe for concurrent reads.
type AttitudeHistory struct {
	samples []AttitudeSample
}

// NewAttitudeHistory validates and sorts samples. At least two samples with
// strictly increasing times are required.
func NewAttitudeHistory(samples []AttitudeSample) (*AttitudeHistory, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: attitude history needs at least 2 samples, got %d", model.ErrMissingGeometry, len(samples))
	}
	cp := make([]AttitudeSample, len(samples))
	copy(cp, samples)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Time < cp[j].Time })
	for i := range cp {
		s := cp[i]
		if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) {
			return nil, fmt.Errorf("%w: sample %d has non-finite time", model.ErrMissingGeometry, i)
		}
		if i > 0 && s.Time <= cp[i-1].Time {
			return nil, fmt.Errorf("%w: duplicate sample time %g", model.ErrMissingGeometry, s.Time)
		}
		if s.Quaternion.Norm() == 0 {
			return nil, fmt.Errorf("%w: zero quaternion at t=%g", model.ErrMissingGeometry, s.Time)
		}
		cp[i].Quaternion = s.Quaternion.Normalize()
	}
	return &AttitudeHistory{samples: cp}, nil
}

// Span returns the first and last sample times.
func (h *AttitudeHistory) Span() (start, stop float64) {
	return h.samples[0].Time, h.samples[len(h.samples)-1].Time
}

// Len returns the number of samples.
func (h *AttitudeHistory) Len() int { return len(h.samples) }

// Samples returns a copy of the underlying samples.
func (h *AttitudeHistory) Samples() []AttitudeSample {
	out := make([]AttitudeSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// At interpolates the state at time t. Times outside the history fail with
// model.ErrOutOfRange; there is no silent extrapolation.
func (h *AttitudeHistory) At(t float64) (AttitudeSample, error) {
	start, stop := h.Span()
	if !(t >= start && t <= stop) {
		return AttitudeSample{}, fmt.Errorf("%w: t=%g outside attitude history [%g, %g]", model.ErrOutOfRange, t, start, stop)
	}
	return h.interpolate(t), nil
}

// AtClamped is At with times outside the history clamped to the nearest end
// sample. Only meant for array-boundary queries.
func (h *AttitudeHistory) AtClamped(t float64) AttitudeSample {
	start, stop := h.Span()
	switch {
	case t <= start:
		s := h.samples[0]
		s.Time = t
		return s
	case t >= stop:
		s := h.samples[len(h.samples)-1]
		s.Time = t
		return s
	}
	return h.interpolate(t)
}

func (h *AttitudeHistory) interpolate(t float64) AttitudeSample {
	j := sort.Search(len(h.samples), func(i int) bool { return h.samples[i].Time >= t })
	if h.samples[j].Time == t {
		return h.samples[j]
	}
	a, b := h.samples[j-1], h.samples[j]
	f := (t - a.Time) / (b.Time - a.Time)

	// q and -q are the same attitude; interpolate along the short arc.
	qb := b.Quaternion
	if a.Quaternion[0]*qb[0]+a.Quaternion[1]*qb[1]+a.Quaternion[2]*qb[2]+a.Quaternion[3]*qb[3] < 0 {
		qb = Quaternion{-qb[0], -qb[1], -qb[2], -qb[3]}
	}
	var q Quaternion
	for k := range q {
		q[k] = a.Quaternion[k] + f*(qb[k]-a.Quaternion[k])
	}
	return AttitudeSample{
		Time:       t,
		Quaternion: q.Normalize(),
		Position:   a.Position.Add(b.Position.Sub(a.Position).Scale(f)),
	}
}

// IsOcculted reports whether dir is blocked by the Earth at time t.
func (h *AttitudeHistory) IsOcculted(t float64, dir Direction) (bool, error) {
	s, err := h.At(t)
	if err != nil {
		return false, err
	}
	return IsOcculted(s, dir)
}

// GeometrySamples is the attitude evaluated at a fixed list of times, the
// unit that response-folded sources precompute against.
type GeometrySamples struct {
	Times   []float64
	Samples []AttitudeSample
}

// Sample evaluates the history at each time. Any time outside the history
// fails the whole call with model.ErrOutOfRange.
func (h *AttitudeHistory) Sample(times []float64) (GeometrySamples, error) {
	if len(times) == 0 {
		return GeometrySamples{}, fmt.Errorf("%w: no sample times", model.ErrMissingGeometry)
	}
	out := GeometrySamples{
		Times:   make([]float64, len(times)),
		Samples: make([]AttitudeSample, len(times)),
	}
	for i, t := range times {
		if i > 0 && t <= times[i-1] {
			return GeometrySamples{}, fmt.Errorf("%w: sample times must strictly increase (index %d)", model.ErrInvalidTimeBins, i)
		}
		s, err := h.At(t)
		if err != nil {
			return GeometrySamples{}, err
		}
		out.Times[i] = t
		out.Samples[i] = s
	}
	return out, nil
}

// Len returns the number of geometry samples.
func (g GeometrySamples) Len() int { return len(g.Times) }

// Covers reports whether [start, stop] lies within the sampled times.
func (g GeometrySamples) Covers(start, stop float64) bool {
	if len(g.Times) == 0 {
		return false
	}
	return start >= g.Times[0] && stop <= g.Times[len(g.Times)-1]
}
