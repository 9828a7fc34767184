package source

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/internal/spectrum"
	"github.com/signalsfoundry/gbm-background/model"
)

// Interpolation selects how rates are interpolated between geometry
// sample times.
type Interpolation int

const (
	// Linear is piecewise-linear interpolation.
	Linear Interpolation = iota
	// NaturalCubic is a natural cubic spline; it needs at least three
	// samples and falls back to Linear otherwise.
	NaturalCubic
)

// ResponseSource is a response-folded component: at each geometry sample
// time it holds, per detector, an effective response mapping the incoming
// photon flux to the selected echans. Rates are interpolated in time and
// integrated over each bin with the trapezoidal rule.
type ResponseSource struct {
	name   string
	kind   Kind
	layout model.Layout
	in     model.EnergyGrid

	times []float64
	// eff[d] has one row per (sample, echan), row k*E+e, and one column
	// per incoming bin.
	eff []*mat.Dense

	spec          Spectrum
	interpolation Interpolation
	state         State

	// unit holds interpolants at norm 1 when the spectrum is fixed, indexed
	// d*E+e.
	unit []interp.Predictor
}

func newResponseSource(name string, kind Kind, layout model.Layout, in model.EnergyGrid, times []float64, eff []*mat.Dense, spec Spectrum, how Interpolation) (*ResponseSource, error) {
	s := &ResponseSource{
		name:          name,
		kind:          kind,
		layout:        layout,
		in:            in,
		times:         times,
		eff:           eff,
		spec:          spec,
		interpolation: how,
		state:         StateResponsePrecomputed,
	}
	if spec.IsFixed() {
		flux, err := spec.flux(in, nil)
		if err != nil {
			return nil, err
		}
		rates := s.sampleRates(flux)
		s.state = StateRateComputed
		s.unit, err = s.interpolants(rates)
		if err != nil {
			return nil, err
		}
		s.state = StateInterpolated
	}
	return s, nil
}

// Name implements Component.
func (s *ResponseSource) Name() string { return s.name }

// Kind implements Component.
func (s *ResponseSource) Kind() Kind { return s.kind }

// Layout implements Component.
func (s *ResponseSource) Layout() model.Layout { return s.layout }

// ParameterNames implements Component.
func (s *ResponseSource) ParameterNames() []string { return s.spec.ParameterNames() }

// NumParameters implements Component.
func (s *ResponseSource) NumParameters() int { return len(s.spec.ParameterNames()) }

// State implements Component.
func (s *ResponseSource) State() State { return s.state }

// Incoming returns the incoming photon grid.
func (s *ResponseSource) Incoming() model.EnergyGrid { return s.in }

// SampleTimes returns a copy of the geometry sample times.
func (s *ResponseSource) SampleTimes() []float64 {
	out := make([]float64, len(s.times))
	copy(out, s.times)
	return out
}

// SampleRates returns count rates (counts/s) at every geometry sample time
// for params, indexed [sample][detector][echan].
func (s *ResponseSource) SampleRates(params []float64) (*model.RateTensor, error) {
	if err := checkParams(s.name, params, s.NumParameters()); err != nil {
		return nil, err
	}
	flux, err := s.spec.flux(s.in, params)
	if err != nil {
		return nil, err
	}
	rates := s.sampleRates(spectrum.Scale(flux, params[0]))
	out := model.NewRateTensor(len(s.times), s.layout.NumDetectors(), s.layout.NumEchans())
	nE := s.layout.NumEchans()
	for d := range rates {
		for k := range s.times {
			for e := 0; e < nE; e++ {
				out.Set(k, d, e, rates[d][k*nE+e])
			}
		}
	}
	return out, nil
}

// sampleRates folds flux through every effective response. The result is
// indexed [detector][sample*E+echan].
func (s *ResponseSource) sampleRates(flux []float64) [][]float64 {
	f := mat.NewVecDense(len(flux), flux)
	out := make([][]float64, len(s.eff))
	for d, eff := range s.eff {
		var v mat.VecDense
		v.MulVec(eff, f)
		out[d] = v.RawVector().Data
	}
	return out
}

func (s *ResponseSource) interpolants(rates [][]float64) ([]interp.Predictor, error) {
	nE := s.layout.NumEchans()
	nK := len(s.times)
	out := make([]interp.Predictor, 0, len(rates)*nE)
	for d := range rates {
		for e := 0; e < nE; e++ {
			series := make([]float64, nK)
			for k := 0; k < nK; k++ {
				series[k] = rates[d][k*nE+e]
			}
			p, err := s.fit(series)
			if err != nil {
				return nil, fmt.Errorf("%s: interpolate %s echan %d: %w", s.name, s.layout.Detectors[d], e, err)
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ResponseSource) fit(ys []float64) (interp.Predictor, error) {
	var p interp.FittablePredictor
	if s.interpolation == NaturalCubic && len(s.times) >= 3 {
		p = &interp.NaturalCubic{}
	} else {
		p = &interp.PiecewiseLinear{}
	}
	if err := p.Fit(s.times, ys); err != nil {
		return nil, err
	}
	return p, nil
}

// Predict implements Component: expected counts per bin, the trapezoidal
// integral of the interpolated rate over the bin edges and every sample
// time inside the bin.
func (s *ResponseSource) Predict(bins model.TimeBinGrid, params []float64) (*model.RateTensor, error) {
	if err := checkParams(s.name, params, s.NumParameters()); err != nil {
		return nil, err
	}
	if err := checkBins(s.name, bins); err != nil {
		return nil, err
	}
	first, last := s.times[0], s.times[len(s.times)-1]
	if start, stop := bins.Span(); start < first || stop > last {
		return nil, fmt.Errorf("%w: %s geometry covers [%g, %g], bins span [%g, %g]",
			model.ErrOutOfRange, s.name, first, last, start, stop)
	}

	predictors := s.unit
	if predictors == nil {
		flux, err := s.spec.flux(s.in, params)
		if err != nil {
			return nil, err
		}
		predictors, err = s.interpolants(s.sampleRates(flux))
		if err != nil {
			return nil, err
		}
	}

	norm := params[0]
	nD, nE := s.layout.NumDetectors(), s.layout.NumEchans()
	out := model.NewRateTensorFor(bins, s.layout)
	var xs, ys []float64
	for t := 0; t < bins.Len(); t++ {
		xs = s.nodes(xs[:0], bins.Bin(t))
		if cap(ys) < len(xs) {
			ys = make([]float64, len(xs))
		}
		ys = ys[:len(xs)]
		for d := 0; d < nD; d++ {
			for e := 0; e < nE; e++ {
				p := predictors[d*nE+e]
				for i, x := range xs {
					ys[i] = p.Predict(x)
				}
				out.Set(t, d, e, norm*integrate.Trapezoidal(xs, ys))
			}
		}
	}
	return out, nil
}

// nodes returns the bin edges with the sample times strictly inside.
func (s *ResponseSource) nodes(dst []float64, b model.TimeBin) []float64 {
	dst = append(dst, b.Start)
	i := sort.SearchFloat64s(s.times, b.Start)
	for ; i < len(s.times) && s.times[i] < b.Stop; i++ {
		if s.times[i] > b.Start {
			dst = append(dst, s.times[i])
		}
	}
	return append(dst, b.Stop)
}
