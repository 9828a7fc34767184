package source

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/signalsfoundry/gbm-background/model"
)

// DefaultOrbitalPeriod is the low-Earth-orbit period, in seconds, used by
// OrbitalTemplate when none is given.
const DefaultOrbitalPeriod = 5715.0

// Template is a dimensionless time profile for a continuum component.
type Template interface {
	Value(met float64) (float64, error)
}

// ConstantTemplate is 1 everywhere.
type ConstantTemplate struct{}

// Value implements Template.
func (ConstantTemplate) Value(float64) (float64, error) { return 1, nil }

// OrbitalTemplate is a raised cosine with the orbital period, peaking at
// Phase.
type OrbitalTemplate struct {
	Period float64
	Phase  float64
}

// Value implements Template.
func (o OrbitalTemplate) Value(met float64) (float64, error) {
	p := o.Period
	if p <= 0 {
		p = DefaultOrbitalPeriod
	}
	return 0.5 * (1 + math.Cos(2*math.Pi*(met-o.Phase)/p)), nil
}

// TracerTemplate follows a sampled cosmic-ray tracer series (for example
// McIlwain L or a particle monitor rate), offset so its minimum is zero and
// interpolated linearly.
type TracerTemplate struct {
	first, last float64
	fn          interp.PiecewiseLinear
}

// NewTracerTemplate fits a tracer series. Times must strictly increase.
func NewTracerTemplate(times, values []float64) (*TracerTemplate, error) {
	if len(times) < 2 || len(times) != len(values) {
		return nil, fmt.Errorf("%w: tracer needs at least 2 paired samples, got %d times and %d values",
			model.ErrMissingGeometry, len(times), len(values))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("%w: tracer times must strictly increase (index %d)", model.ErrInvalidTimeBins, i)
		}
	}
	lo := math.Inf(1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: tracer value %v", model.ErrInvalidParameters, v)
		}
		lo = math.Min(lo, v)
	}
	ys := make([]float64, len(values))
	for i, v := range values {
		ys[i] = v - lo
	}
	xs := append([]float64(nil), times...)
	t := &TracerTemplate{first: xs[0], last: xs[len(xs)-1]}
	if err := t.fn.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidTimeBins, err)
	}
	return t, nil
}

// Value implements Template.
func (t *TracerTemplate) Value(met float64) (float64, error) {
	if met < t.first || met > t.last {
		return 0, fmt.Errorf("%w: tracer covers [%g, %g], asked %g", model.ErrOutOfRange, t.first, t.last, met)
	}
	return t.fn.Predict(met), nil
}

// ContinuumSource scales a time template by one free norm per detector and
// echan. Counts per bin are norm × template(mid) × width.
type ContinuumSource struct {
	name     string
	layout   model.Layout
	template Template
	params   []string
}

// NewContinuumSource validates the layout and template.
func NewContinuumSource(name string, layout model.Layout, tmpl Template) (*ContinuumSource, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: component needs a name", model.ErrInvalidParameters)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: %s has no template", model.ErrMissingGeometry, name)
	}
	return &ContinuumSource{name: name, layout: layout, template: tmpl, params: channelNames(layout, "norm")}, nil
}

// Name implements Component.
func (c *ContinuumSource) Name() string { return c.name }

// Kind implements Component.
func (c *ContinuumSource) Kind() Kind { return KindContinuum }

// Layout implements Component.
func (c *ContinuumSource) Layout() model.Layout { return c.layout }

// ParameterNames implements Component.
func (c *ContinuumSource) ParameterNames() []string { return append([]string(nil), c.params...) }

// NumParameters implements Component.
func (c *ContinuumSource) NumParameters() int { return len(c.params) }

// State implements Component.
func (c *ContinuumSource) State() State { return StateInterpolated }

// Predict implements Component.
func (c *ContinuumSource) Predict(bins model.TimeBinGrid, params []float64) (*model.RateTensor, error) {
	if err := checkParams(c.name, params, len(c.params)); err != nil {
		return nil, err
	}
	if err := checkBins(c.name, bins); err != nil {
		return nil, err
	}
	out := model.NewRateTensorFor(bins, c.layout)
	nD, nE := c.layout.NumDetectors(), c.layout.NumEchans()
	for t, b := range bins.Bins() {
		v, err := c.template.Value(b.Mid())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		v *= b.Width()
		for d := 0; d < nD; d++ {
			for e := 0; e < nE; e++ {
				out.Set(t, d, e, params[d*nE+e]*v)
			}
		}
	}
	return out, nil
}
