// Package background sums source components into one predicted-count
// tensor on a shared (time, detector, echan) layout.
package background

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/gbm-background/internal/logging"
	"github.com/signalsfoundry/gbm-background/internal/observability"
	"github.com/signalsfoundry/gbm-background/internal/source"
	"github.com/signalsfoundry/gbm-background/model"
)

// Model is an ordered set of components sharing one layout. Parameters of
// all components are concatenated in component order. A Model is immutable
// after construction and safe for concurrent Predict calls.
type Model struct {
	layout     model.Layout
	components []source.Component
	offsets    []int
	nParams    int

	log     logging.Logger
	metrics *observability.ModelCollector
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the model logger.
func WithLogger(l logging.Logger) Option { return func(m *Model) { m.log = l } }

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *observability.ModelCollector) Option { return func(m *Model) { m.metrics = c } }

// NewModel checks that every component shares layout and has a unique name.
func NewModel(layout model.Layout, components []source.Component, opts ...Option) (*Model, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: model has no components", model.ErrMissingResponse)
	}
	m := &Model{layout: layout, log: logging.Noop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.Noop()
	}

	seen := make(map[string]struct{}, len(components))
	for _, c := range components {
		if c == nil {
			return nil, fmt.Errorf("%w: nil component", model.ErrMissingResponse)
		}
		if _, dup := seen[c.Name()]; dup {
			return nil, fmt.Errorf("%w: component %q added twice", model.ErrInconsistentGrid, c.Name())
		}
		seen[c.Name()] = struct{}{}
		if err := layout.Require(c.Layout(), c.Name()); err != nil {
			return nil, err
		}
		m.offsets = append(m.offsets, m.nParams)
		m.nParams += c.NumParameters()
	}
	m.components = append([]source.Component(nil), components...)
	m.metrics.SetComponents(len(m.components))
	return m, nil
}

// Layout returns the shared layout.
func (m *Model) Layout() model.Layout { return m.layout }

// Components returns the components in parameter order.
func (m *Model) Components() []source.Component {
	return append([]source.Component(nil), m.components...)
}

// NumParameters returns the total parameter count.
func (m *Model) NumParameters() int { return m.nParams }

// ParameterNames returns "<component>.<param>" for every parameter.
func (m *Model) ParameterNames() []string {
	out := make([]string, 0, m.nParams)
	for _, c := range m.components {
		for _, p := range c.ParameterNames() {
			out = append(out, c.Name()+"."+p)
		}
	}
	return out
}

// Split cuts a flat parameter vector into per-component slices keyed by
// component name. The slices alias params.
func (m *Model) Split(params []float64) (map[string][]float64, error) {
	if len(params) != m.nParams {
		return nil, fmt.Errorf("%w: model wants %d parameters, got %d", model.ErrInvalidParameters, m.nParams, len(params))
	}
	out := make(map[string][]float64, len(m.components))
	for i, c := range m.components {
		lo := m.offsets[i]
		out[c.Name()] = params[lo : lo+c.NumParameters() : lo+c.NumParameters()]
	}
	return out, nil
}

// Predict returns the element-wise sum of every component's prediction.
func (m *Model) Predict(ctx context.Context, bins model.TimeBinGrid, params []float64) (*model.RateTensor, error) {
	return m.predict(ctx, bins, params, nil)
}

// PredictActive sums only the named components. Parameters of inactive
// components are still part of params and are ignored.
func (m *Model) PredictActive(ctx context.Context, bins model.TimeBinGrid, params []float64, active ...string) (*model.RateTensor, error) {
	set := make(map[string]bool, len(active))
	for _, name := range active {
		if m.index(name) < 0 {
			return nil, fmt.Errorf("%w: no component named %q", model.ErrInvalidParameters, name)
		}
		set[name] = true
	}
	return m.predict(ctx, bins, params, set)
}

func (m *Model) predict(ctx context.Context, bins model.TimeBinGrid, params []float64, active map[string]bool) (out *model.RateTensor, err error) {
	ctx, span := observability.Tracer().Start(ctx, "background.Predict")
	defer span.End()
	span.SetAttributes(attribute.Int("bins", bins.Len()), attribute.Int("components", len(m.components)))

	start := time.Now()
	defer func() {
		m.metrics.ObservePredict(time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	split, err := m.Split(params)
	if err != nil {
		return nil, err
	}
	out = model.NewRateTensorFor(bins, m.layout)
	for _, c := range m.components {
		if active != nil && !active[c.Name()] {
			continue
		}
		part, err := m.evaluate(c, bins, split[c.Name()])
		if err != nil {
			return nil, err
		}
		if err := out.Add(part); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	if ok, at := out.AllFinite(); !ok {
		m.log.Warn(ctx, "non-finite predicted rate", logging.Int("index", at))
		return nil, fmt.Errorf("%w: element %d", model.ErrNonFinite, at)
	}
	return out, nil
}

func (m *Model) evaluate(c source.Component, bins model.TimeBinGrid, params []float64) (*model.RateTensor, error) {
	start := time.Now()
	part, err := c.Predict(bins, params)
	m.metrics.ObserveComponent(c.Name(), string(c.Kind()), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	return part, nil
}

// Breakdown returns each component's own prediction keyed by name. The
// tensors are independent copies; changing them never affects the model.
func (m *Model) Breakdown(ctx context.Context, bins model.TimeBinGrid, params []float64) (map[string]*model.RateTensor, error) {
	_, span := observability.Tracer().Start(ctx, "background.Breakdown")
	defer span.End()

	split, err := m.Split(params)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.RateTensor, len(m.components))
	for _, c := range m.components {
		part, err := m.evaluate(c, bins, split[c.Name()])
		if err != nil {
			return nil, err
		}
		out[c.Name()] = part.Clone()
	}
	return out, nil
}

func (m *Model) index(name string) int {
	for i, c := range m.components {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// ZeroCountMask marks bins whose observed counts are zero in every
// detector and echan. counts is laid out like a RateTensor.
func ZeroCountMask(counts *model.RateTensor) []bool {
	mask := make([]bool, counts.NTime)
	for t := range mask {
		mask[t] = true
		for d := 0; d < counts.NDet && mask[t]; d++ {
			for _, v := range counts.Row(t, d) {
				if v != 0 {
					mask[t] = false
					break
				}
			}
		}
	}
	return mask
}
