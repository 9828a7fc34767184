package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ModelCollector bundles Prometheus metrics for background-model
// evaluation.
type ModelCollector struct {
	gatherer prometheus.Gatherer

	Predictions          *prometheus.CounterVec
	PredictDuration      prometheus.Histogram
	ComponentEvaluations *prometheus.CounterVec
	ComponentDuration    *prometheus.HistogramVec
	Components           prometheus.Gauge
}

// NewModelCollector registers model metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewModelCollector(reg prometheus.Registerer) (*ModelCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	predictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_predictions_total",
		Help: "Total number of model predictions, labeled by outcome.",
	}, []string{"outcome"})
	predictions, err := registerCounterVec(reg, predictions, "background_predictions_total")
	if err != nil {
		return nil, err
	}

	predictDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "background_predict_duration_seconds",
		Help:    "Wall time of a full model prediction in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}), "background_predict_duration_seconds")
	if err != nil {
		return nil, err
	}

	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_component_evaluations_total",
		Help: "Total number of source component evaluations, labeled by component and kind.",
	}, []string{"component", "kind"})
	evaluations, err = registerCounterVec(reg, evaluations, "background_component_evaluations_total")
	if err != nil {
		return nil, err
	}

	componentDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "background_component_duration_seconds",
		Help:    "Wall time of one component evaluation in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"component"})
	componentDuration, err = registerHistogramVec(reg, componentDuration, "background_component_duration_seconds")
	if err != nil {
		return nil, err
	}

	components, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "background_components",
		Help: "Number of source components in the current model.",
	}), "background_components")
	if err != nil {
		return nil, err
	}

	return &ModelCollector{
		gatherer:             gatherer,
		Predictions:          predictions,
		PredictDuration:      predictDuration,
		ComponentEvaluations: evaluations,
		ComponentDuration:    componentDuration,
		Components:           components,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ModelCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObservePredict records one model prediction.
func (c *ModelCollector) ObservePredict(d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if c.Predictions != nil {
		c.Predictions.WithLabelValues(outcome).Inc()
	}
	if c.PredictDuration != nil {
		c.PredictDuration.Observe(d.Seconds())
	}
}

// ObserveComponent records one component evaluation.
func (c *ModelCollector) ObserveComponent(name, kind string, d time.Duration) {
	if c == nil {
		return
	}
	if c.ComponentEvaluations != nil {
		c.ComponentEvaluations.WithLabelValues(name, kind).Inc()
	}
	if c.ComponentDuration != nil {
		c.ComponentDuration.WithLabelValues(name).Observe(d.Seconds())
	}
}

// SetComponents updates the component count gauge.
func (c *ModelCollector) SetComponents(n int) {
	if c == nil || c.Components == nil {
		return
	}
	c.Components.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
