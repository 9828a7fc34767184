package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResponseCollector exposes response-cache Prometheus metrics.
type ResponseCollector struct {
	gatherer prometheus.Gatherer

	BuildDuration    prometheus.Histogram
	MatricesComputed prometheus.Counter
	CacheHits        prometheus.Counter
	CacheHitRatio    prometheus.Gauge
	DetectorsReady   prometheus.Counter
}

// NewResponseCollector registers response metrics against the provided registerer.
func NewResponseCollector(reg prometheus.Registerer) (*ResponseCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	buildHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "response_build_duration_seconds",
		Help:    "Duration of one batched response build over a direction set.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
	buildHistogram, err := registerHistogram(reg, buildHistogram, "response_build_duration_seconds")
	if err != nil {
		return nil, err
	}

	computed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "response_matrices_computed_total",
		Help: "Cumulative number of response matrices evaluated by the DRM.",
	})
	computed, err = registerCounter(reg, computed, "response_matrices_computed_total")
	if err != nil {
		return nil, err
	}

	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "response_cache_hits_total",
		Help: "Cumulative number of response matrices served from the cache.",
	})
	hits, err = registerCounter(reg, hits, "response_cache_hits_total")
	if err != nil {
		return nil, err
	}

	ratio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "response_cache_hit_ratio",
		Help: "Cache hit ratio of the most recent response build.",
	})
	ratio, err = registerGauge(reg, ratio, "response_cache_hit_ratio")
	if err != nil {
		return nil, err
	}

	ready := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "response_detectors_complete_total",
		Help: "Cumulative number of detectors whose grid responses were fully cached.",
	})
	ready, err = registerCounter(reg, ready, "response_detectors_complete_total")
	if err != nil {
		return nil, err
	}

	return &ResponseCollector{
		gatherer:         gatherer,
		BuildDuration:    buildHistogram,
		MatricesComputed: computed,
		CacheHits:        hits,
		CacheHitRatio:    ratio,
		DetectorsReady:   ready,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ResponseCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveBuild records one build: its duration and how many matrices were
// computed versus served from cache.
func (c *ResponseCollector) ObserveBuild(d time.Duration, computed, hits int) {
	if c == nil {
		return
	}
	if c.BuildDuration != nil {
		c.BuildDuration.Observe(d.Seconds())
	}
	if c.MatricesComputed != nil {
		c.MatricesComputed.Add(float64(computed))
	}
	if c.CacheHits != nil {
		c.CacheHits.Add(float64(hits))
	}
	if c.CacheHitRatio != nil && computed+hits > 0 {
		c.CacheHitRatio.Set(float64(hits) / float64(computed+hits))
	}
}

// ObserveDetectorComplete counts a detector whose grid is fully cached.
func (c *ResponseCollector) ObserveDetectorComplete() {
	if c == nil || c.DetectorsReady == nil {
		return
	}
	c.DetectorsReady.Inc()
}
