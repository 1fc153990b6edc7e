package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// register adds a collector to the default registry, reusing the
// existing collector when the same metric was registered before.
// Components that are constructed more than once per process (the
// recorder, health checkers) go through here instead of promauto,
// which panics on duplicates.
func register[C prometheus.Collector](c C) C {
	err := prometheus.Register(c)
	if err == nil {
		return c
	}
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	return c
}

// Counter wraps prometheus.Counter.
type Counter struct {
	counter prometheus.Counter
}

// NewCounter creates or reuses a counter with the given constant labels.
func NewCounter(name string, labels map[string]string) *Counter {
	return &Counter{counter: register(prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        name,
		ConstLabels: labels,
	}))}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.counter.Inc()
}

// Add adds the given value to the counter.
func (c *Counter) Add(v float64) {
	c.counter.Add(v)
}

// Gauge wraps prometheus.Gauge.
type Gauge struct {
	gauge prometheus.Gauge
}

// NewGauge creates or reuses a gauge with the given constant labels.
func NewGauge(name string, labels map[string]string) *Gauge {
	return &Gauge{gauge: register(prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        name,
		ConstLabels: labels,
	}))}
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v float64) {
	g.gauge.Set(v)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.gauge.Inc()
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.gauge.Dec()
}

// Add adds the given value to the gauge.
func (g *Gauge) Add(v float64) {
	g.gauge.Add(v)
}

// Sub subtracts the given value from the gauge.
func (g *Gauge) Sub(v float64) {
	g.gauge.Sub(v)
}

// Histogram wraps prometheus.Histogram.
type Histogram struct {
	histogram prometheus.Histogram
}

// NewHistogram creates or reuses a histogram with the given constant
// labels and buckets.
func NewHistogram(name string, labels map[string]string, buckets []float64) *Histogram {
	return &Histogram{histogram: register(prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        name,
		Help:        name,
		ConstLabels: labels,
		Buckets:     buckets,
	}))}
}

// Observe adds a single observation to the histogram.
func (h *Histogram) Observe(v float64) {
	h.histogram.Observe(v)
}
