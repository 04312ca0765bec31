// Package metrics provides lock-free Prometheus-style metric primitives and a
// registry that renders them in the Prometheus text exposition format.
package metrics

// MetricType represents the type of metric.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Metric is the base interface for all metrics.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Describe returns the metric in Prometheus text format.
	Describe() string
}

// Counter is a monotonically increasing value.
type Counter interface {
	Metric
	Inc()
	Add(float64)
	Get() float64
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Metric
	Set(float64)
	Add(float64)
	Get() float64
}

// Histogram counts observations in cumulative buckets.
type Histogram interface {
	Metric
	Observe(float64)
	Count() uint64
	Sum() float64
}

// CounterVec is a family of counters partitioned by label values.
type CounterVec interface {
	Metric
	// WithLabelValues returns the counter for the given label values, in the
	// order of the label names passed to NewCounterVec.
	WithLabelValues(values ...string) Counter
}

// DefBuckets are latency buckets in seconds suited to remote model calls.
var DefBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
