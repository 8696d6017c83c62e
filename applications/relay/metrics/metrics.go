package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "extract_relay"

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector is a prometheus.Collector with the relay metrics.
type Collector struct {
	requests            *prometheus.CounterVec
	uploadBytes         prometheus.Histogram
	downstreamDuration  prometheus.Histogram
	downstreamResponses *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "The number of extract requests by outcome.",
			}, []string{"outcome"},
		),
		uploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "upload_bytes",
				Help:      "The size of files forwarded downstream.",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		downstreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "downstream_duration_seconds",
				Help:      "The time taken by the downstream processing service.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60, 120},
			},
		),
		downstreamResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "downstream_responses_total",
				Help:      "The number of downstream responses by status code.",
			}, []string{"code"},
		),
	}
}

func (c *Collector) ObserveRequest(outcome string) {
	c.requests.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveUpload(size int) {
	c.uploadBytes.Observe(float64(size))
}

func (c *Collector) ObserveDownstream(code int, took time.Duration) {
	c.downstreamDuration.Observe(took.Seconds())
	c.downstreamResponses.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
	c.uploadBytes.Describe(ch)
	c.downstreamDuration.Describe(ch)
	c.downstreamResponses.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.uploadBytes.Collect(ch)
	c.downstreamDuration.Collect(ch)
	c.downstreamResponses.Collect(ch)
}
