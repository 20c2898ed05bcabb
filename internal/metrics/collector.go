// Package metrics exposes dispatch, provider and advice metrics in the
// Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpn/preaid-gateway/internal/domain"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "preaid"

var (
	latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30}
	attemptBuckets = []float64{1, 2, 3, 4, 5, 6}
	tokenBuckets   = []float64{25, 50, 100, 250, 500, 1000, 2000, 4000}
)

// Collector owns a private registry and records gateway metrics.
// A nil *Collector is a valid no-op recorder.
type Collector struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	dispatches      *prometheus.CounterVec
	attemptsPerReq  prometheus.Histogram
	adviceRetries   prometheus.Counter
	adviceTokens    prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	providersUsable prometheus.Gauge
}

// NewCollector creates and registers all metrics. If registry is nil a new
// one is created.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_attempts_total",
				Help:      "Provider attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Provider attempt latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"provider"},
		),

		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Dispatches by final outcome",
			},
			[]string{"outcome"},
		),

		attemptsPerReq: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_attempts_per_request",
				Help:      "Number of providers tried per dispatch",
				Buckets:   attemptBuckets,
			},
		),

		adviceRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advice_retries_total",
				Help:      "Detailed-prompt retries after a short answer",
			},
		),

		adviceTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "advice_tokens_estimated",
				Help:      "Estimated token count of returned advice",
				Buckets:   tokenBuckets,
			},
		),

		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "response_cache_lookups_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),

		providersUsable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "providers_available",
				Help:      "Providers with a plausible credential",
			},
		),
	}

	registry.MustRegister(
		c.attempts,
		c.providerLatency,
		c.dispatches,
		c.attemptsPerReq,
		c.adviceRetries,
		c.adviceTokens,
		c.cacheLookups,
		c.providersUsable,
	)

	return c
}

// ObserveAttempt records one provider attempt.
func (c *Collector) ObserveAttempt(provider domain.ProviderName, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.attempts.WithLabelValues(string(provider), outcome).Inc()
	c.providerLatency.WithLabelValues(string(provider)).Observe(elapsed.Seconds())
}

// ObserveDispatch records the outcome of a whole dispatch.
func (c *Collector) ObserveDispatch(outcome string, attempts int) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		c.attemptsPerReq.Observe(float64(attempts))
	}
}

// ObserveRetry counts a detailed-prompt retry.
func (c *Collector) ObserveRetry() {
	if c == nil {
		return
	}
	c.adviceRetries.Inc()
}

// ObserveAdvice records the estimated size of returned advice.
func (c *Collector) ObserveAdvice(text string) {
	if c == nil {
		return
	}
	c.adviceTokens.Observe(float64(EstimateTokens(text)))
}

// ObserveCache counts a response cache lookup.
func (c *Collector) ObserveCache(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// SetProvidersAvailable publishes the usable provider count.
func (c *Collector) SetProvidersAvailable(n int) {
	if c == nil {
		return
	}
	c.providersUsable.Set(float64(n))
}

// Handler returns the Prometheus scrape handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
