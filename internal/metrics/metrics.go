// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt and delivery outcomes used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultBlocked = "blocked"
)

// Recorder is the set of events the application reports.
type Recorder interface {
	RecordCacheLookup(hit bool)
	RecordCacheRefill(downloaded int)
	RecordRender(duration time.Duration)
	RecordQuerySubmitted()
	RecordQueryAttempt(result string)
	RecordQueryExhausted()
	RecordDelivery(result string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	cacheLookups     *prometheus.CounterVec
	imagesDownloaded prometheus.Counter
	renderSeconds    prometheus.Histogram
	queriesSubmitted prometheus.Counter
	queryAttempts    *prometheus.CounterVec
	queriesExhausted prometheus.Counter
	deliveries       *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holidaybot_cache_lookups_total",
			Help: "Holiday image cache lookups by outcome.",
		}, []string{"outcome"}),
		imagesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holidaybot_images_downloaded_total",
			Help: "Images stored in the holiday cache.",
		}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "holidaybot_card_render_seconds",
			Help:    "Time spent composing greeting cards.",
			Buckets: prometheus.DefBuckets,
		}),
		queriesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holidaybot_queries_submitted_total",
			Help: "Image queries accepted.",
		}),
		queryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holidaybot_query_attempts_total",
			Help: "Image query processing attempts by result.",
		}, []string{"result"}),
		queriesExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holidaybot_queries_exhausted_total",
			Help: "Image queries that used up their retries.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holidaybot_deliveries_total",
			Help: "Daily card deliveries by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.cacheLookups,
		c.imagesDownloaded,
		c.renderSeconds,
		c.queriesSubmitted,
		c.queryAttempts,
		c.queriesExhausted,
		c.deliveries,
	)

	return c
}

func (c *Collector) RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	c.cacheLookups.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCacheRefill(downloaded int) {
	c.imagesDownloaded.Add(float64(downloaded))
}

func (c *Collector) RecordRender(duration time.Duration) {
	c.renderSeconds.Observe(duration.Seconds())
}

func (c *Collector) RecordQuerySubmitted() {
	c.queriesSubmitted.Inc()
}

func (c *Collector) RecordQueryAttempt(result string) {
	c.queryAttempts.WithLabelValues(result).Inc()
}

func (c *Collector) RecordQueryExhausted() {
	c.queriesExhausted.Inc()
}

func (c *Collector) RecordDelivery(result string) {
	c.deliveries.WithLabelValues(result).Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
