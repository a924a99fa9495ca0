package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coastwatch"

// Collector holds the service's Prometheus instruments on a private registry
type Collector struct {
	registry *prometheus.Registry

	ticks             *prometheus.CounterVec
	tickDuration      *prometheus.HistogramVec
	tickPanics        *prometheus.CounterVec
	envelopes         prometheus.Counter
	deliveries        prometheus.Counter
	alerts            *prometheus.CounterVec
	alertQueueDropped prometheus.Counter
	alertSendFailures prometheus.Counter
	subscribers       prometheus.Gauge
	subscriberDrops   prometheus.Counter
	resubscribes      *prometheus.CounterVec
	activeDevices     prometheus.Gauge
	analytics         *prometheus.HistogramVec
}

// NewCollector registers every instrument on a fresh registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Device ticks executed",
		}, []string{"device_type"}),
		tickDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds",
			Help:    "Time spent synthesizing, evaluating and publishing one tick",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"device_type"}),
		tickPanics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tick_panics_total",
			Help: "Ticks that panicked and were recovered",
		}, []string{"device_type"}),
		envelopes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "envelopes_published_total",
			Help: "Envelopes published to the broadcast hub",
		}),
		deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "envelope_deliveries_total",
			Help: "Envelope deliveries to individual subscribers",
		}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_total",
			Help: "Alert events raised by the threshold engine",
		}, []string{"severity"}),
		alertQueueDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "alert_queue_dropped_total",
			Help: "Alert events dropped because the dispatch queue was full",
		}),
		alertSendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "alert_send_failures_total",
			Help: "Alert events the sink failed to accept",
		}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscribers",
			Help: "Live broadcast hub subscribers",
		}),
		subscriberDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "subscriber_drops_total",
			Help: "Subscribers removed because their queue was full",
		}),
		resubscribes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "hub_consumer_resubscribes_total",
			Help: "In-process hub consumers resubscribed after being dropped",
		}, []string{"consumer"}),
		activeDevices: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_devices",
			Help: "Devices with a running schedule",
		}),
		analytics: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "analytics_duration_seconds",
			Help:    "Spatial analytics computation time",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// TickCompleted records one finished tick
func (c *Collector) TickCompleted(deviceType string, d time.Duration) {
	c.ticks.WithLabelValues(deviceType).Inc()
	c.tickDuration.WithLabelValues(deviceType).Observe(d.Seconds())
}

// TickPanicked records a recovered tick panic
func (c *Collector) TickPanicked(deviceType string) {
	c.tickPanics.WithLabelValues(deviceType).Inc()
}

// EnvelopePublished records one publish and its fan-out
func (c *Collector) EnvelopePublished(delivered int) {
	c.envelopes.Inc()
	c.deliveries.Add(float64(delivered))
}

// AlertRaised records one alert event
func (c *Collector) AlertRaised(severity string) {
	c.alerts.WithLabelValues(severity).Inc()
}

// AlertDropped records an alert the dispatcher could not queue
func (c *Collector) AlertDropped() {
	c.alertQueueDropped.Inc()
}

// AlertSendFailed records a sink failure
func (c *Collector) AlertSendFailed() {
	c.alertSendFailures.Inc()
}

// SetActiveDevices sets the running-schedule gauge
func (c *Collector) SetActiveDevices(n int) {
	c.activeDevices.Set(float64(n))
}

// SubscriberAdded implements hub.Observer
func (c *Collector) SubscriberAdded() {
	c.subscribers.Inc()
}

// SubscriberRemoved implements hub.Observer
func (c *Collector) SubscriberRemoved(dropped bool) {
	c.subscribers.Dec()
	if dropped {
		c.subscriberDrops.Inc()
	}
}

// ConsumerResubscribed implements hub.Observer
func (c *Collector) ConsumerResubscribed(consumer string) {
	c.resubscribes.WithLabelValues(consumer).Inc()
}

// ObserveAnalytics records how long an analytics operation took
func (c *Collector) ObserveAnalytics(operation string, start time.Time) {
	c.analytics.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Registry exposes the underlying registry for tests and custom exporters
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
