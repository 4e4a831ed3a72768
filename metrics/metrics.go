// Package metrics exposes Prometheus observability for streaming sessions.
//
// A Collector owns a private registry so embedding applications never
// collide with it on the default one. Every update method is safe to call
// on a nil Collector, which is how a session runs with metrics disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds Prometheus collectors for one streaming session.
type Collector struct {
	registry *prometheus.Registry

	videoBitrate       prometheus.Gauge
	audioBitrate       prometheus.Gauge
	sessionState       *prometheus.GaugeVec
	regulationTicks    prometheus.Counter
	regulationErrors   prometheus.Counter
	connectionEvents   *prometheus.CounterVec
	regulationDuration prometheus.Histogram
}

// New creates a Collector with its own registry and all collectors
// registered.
func New() *Collector {
	registry := prometheus.NewRegistry()

	videoBitrate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "srtcast_video_bitrate_bps",
		Help: "Current video bitrate target in bits per second",
	})
	audioBitrate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "srtcast_audio_bitrate_bps",
		Help: "Current audio bitrate target in bits per second",
	})
	sessionState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "srtcast_session_state",
		Help: "Session lifecycle state (1 for the current state, 0 otherwise)",
	}, []string{"state"})
	regulationTicks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "srtcast_regulation_ticks_total",
		Help: "Total number of completed regulation ticks",
	})
	regulationErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "srtcast_regulation_errors_total",
		Help: "Total number of regulation ticks skipped due to errors",
	})
	connectionEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srtcast_connection_events_total",
		Help: "Total number of transport connection events by type",
	}, []string{"type"})
	regulationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "srtcast_regulation_duration_seconds",
		Help:    "Duration of regulation ticks in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	registry.MustRegister(
		videoBitrate,
		audioBitrate,
		sessionState,
		regulationTicks,
		regulationErrors,
		connectionEvents,
		regulationDuration,
	)

	return &Collector{
		registry:           registry,
		videoBitrate:       videoBitrate,
		audioBitrate:       audioBitrate,
		sessionState:       sessionState,
		regulationTicks:    regulationTicks,
		regulationErrors:   regulationErrors,
		connectionEvents:   connectionEvents,
		regulationDuration: regulationDuration,
	}
}

// Bitrates records the current video and audio targets in bits per second.
func (c *Collector) Bitrates(videoBps, audioBps uint32) {
	if c == nil {
		return
	}
	c.videoBitrate.Set(float64(videoBps))
	c.audioBitrate.Set(float64(audioBps))
}

// SessionState marks the given state as current and clears the others.
func (c *Collector) SessionState(state string) {
	if c == nil {
		return
	}
	c.sessionState.Reset()
	c.sessionState.WithLabelValues(state).Set(1)
}

// RegulationTick records one completed regulation tick and its duration.
func (c *Collector) RegulationTick(d time.Duration) {
	if c == nil {
		return
	}
	c.regulationTicks.Inc()
	c.regulationDuration.Observe(d.Seconds())
}

// RegulationError records one regulation tick skipped due to an error.
func (c *Collector) RegulationError() {
	if c == nil {
		return
	}
	c.regulationErrors.Inc()
}

// ConnectionEvent records one transport connection event of the given type.
func (c *Collector) ConnectionEvent(eventType string) {
	if c == nil {
		return
	}
	c.connectionEvents.WithLabelValues(eventType).Inc()
}

// Handler returns an http.Handler serving the collector's registry in the
// Prometheus exposition format. Returns nil on a nil Collector.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return nil
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
