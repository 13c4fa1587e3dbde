// Package metrics holds the prometheus collectors for the trip change pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Publishing
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripsync_events_published_total",
		Help: "Change events handed to the ordered channel, by change type and result",
	}, []string{"change_type", "result"})

	PublishLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripsync_publish_latency_seconds",
		Help:    "Latency of channel publishes",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})

	// Projection
	ProjectorOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripsync_projector_outcomes_total",
		Help: "Cache projector results: applied, stale, deadlettered, redelivered",
	}, []string{"outcome"})

	ProjectorLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripsync_projector_latency_seconds",
		Help:    "Time spent applying one change event to the cache",
		Buckets: prometheus.DefBuckets,
	})

	DeadLettered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripsync_deadlettered_total",
		Help: "Messages moved to the dead-letter stream, by reason",
	}, []string{"reason"})

	// Read path
	CacheReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripsync_cache_reads_total",
		Help: "Read path cache lookups, by operation and result",
	}, []string{"op", "result"})

	// Relay
	RelayRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripsync_relay_rows_total",
		Help: "Change-capture rows seen by the relay, by source and result",
	}, []string{"source", "result"})

	// Fanout
	FanoutDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripsync_fanout_deliveries_total",
		Help: "Realtime deliveries to subscribers, by result",
	}, []string{"result"})

	FanoutClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tripsync_fanout_clients",
		Help: "Connected realtime clients",
	})

	// HTTP surface
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripsync_http_requests_total",
		Help: "HTTP requests, by method, route pattern and status class",
	}, []string{"method", "route", "code"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripsync_http_request_duration_seconds",
		Help:    "Latency of non-streaming HTTP requests, by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Label values shared by callers.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultSkipped = "skipped"
	ResultDropped = "dropped"
	ResultFilter  = "filtered"

	OutcomeApplied      = "applied"
	OutcomeStale        = "stale"
	OutcomeDeadLettered = "deadlettered"
	OutcomeRedelivered  = "redelivered"
)

func init() {
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(PublishLatency)
	prometheus.MustRegister(ProjectorOutcomes)
	prometheus.MustRegister(ProjectorLatency)
	prometheus.MustRegister(DeadLettered)
	prometheus.MustRegister(CacheReads)
	prometheus.MustRegister(RelayRows)
	prometheus.MustRegister(FanoutDeliveries)
	prometheus.MustRegister(FanoutClients)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
}
