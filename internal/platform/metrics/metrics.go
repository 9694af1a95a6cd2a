package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the media-delivery core.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	streamBytesTotal    prometheus.Counter
	rangeRequestsTotal  prometheus.Counter
	ingestChunksTotal   prometheus.Counter
	chatMessagesTotal   prometheus.Counter
	activeIngestStreams prometheus.Gauge
	activeChatRooms     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	streamBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_stream_bytes_served_total",
		Help: "Total number of video content bytes written to clients",
	})
	rangeRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_range_requests_total",
		Help: "Total number of stream requests carrying a Range header",
	})
	ingestChunksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_ingest_chunks_total",
		Help: "Total number of media chunks accepted from publishers",
	})
	chatMessagesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_chat_messages_total",
		Help: "Total number of chat messages recorded and broadcast",
	})
	activeIngestStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vidcast_ingest_active_sessions",
		Help: "Number of live publisher sessions currently registered",
	})
	activeChatRooms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vidcast_chat_active_rooms",
		Help: "Number of chat rooms with at least one member",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		streamBytesTotal,
		rangeRequestsTotal,
		ingestChunksTotal,
		chatMessagesTotal,
		activeIngestStreams,
		activeChatRooms,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		errorsTotal:         errorsTotal,
		streamBytesTotal:    streamBytesTotal,
		rangeRequestsTotal:  rangeRequestsTotal,
		ingestChunksTotal:   ingestChunksTotal,
		chatMessagesTotal:   chatMessagesTotal,
		activeIngestStreams: activeIngestStreams,
		activeChatRooms:     activeChatRooms,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// AddStreamBytes adds n to the served-bytes counter.
func (m *Metrics) AddStreamBytes(n int64) {
	m.streamBytesTotal.Add(float64(n))
}

// IncRangeRequests increments the range request counter.
func (m *Metrics) IncRangeRequests() {
	m.rangeRequestsTotal.Inc()
}

// IncIngestChunks increments the accepted chunk counter.
func (m *Metrics) IncIngestChunks() {
	m.ingestChunksTotal.Inc()
}

// IncChatMessages increments the chat message counter.
func (m *Metrics) IncChatMessages() {
	m.chatMessagesTotal.Inc()
}

// SetActiveIngestSessions sets the live session gauge.
func (m *Metrics) SetActiveIngestSessions(n int) {
	m.activeIngestStreams.Set(float64(n))
}

// SetActiveChatRooms sets the chat room gauge.
func (m *Metrics) SetActiveChatRooms(n int) {
	m.activeChatRooms.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (e.g. active ingest sessions and chat rooms).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
