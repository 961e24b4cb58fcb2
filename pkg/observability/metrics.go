// Package observability provides Prometheus metrics for the llmclient
// library, the benchmark harness, and the mock backend.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 10ms to 120s.
var LLMBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Status labels used for client requests that never received an HTTP status.
const (
	StatusTransportError = "transport_error"
	StatusTimeout        = "timeout"
)

var (
	// ClientRequestsTotal counts requests issued by a transport session by
	// endpoint path and outcome (status class or error kind).
	ClientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmclient_requests_total",
			Help: "Client requests",
		},
		[]string{"endpoint", "status"},
	)

	// ClientRequestDuration records time until response headers arrive, or
	// until the full body is read for buffered requests.
	ClientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmclient_request_duration_seconds",
			Help:    "Client request duration",
			Buckets: LLMBuckets,
		},
		[]string{"endpoint", "stream"},
	)

	// ClientStreamsActive tracks streaming responses that are open.
	ClientStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "llmclient_streams_active",
			Help: "Open streaming responses",
		},
	)

	// ClientStreamFailuresTotal counts streams whose body failed after the
	// headers arrived, by endpoint path and error kind.
	ClientStreamFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmclient_stream_failures_total",
			Help: "Streams that failed mid-body",
		},
		[]string{"endpoint", "reason"},
	)

	// StreamChunksTotal counts decoded streaming chunks by model.
	StreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmclient_stream_chunks_total",
			Help: "Decoded stream chunks",
		},
		[]string{"model"},
	)

	// StreamDroppedFramesTotal counts SSE frames skipped because they could
	// not be decoded.
	StreamDroppedFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "llmclient_stream_dropped_frames_total",
			Help: "Skipped malformed stream frames",
		},
	)

	// BenchLatency records benchmark call latency by model and mode.
	BenchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmclient_bench_latency_seconds",
			Help:    "Benchmark call latency",
			Buckets: LLMBuckets,
		},
		[]string{"model", "mode"},
	)

	// BenchFirstContentLatency records time to first streamed content.
	BenchFirstContentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmclient_bench_first_content_seconds",
			Help:    "Benchmark time to first content",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// ServerRequestsTotal counts requests served by the mock backend.
	ServerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmclient_mock_requests_total",
			Help: "Mock backend requests",
		},
		[]string{"method", "route", "status"},
	)

	// ServerRequestDuration records mock backend request duration.
	ServerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmclient_mock_request_duration_seconds",
			Help:    "Mock backend request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// ServerStreamingConnections tracks mock backend SSE responses in flight.
	ServerStreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "llmclient_mock_streaming_connections_active",
			Help: "Mock backend streaming connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ClientRequestsTotal,
		ClientRequestDuration,
		ClientStreamsActive,
		ClientStreamFailuresTotal,
		StreamChunksTotal,
		StreamDroppedFramesTotal,
		BenchLatency,
		BenchFirstContentLatency,
		ServerRequestsTotal,
		ServerRequestDuration,
		ServerStreamingConnections,
	)
}

// StatusClass returns a status label like "2xx" for an HTTP status code.
func StatusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
