package observability

import (
	"net/http"
	"strings"
	"time"
)

// MetricsMiddleware records mock backend request metrics:
//
//   - llmclient_mock_requests_total: by method, route and status class
//   - llmclient_mock_request_duration_seconds: by method and route
//   - llmclient_mock_streaming_connections_active: SSE responses in flight
//
// The route label is the ServeMux pattern that matched, so the middleware
// must sit between any request-copying middleware and the mux.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if sw.streaming {
				ServerStreamingConnections.Dec()
			}
		}()
		next.ServeHTTP(sw, r)

		route := routeLabel(r)
		ServerRequestsTotal.WithLabelValues(r.Method, route, StatusClass(sw.status)).Inc()
		ServerRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel returns the matched pattern without its method prefix, or
// "unmatched". Using the pattern keeps label cardinality bounded.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

// statusWriter wraps http.ResponseWriter to capture the status code and
// detect SSE responses from the Content-Type set by the handler.
type statusWriter struct {
	http.ResponseWriter
	status    int
	written   bool
	streaming bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
		w.detectStreaming()
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
		w.detectStreaming()
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) detectStreaming() {
	if w.Header().Get("Content-Type") == "text/event-stream" && !w.streaming {
		w.streaming = true
		ServerStreamingConnections.Inc()
	}
}

// Flush delegates to the underlying writer if it implements http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
