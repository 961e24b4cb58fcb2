// Package transport owns the HTTP connection pool shared by every call a
// client makes to one OpenAI-compatible server.
//
// A Session is constructed once per client, used concurrently by any number
// of callers, and released with Close. Requests are either buffered (the
// full body is read and the connection returned to the pool before Request
// returns) or streaming (the caller reads the body incrementally and must
// Close the Response).
//
// # Timeouts
//
// Buffered requests use the session timeout unless the request overrides
// it. Streaming requests are unbounded by default because generation length
// is paced by the server; a finite stream timeout can be configured per
// session or per request. Only an expired finite timeout produces an
// *api.TimeoutError; cancellation of the caller's context surfaces as an
// *api.TransportError wrapping the context error.
//
// # Errors
//
// Non-2xx statuses yield *api.ProtocolError carrying the status code and up
// to 64 KiB of the body. Connection failures yield *api.TransportError.
// Nothing is retried.
//
// # Instrumentation
//
// Every request runs inside an OpenTelemetry span, and the pooled transport
// is wrapped with otelhttp. Request counts and latencies are recorded in the
// Prometheus collectors of pkg/observability.
package transport
