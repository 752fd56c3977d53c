package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/metrics"
	"github.com/promptfill/promptfill/internal/observability"
)

// statusRecorder captures the status code and body size written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Flush keeps streamable MCP responses working through the recorder.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// endpointLabel returns the chi route pattern, or a fixed bucket for paths
// served outside a matched route, so raw tool names never become labels.
func endpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/", path == "/version", path == "/metrics", path == "/v1/tools":
		return path
	case strings.HasPrefix(path, "/health"):
		return "/health/*"
	case strings.HasPrefix(path, "/v1/tools/"):
		return "/v1/tools/{name}"
	case strings.HasPrefix(path, "/mcp"):
		return "/mcp"
	}
	return "/unknown"
}

// RequestMetrics records the HTTP series for every request and logs its
// completion with the request id.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil && observability.ServerLogger == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		var size int64
		if raw := r.Header.Get("Content-Length"); raw != "" {
			size, _ = strconv.ParseInt(raw, 10, 64)
		}

		next.ServeHTTP(rec, r)

		sample := metrics.HTTPRequest{
			Method:       r.Method,
			Endpoint:     endpointLabel(r),
			Status:       rec.status,
			Duration:     time.Since(start),
			RequestSize:  size,
			ResponseSize: rec.written,
		}
		metrics.RecordHTTPRequest(sample)

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", sample.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", sample.Endpoint),
				zap.Int("status", sample.Status),
				zap.Duration("duration", sample.Duration),
				zap.Int64("request_size", sample.RequestSize),
				zap.Int64("response_size", sample.ResponseSize),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		}
	})
}
