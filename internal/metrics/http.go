package metrics

import (
	"strconv"
	"time"
)

// HTTP series
const (
	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDuration   = "http_request_duration_ms"
	HTTPRequestSizeBytes  = "http_request_size_bytes"
	HTTPResponseSizeBytes = "http_response_size_bytes"
	HTTPErrorsTotal       = "http_errors_total"

	ErrorsTotal      = "promptfill_errors_total"
	ErrorsByEndpoint = "promptfill_errors_by_endpoint_total"
	PanicsTotal      = "promptfill_panics_total"
)

// HTTPRequest is one completed request as seen by the metrics middleware.
// Endpoint must already be a route pattern, never a raw path.
type HTTPRequest struct {
	Method       string
	Endpoint     string
	Status       int
	Duration     time.Duration
	RequestSize  int64
	ResponseSize int64
}

// RecordHTTPRequest emits the request series, plus http_errors_total for 4xx
// and 5xx responses.
func RecordHTTPRequest(req HTTPRequest) {
	status := strconv.Itoa(req.Status)
	labels := map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
		"status":   status,
	}
	sized := map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
	}

	counter(HTTPRequestsTotal, labels)
	histogram(HTTPRequestDuration, req.Duration, labels)
	gauge(HTTPRequestSizeBytes, float64(req.RequestSize), sized)
	gauge(HTTPResponseSizeBytes, float64(req.ResponseSize), sized)

	if req.Status < 400 {
		return
	}
	counter(HTTPErrorsTotal, map[string]string{
		"method":     req.Method,
		"endpoint":   req.Endpoint,
		"status":     status,
		"error_type": outcome(req.Status < 500, "client_error", "server_error"),
	})
}

// RecordError counts an error envelope written to a client.
func RecordError(code string, status int) {
	counter(ErrorsTotal, map[string]string{
		"error_code":  code,
		"http_status": strconv.Itoa(status),
	})
}

// RecordErrorByEndpoint counts server-side (5xx) errors per endpoint.
func RecordErrorByEndpoint(endpoint string, code string) {
	counter(ErrorsByEndpoint, map[string]string{
		"endpoint":   endpoint,
		"error_code": code,
	})
}

// RecordPanic counts a handler panic caught by the recovery middleware.
func RecordPanic() {
	counter(PanicsTotal, nil)
}
