package errors

import (
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/metrics"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/server/middleware"
)

// HTTPStatusFromCode maps an error code onto its HTTP status.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeInvalidInput, CodeInvalidPlaceholder:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstreamUnavailable, CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// ResponseDetails merges the envelope details with its context. Context is
// internal for 5xx responses and is only logged.
func ResponseDetails(envelope *errors.ErrorEnvelope, status int) map[string]interface{} {
	details := make(map[string]interface{}, len(envelope.Details))
	for key, value := range envelope.Details {
		details[key] = value
	}
	if status < http.StatusInternalServerError {
		for key, value := range envelope.Context {
			if _, exists := details[key]; !exists {
				details[key] = value
			}
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// RespondWithError writes err as a JSON error envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	envelope := EnsureEnvelope(err)
	if envelope.CorrelationID == "" {
		id := middleware.GetRequestID(r.Context())
		if id == "" {
			id = "fallback-" + errors.GenerateCorrelationID()
		}
		envelope = envelope.WithCorrelationID(id)
	}

	status := HTTPStatusFromCode(envelope.Code)
	logHTTPError(envelope, status)
	metrics.RecordError(envelope.Code, status)
	if status >= http.StatusInternalServerError {
		metrics.RecordErrorByEndpoint(routeLabel(r), envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   ResponseDetails(envelope, status),
			RequestID: envelope.CorrelationID,
		},
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func logHTTPError(envelope *errors.ErrorEnvelope, status int) {
	if observability.ServerLogger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID),
	}
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}
