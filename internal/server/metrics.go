package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
)

// hopHeaders are not copied from the exporter response.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// metricsProxy serves /metrics on the main listener by forwarding to the
// Prometheus exporter started by observability.InitMetrics.
type metricsProxy struct {
	client *http.Client
	// port resolves the exporter port; zero means the exporter is not running.
	port func() int
}

func newMetricsProxy() *metricsProxy {
	return &metricsProxy{
		client: &http.Client{Timeout: 5 * time.Second},
		port: func() int {
			if observability.PrometheusExporter == nil {
				return 0
			}
			return observability.GetMetricsPort()
		},
	}
}

func (p *metricsProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	port := p.port()
	if port == 0 {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Metrics are disabled"))
		return
	}

	target := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to build metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapUpstreamUnavailable(r.Context(), err, "Prometheus exporter unavailable"))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to relay metrics", zap.Error(err))
	}
}
