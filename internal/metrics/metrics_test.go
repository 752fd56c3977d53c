package metrics

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptfill/promptfill/internal/observability"
)

func collect(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		collector := collect(t)
		RecordHTTPRequest(HTTPRequest{Method: http.MethodGet, Endpoint: "/v1/tools", Status: 200, Duration: time.Millisecond})

		assert.Positive(t, collector.CountMetricsByName(HTTPRequestsTotal))
		assert.Positive(t, collector.CountMetricsByName(HTTPRequestDuration))
		assert.Positive(t, collector.CountMetricsByName(HTTPRequestSizeBytes))
		assert.Positive(t, collector.CountMetricsByName(HTTPResponseSizeBytes))
		assert.Zero(t, collector.CountMetricsByName(HTTPErrorsTotal))
	})

	t.Run("ClientError", func(t *testing.T) {
		collector := collect(t)
		RecordHTTPRequest(HTTPRequest{Method: http.MethodPost, Endpoint: "/v1/tools/{name}", Status: 404})
		assert.Positive(t, collector.CountMetricsByName(HTTPErrorsTotal))
	})
}

func TestRecorders(t *testing.T) {
	collector := collect(t)

	RecordToolCall("render_prompt", "", time.Millisecond)
	RecordToolCall("get_template", "NOT_FOUND", time.Millisecond)
	RecordStoreOperation("memory", "get", errors.New("boom"), time.Millisecond)
	RecordHealthCheck("store", "healthy", time.Millisecond)
	RecordError("INVALID_INPUT", 400)
	RecordErrorByEndpoint("/v1/tools/{name}", "INTERNAL")
	RecordPanic()
	SetServerStartTime(time.Now())

	assert.GreaterOrEqual(t, collector.CountMetricsByName(ToolCallsTotal), 2)
	assert.GreaterOrEqual(t, collector.CountMetricsByName(ToolCallDuration), 2)
	assert.Positive(t, collector.CountMetricsByName(StoreOperationsTotal))
	assert.Positive(t, collector.CountMetricsByName(StoreOperationLatency))
	assert.Positive(t, collector.CountMetricsByName(HealthChecksTotal))
	assert.Positive(t, collector.CountMetricsByName(ErrorsTotal))
	assert.Positive(t, collector.CountMetricsByName(ErrorsByEndpoint))
	assert.Positive(t, collector.CountMetricsByName(PanicsTotal))
	assert.Positive(t, collector.CountMetricsByName(ServerStartTime))
}

func TestRecordersWithoutSystem(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordToolCall("render_prompt", "", 0)
		RecordPanic()
		SetServerStartTime(time.Now())
	})
}
