// Package metrics names and emits the PromptFill Prometheus series through the
// gofulmen telemetry system. Every recorder is a no-op until
// observability.InitMetrics installs a system.
package metrics

import (
	"time"

	"github.com/promptfill/promptfill/internal/observability"
)

func counter(name string, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(name, 1, labels)
	}
}

func gauge(name string, value float64, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(name, value, labels)
	}
}

func histogram(name string, d time.Duration, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(name, d, labels)
	}
}

func outcome(ok bool, success, failure string) string {
	if ok {
		return success
	}
	return failure
}
