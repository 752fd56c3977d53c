package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"

	"github.com/promptfill/promptfill/internal/config"
)

var (
	// TelemetrySystem is the global telemetry system
	TelemetrySystem *telemetry.System

	// PrometheusExporter is the prometheus metrics exporter
	PrometheusExporter *exporters.PrometheusExporter

	// metricsPort stores the port the Prometheus exporter is listening on
	metricsPort int
)

// InitMetrics starts the Prometheus exporter on cfg.Port (0 picks a free
// port) and installs a telemetry system that emits to it. When metrics are
// disabled a disabled system is installed instead and no port is bound.
func InitMetrics(namespace string, cfg config.MetricsConfig) error {
	if !cfg.Enabled {
		sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false})
		if err != nil {
			return err
		}
		telemetry.SetGlobalSystem(sys)
		TelemetrySystem = nil
		PrometheusExporter = nil
		metricsPort = 0
		return nil
	}

	requestedPort := cfg.Port
	if requestedPort < 0 {
		requestedPort = 0
	}
	metricsPort = requestedPort

	exporter := exporters.NewPrometheusExporter(namespace, fmt.Sprintf(":%d", requestedPort))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}

	if actualPort, err := resolvePort(exporter.GetAddr()); err == nil {
		metricsPort = actualPort
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: exporter,
	})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	PrometheusExporter = exporter
	TelemetrySystem = sys
	telemetry.SetGlobalSystem(sys)
	return nil
}

// ShutdownMetrics stops the exporter started by InitMetrics.
func ShutdownMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	metricsPort = 0
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort returns the port the Prometheus exporter is listening on
func GetMetricsPort() int {
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
