package metrics

import "time"

// Process and health series
const (
	HealthChecksTotal   = "promptfill_health_checks_total"
	HealthCheckDuration = "promptfill_health_check_duration_ms"
	ServerStartTime     = "promptfill_server_start_time_seconds"
)

// RecordHealthCheck records one dependency check run by the health endpoints.
func RecordHealthCheck(check string, status string, duration time.Duration) {
	counter(HealthChecksTotal, map[string]string{
		"check":  check,
		"status": status,
	})
	histogram(HealthCheckDuration, duration, map[string]string{"check": check})
}

// SetServerStartTime publishes when the listener came up.
func SetServerStartTime(at time.Time) {
	gauge(ServerStartTime, float64(at.Unix()), nil)
}
