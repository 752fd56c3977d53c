package metrics

import "time"

// Tool router and template store series
const (
	ToolCallsTotal        = "promptfill_tool_calls_total"
	ToolCallDuration      = "promptfill_tool_call_duration_ms"
	StoreOperationsTotal  = "promptfill_store_operations_total"
	StoreOperationLatency = "promptfill_store_operation_duration_ms"
)

// RecordToolCall records one router dispatch. code is empty on success.
func RecordToolCall(tool string, code string, duration time.Duration) {
	counter(ToolCallsTotal, map[string]string{
		"tool":       tool,
		"status":     outcome(code == "", "success", "error"),
		"error_code": code,
	})
	histogram(ToolCallDuration, duration, map[string]string{"tool": tool})
}

// RecordStoreOperation records a template store call against driver.
func RecordStoreOperation(driver string, operation string, err error, duration time.Duration) {
	counter(StoreOperationsTotal, map[string]string{
		"driver":    driver,
		"operation": operation,
		"status":    outcome(err == nil, "success", "failure"),
	})
	histogram(StoreOperationLatency, duration, map[string]string{
		"driver":    driver,
		"operation": operation,
	})
}
