package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	FieldRequestID   = "request_id"
	FieldComponent   = "component"
	FieldUserID      = "user_id"
	FieldComplaintID = "complaint_id"
	FieldSweepID     = "sweep_id"
	FieldCategory    = "category"
)

// Metric fields, attached per entry for aggregation and alerting.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldScore      = "score"
	FieldStatus     = "status"
	FieldSize       = "size"
)
