package logger

import "time"

// Standard field keys for structured logging.
const (
	FieldComponent  = "component"
	FieldService    = "service"
	FieldPipelineID = "pipeline_id"
	FieldRunID      = "run_id"
	FieldNodeID     = "node_id"
	FieldPluginID   = "plugin_id"
	FieldToolID     = "tool_id"
	FieldSessionID  = "session_id"
	FieldFrameIndex = "frame_index"
	FieldErrorType  = "error_type"
	FieldEvent      = "event"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldPath       = "path"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("done", logger.Fields("pipeline_id", id, "nodes", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		"operation": op,
		FieldError:  err.Error(),
	}
}

// MergeWithDuration adds a duration field to an existing map.
func MergeWithDuration(fields map[string]interface{}, d time.Duration) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldDuration] = d.Milliseconds()
	return fields
}
