package bridge

import "time"

// RecordType tags the external event records of a session stream.
type RecordType string

const (
	RecordConnected          RecordType = "connected"
	RecordWorkflowStarted    RecordType = "workflow_started"
	RecordProgress           RecordType = "progress"
	RecordApprovalRequired   RecordType = "approval_required"
	RecordWaitingForApproval RecordType = "waiting_for_approval"
	RecordHITLStatus         RecordType = "hitl_status"
	RecordExecutorCompleted  RecordType = "executor_completed"
	RecordWorkflowCompleted  RecordType = "workflow_completed"
	RecordError              RecordType = "error"
)

// Record is one entry of a session's external event stream. Every record
// carries the session ID and a UTC timestamp; Data holds the type-specific
// payload. A stream ends with exactly one terminal record
// (workflow_completed or error).
type Record struct {
	Type      RecordType     `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Payload flattens the record into the wire shape used by the SSE adapter:
// the data fields plus session_id and timestamp.
func (r Record) Payload() map[string]any {
	out := make(map[string]any, len(r.Data)+2)
	for k, v := range r.Data {
		out[k] = v
	}
	out["session_id"] = r.SessionID
	out["timestamp"] = r.Timestamp.Format(time.RFC3339Nano)
	return out
}
