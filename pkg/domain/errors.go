package domain

import (
	"errors"
	"fmt"
)

// ErrIterationLimit is returned when a run exceeds its configured pass bound.
// This is the safety valve against cyclic graphs that never converge.
var ErrIterationLimit = errors.New("iteration limit exceeded")

// ErrNotAwaitingInput is returned when Resume is called on a run that is not
// suspended.
var ErrNotAwaitingInput = errors.New("run is not awaiting input")

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrRequestNotFound is returned when an approval request ID is unknown or
// was already consumed.
var ErrRequestNotFound = errors.New("approval request not found")

// ErrRecordNotFound is returned when a result sink has no record under the
// requested key.
var ErrRecordNotFound = errors.New("result record not found")

// ErrApprovalTimeout is returned when the bounded wait for approvals elapses.
// The session is closed; callers must open a new run.
var ErrApprovalTimeout = errors.New("approval wait timed out")

// ConfigError reports an invalid graph definition. It is fatal at build time.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid graph: " + e.Reason
}

// CorrelationError reports a decision that references an unknown or already
// consumed request. The run stays in AwaitingInput.
type CorrelationError struct {
	RequestID string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("no outstanding approval request with id %q", e.RequestID)
}

// DuplicateRequestError reports a request ID put into the correlation store
// twice. This indicates an engine bug, not an expected runtime condition.
type DuplicateRequestError struct {
	RequestID string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("approval request %q already registered", e.RequestID)
}

// StepError wraps an error surfaced by a step. The run transitions to Failed
// and the original message is preserved for diagnostics.
type StepError struct {
	NodeID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.NodeID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
