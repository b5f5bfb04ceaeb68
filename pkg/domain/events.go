package domain

// EventKind categorizes engine events.
type EventKind string

const (
	EventProgress          EventKind = "progress"
	EventApprovalStatus    EventKind = "approval_status"
	EventExecutorCompleted EventKind = "executor_completed"
	EventRequestInfo       EventKind = "request_info"
	EventOutput            EventKind = "output"
)

// Event is the tagged variant emitted by a run. ProgressEvent and
// ApprovalStatusEvent are pure observability side-channels raised by steps;
// RequestInfoEvent, ExecutorCompletedEvent and OutputEvent are produced by
// the engine itself. Events never affect control flow.
type Event interface {
	Kind() EventKind
}

// ProgressEvent reports a phase transition of the pipeline (e.g. extraction
// running/completed).
type ProgressEvent struct {
	Phase  string
	Status string
}

func (ProgressEvent) Kind() EventKind { return EventProgress }

// ApprovalStatusEvent reports the resolution of a review request.
type ApprovalStatusEvent struct {
	RequestID string
	Approved  bool
}

func (ApprovalStatusEvent) Kind() EventKind { return EventApprovalStatus }

// ExecutorCompletedEvent marks the completion of one node invocation.
type ExecutorCompletedEvent struct {
	NodeID string
}

func (ExecutorCompletedEvent) Kind() EventKind { return EventExecutorCompleted }

// RequestInfoEvent surfaces a suspension to the consumer instead of blocking
// the caller. The run transitions to AwaitingInput once the pass that raised
// it drains.
type RequestInfoEvent struct {
	Request ApprovalRequest
}

func (RequestInfoEvent) Kind() EventKind { return EventRequestInfo }

// OutputEvent carries the run's final output.
type OutputEvent struct {
	Output any
}

func (OutputEvent) Kind() EventKind { return EventOutput }
