package domain

import "context"

// EmitFunc pushes an observability event from inside a step. Events are
// informational only and are flushed to the consumer in emission order.
type EmitFunc func(Event)

// StepFunc is the unit of computation bound to a node. It consumes one
// message and returns a StepResult describing how the run continues.
// Returning a non-nil error aborts the run (the engine wraps it in a
// StepError).
type StepFunc func(ctx context.Context, msg Message, emit EmitFunc) (StepResult, error)

// Node is a named step in the graph. Nodes are created once at graph-build
// time and are immutable thereafter.
type Node struct {
	ID   string
	Step StepFunc

	// Terminal declares that this node's step may yield the run's final
	// output. Graph.IsTerminal reports this flag.
	Terminal bool
}

// Edge is a directed connection between two nodes. Multiple edges may fan
// out from one node (broadcast) or fan into one (each arriving message
// independently triggers the destination — there is no join barrier).
type Edge struct {
	From string
	To   string
}

// ResultKind discriminates the StepResult variants.
type ResultKind int

const (
	// KindForward continues the run by sending messages downstream.
	KindForward ResultKind = iota
	// KindSuspend halts this branch until a matching approval arrives.
	KindSuspend
	// KindYield terminates the run with a final output.
	KindYield
)

// StepResult is the tagged outcome of a step invocation.
type StepResult struct {
	Kind    ResultKind
	Sends   []Send
	Request ApprovalRequest
	Output  any
}

// Forward continues execution with the given sends. A send without a target
// is broadcast along every outgoing edge of the node.
func Forward(sends ...Send) StepResult {
	return StepResult{Kind: KindForward, Sends: sends}
}

// Broadcast is shorthand for forwarding one payload along all outgoing edges.
func Broadcast(payload any) StepResult {
	return Forward(Send{Payload: payload})
}

// Suspend halts this branch of execution pending an external answer for the
// given request. The engine records the request and will not re-invoke the
// originating node until the matching decision arrives.
func Suspend(req ApprovalRequest) StepResult {
	return StepResult{Kind: KindSuspend, Request: req}
}

// Yield terminates the run with output as its final result.
func Yield(output any) StepResult {
	return StepResult{Kind: KindYield, Output: output}
}
