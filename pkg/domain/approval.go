package domain

// ApprovalRequest describes a suspension raised by a step: the run cannot
// proceed past the originating node until a matching ApprovalDecision is
// delivered. The ID is globally unique and never reused across runs or
// across two suspensions within the same run.
type ApprovalRequest struct {
	ID      string         `json:"request_id"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`

	// Origin is the ID of the node that raised the suspension. The engine
	// re-invokes this node with the decision once it arrives.
	Origin string `json:"origin"`
}

// ApprovalDecision answers an outstanding ApprovalRequest. Delivering a
// decision for an unknown request ID is a CorrelationError.
type ApprovalDecision struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	Comment   string `json:"comment,omitempty"`
}

// ResolvedApproval is the message payload delivered to the originating node
// when a suspension is answered. It carries both the decision and the
// correlated original request, so the step needs no extra shared state to
// recover what was in flight.
type ResolvedApproval struct {
	Request  ApprovalRequest
	Decision ApprovalDecision
}
