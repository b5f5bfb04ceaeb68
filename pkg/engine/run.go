package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/docweave/docweave/pkg/domain"
)

// Status is the lifecycle state of a run:
// Idle -> Running -> (AwaitingInput | Completed | Failed), with
// AwaitingInput -> Running on resume.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusRunning       Status = "running"
	StatusAwaitingInput Status = "awaiting_input"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// delivery is one message scheduled for one node.
type delivery struct {
	node string
	msg  domain.Message
}

// Run holds the mutable state of one graph execution. A Run is owned by a
// single logical caller; Start and Resume must not overlap, but Status,
// Pending and the other accessors are safe to read concurrently with a
// running pass.
type Run struct {
	engine *Engine
	values *Values

	mu         sync.Mutex
	status     Status
	queue      []delivery
	pending    []domain.ApprovalRequest
	iterations int
	output     any
	err        error
}

// NewRun creates an Idle run bound to this engine.
func (e *Engine) NewRun() *Run {
	return &Run{engine: e, status: StatusIdle, values: NewValues()}
}

// Values returns the run-scoped state shared by every step of this run.
func (r *Run) Values() *Values {
	return r.values
}

// Status returns the current lifecycle state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Output returns the final output once the run is Completed.
func (r *Run) Output() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Err returns the failure cause once the run is Failed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Iterations returns the number of passes executed so far.
func (r *Run) Iterations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.iterations
}

// Pending returns the outstanding approval requests in suspension order.
func (r *Run) Pending() []domain.ApprovalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ApprovalRequest, len(r.pending))
	copy(out, r.pending)
	return out
}

// Start begins a fresh run at the graph's start node. The returned channel
// produces events lazily and closes when the run reaches AwaitingInput,
// Completed or Failed.
func (r *Run) Start(ctx context.Context, input any) (<-chan domain.Event, error) {
	r.mu.Lock()
	if r.status != StatusIdle {
		r.mu.Unlock()
		return nil, fmt.Errorf("run already started (status %s)", r.status)
	}
	r.status = StatusRunning
	r.queue = []delivery{{
		node: r.engine.graph.Start(),
		msg:  domain.Message{Payload: input},
	}}
	r.mu.Unlock()

	ch := make(chan domain.Event)
	go r.drive(ctx, ch)
	return ch, nil
}

// Resume re-enters an AwaitingInput run with a batch of decisions. Every
// decision must reference an outstanding request; a single unknown ID
// rejects the whole batch with a CorrelationError and leaves the run state
// unchanged. Matched requests are consumed from the correlation store
// exactly once and their originating nodes are re-invoked with a
// ResolvedApproval message.
func (r *Run) Resume(ctx context.Context, answers map[string]domain.ApprovalDecision) (<-chan domain.Event, error) {
	r.mu.Lock()
	if r.status != StatusAwaitingInput {
		r.mu.Unlock()
		return nil, domain.ErrNotAwaitingInput
	}

	outstanding := make(map[string]int, len(r.pending))
	for i, req := range r.pending {
		outstanding[req.ID] = i
	}
	for id := range answers {
		if _, ok := outstanding[id]; !ok {
			r.mu.Unlock()
			return nil, &domain.CorrelationError{RequestID: id}
		}
	}

	remaining := r.pending[:0:0]
	for _, req := range r.pending {
		decision, ok := answers[req.ID]
		if !ok {
			remaining = append(remaining, req)
			continue
		}
		taken, err := r.engine.approvals.Take(req.ID)
		if err != nil {
			// The store and the run disagree about an outstanding ID.
			r.mu.Unlock()
			return nil, &domain.CorrelationError{RequestID: req.ID}
		}
		r.queue = append(r.queue, delivery{
			node: taken.Origin,
			msg: domain.Message{
				Payload: domain.ResolvedApproval{Request: taken, Decision: decision},
			},
		})
	}
	r.pending = remaining
	r.status = StatusRunning
	r.mu.Unlock()

	r.engine.logger.Debug("run resumed", "answers", len(answers))

	ch := make(chan domain.Event)
	go r.drive(ctx, ch)
	return ch, nil
}

// Close releases the run's outstanding requests from the correlation store.
// Used when a session is torn down before the run reaches a terminal state,
// so no orphaned IDs survive.
func (r *Run) Close() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	if r.status == StatusAwaitingInput {
		r.status = StatusFailed
		r.err = domain.ErrApprovalTimeout
	}
	r.mu.Unlock()

	for _, req := range pending {
		_, _ = r.engine.approvals.Take(req.ID)
	}
}

// stepOutcome captures the result of one delivery within a pass.
type stepOutcome struct {
	node   string
	result domain.StepResult
	err    error
}

// drive executes passes until the run parks or terminates, then closes ch.
// Every step sees the run's Values through its context, surviving across
// suspend/resume boundaries.
func (r *Run) drive(ctx context.Context, ch chan<- domain.Event) {
	defer close(ch)

	ctx = WithValues(ctx, r.values)

	for {
		r.mu.Lock()
		r.iterations++
		if r.iterations > r.engine.maxIterations {
			r.status = StatusFailed
			r.err = fmt.Errorf("%w after %d passes", domain.ErrIterationLimit, r.iterations-1)
			r.mu.Unlock()
			r.engine.logger.Warn("run failed", "err", domain.ErrIterationLimit)
			return
		}
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()

		outcomes := r.executePass(ctx, batch, ch)

		if done := r.applyOutcomes(ctx, outcomes, ch); done {
			return
		}

		r.mu.Lock()
		queued := len(r.queue)
		waiting := len(r.pending)
		if queued == 0 {
			if waiting > 0 {
				r.status = StatusAwaitingInput
			} else {
				r.status = StatusCompleted
			}
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}
}

// executePass dispatches every ready delivery concurrently. Observability
// events flow to ch as they are emitted, so ordering is guaranteed per node
// but not across concurrently dispatched nodes.
func (r *Run) executePass(ctx context.Context, batch []delivery, ch chan<- domain.Event) []stepOutcome {
	outcomes := make([]stepOutcome, len(batch))
	var wg sync.WaitGroup

	for i, d := range batch {
		node, ok := r.engine.graph.Node(d.node)
		if !ok {
			outcomes[i] = stepOutcome{node: d.node, err: fmt.Errorf("unknown node %q", d.node)}
			continue
		}

		wg.Add(1)
		go func(i int, d delivery, step domain.StepFunc) {
			defer wg.Done()
			emit := func(ev domain.Event) {
				sendEvent(ctx, ch, ev)
			}
			result, err := step(ctx, d.msg, emit)
			if err == nil {
				sendEvent(ctx, ch, domain.ExecutorCompletedEvent{NodeID: d.node})
			}
			outcomes[i] = stepOutcome{node: d.node, result: result, err: err}
		}(i, d, node.Step)
	}

	wg.Wait()
	return outcomes
}

// applyOutcomes folds the pass results into the run state, in batch order.
// Returns true when the run reached a terminal state.
func (r *Run) applyOutcomes(ctx context.Context, outcomes []stepOutcome, ch chan<- domain.Event) bool {
	for _, o := range outcomes {
		if o.err != nil {
			r.fail(&domain.StepError{NodeID: o.node, Err: o.err})
			return true
		}

		switch o.result.Kind {
		case domain.KindForward:
			if err := r.routeSends(o.node, o.result.Sends); err != nil {
				r.fail(&domain.StepError{NodeID: o.node, Err: err})
				return true
			}

		case domain.KindSuspend:
			req := o.result.Request
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			req.Origin = o.node
			if err := r.engine.approvals.Put(req); err != nil {
				r.fail(err)
				return true
			}
			r.mu.Lock()
			r.pending = append(r.pending, req)
			r.mu.Unlock()
			r.engine.logger.Debug("suspension raised", "request_id", req.ID, "node", o.node)
			sendEvent(ctx, ch, domain.RequestInfoEvent{Request: req})

		case domain.KindYield:
			r.mu.Lock()
			r.status = StatusCompleted
			r.output = o.result.Output
			pending := r.pending
			r.pending = nil
			r.mu.Unlock()
			// A yield outruns any suspensions raised in the same or earlier
			// passes; release their store entries so no orphaned IDs survive
			// the completed run.
			for _, req := range pending {
				_, _ = r.engine.approvals.Take(req.ID)
			}
			sendEvent(ctx, ch, domain.OutputEvent{Output: o.result.Output})
			return true
		}
	}
	return false
}

// routeSends schedules a step's outgoing messages. A send without a target
// is broadcast along every outgoing edge; a targeted send must name one of
// the node's declared destinations.
func (r *Run) routeSends(from string, sends []domain.Send) error {
	outgoing := r.engine.graph.Outgoing(from)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, send := range sends {
		if send.Target == "" {
			for _, dst := range outgoing {
				r.queue = append(r.queue, delivery{
					node: dst.ID,
					msg:  domain.Message{Payload: send.Payload, Origin: from},
				})
			}
			continue
		}

		found := false
		for _, dst := range outgoing {
			if dst.ID == send.Target {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("send targets %q which is not a destination of %q", send.Target, from)
		}
		r.queue = append(r.queue, delivery{
			node: send.Target,
			msg:  domain.Message{Payload: send.Payload, Origin: from},
		})
	}
	return nil
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	r.status = StatusFailed
	r.err = err
	r.mu.Unlock()
	r.engine.logger.Warn("run failed", "err", err)
}

// sendEvent delivers ev unless the consumer's context is gone.
func sendEvent(ctx context.Context, ch chan<- domain.Event, ev domain.Event) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
