package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/docweave/docweave/pkg/domain"
	"github.com/docweave/docweave/pkg/engine"
)

// eventBuffer absorbs bursts between the run and a slow stream consumer.
const eventBuffer = 64

// SessionState is the externally visible lifecycle of a session.
type SessionState string

const (
	SessionRunning   SessionState = "running"
	SessionWaiting   SessionState = "waiting_for_approval"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
	SessionTimedOut  SessionState = "timed_out"
	SessionClosed    SessionState = "closed"
)

// SessionStatus is the snapshot returned by Bridge.Status.
type SessionStatus struct {
	SessionID   string       `json:"session_id"`
	State       SessionState `json:"status"`
	DocumentURI string       `json:"document_uri,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Pending     int          `json:"pending_approvals"`
}

// Session correlates one run with one event-stream consumer and the
// in-flight request/answer slots between them.
type Session struct {
	id     string
	bridge *Bridge
	run    *engine.Run
	input  any
	cancel context.CancelFunc

	events chan Record
	notify chan struct{}

	mu        sync.Mutex
	answers   map[string]domain.ApprovalDecision
	expected  map[string]time.Time // request ID -> raised at
	status    SessionState
	docURI    string
	createdAt time.Time
}

// submit deposits one decision into the pending-answers buffer and wakes
// the wait loop.
func (s *Session) submit(decision domain.ApprovalDecision) error {
	s.mu.Lock()
	terminal := s.status != SessionRunning && s.status != SessionWaiting
	raisedAt, outstanding := s.expected[decision.RequestID]
	_, answered := s.answers[decision.RequestID]
	if terminal || !outstanding || answered {
		s.mu.Unlock()
		return domain.ErrRequestNotFound
	}
	s.answers[decision.RequestID] = decision
	s.mu.Unlock()

	s.bridge.dropRequests([]string{decision.RequestID})
	if m := s.bridge.metrics; m != nil {
		m.ApprovalsPending.Dec()
		m.DecisionLatency.Observe(time.Since(raisedAt).Seconds())
	}
	s.bridge.logger.Debug("answer received",
		"session_id", s.id,
		"request_id", decision.RequestID,
		"approved", decision.Approved,
	)

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *Session) snapshot() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{
		SessionID:   s.id,
		State:       s.status,
		DocumentURI: s.docURI,
		CreatedAt:   s.createdAt,
		Pending:     len(s.expected) - len(s.answers),
	}
}

func (s *Session) setStatus(state SessionState) {
	s.mu.Lock()
	s.status = state
	s.mu.Unlock()
}

// loop drives the run to a terminal record, re-entering it with answer
// batches as they complete.
func (s *Session) loop(ctx context.Context) {
	defer s.bridge.scheduleReap(s.id)
	defer close(s.events)
	defer s.cancel()

	s.rememberInput()
	s.emit(ctx, RecordConnected, nil)
	s.emit(ctx, RecordWorkflowStarted, map[string]any{"document_uri": s.docURI})

	stream, err := s.run.Start(ctx, s.input)
	if err != nil {
		s.terminate(ctx, SessionFailed, err)
		return
	}

	for {
		s.consume(ctx, stream)

		if ctx.Err() != nil {
			s.purge()
			s.terminate(ctx, SessionClosed, nil)
			return
		}

		switch s.run.Status() {
		case engine.StatusCompleted:
			s.setStatus(SessionCompleted)
			// A run can complete while requests are still on the books
			// (a sibling branch yielded); release their routing entries.
			s.purge()
			if m := s.bridge.metrics; m != nil {
				m.RunsCompleted.Inc()
			}
			s.emit(ctx, RecordWorkflowCompleted, map[string]any{"result": s.run.Output()})
			s.bridge.logger.Info("session completed", "session_id", s.id)
			return

		case engine.StatusFailed:
			s.terminate(ctx, SessionFailed, s.run.Err())
			return

		case engine.StatusAwaitingInput:
			s.setStatus(SessionWaiting)
			s.mu.Lock()
			count := len(s.expected) - len(s.answers)
			s.mu.Unlock()
			s.emit(ctx, RecordWaitingForApproval, map[string]any{"count": count})

			answers, ok := s.await(ctx)
			if !ok {
				if ctx.Err() != nil {
					s.purge()
					s.terminate(ctx, SessionClosed, nil)
					return
				}
				// Bounded wait elapsed: partial answers are discarded
				// together with the run state.
				s.purge()
				if m := s.bridge.metrics; m != nil {
					m.SessionsTimedOut.Inc()
				}
				s.terminate(ctx, SessionTimedOut, domain.ErrApprovalTimeout)
				return
			}

			stream, err = s.run.Resume(ctx, answers)
			if err != nil {
				s.terminate(ctx, SessionFailed, err)
				return
			}
			s.resetBatch()
			s.setStatus(SessionRunning)
		}
	}
}

// consume translates one run stream into external records until it closes.
func (s *Session) consume(ctx context.Context, stream <-chan domain.Event) {
	for ev := range stream {
		switch e := ev.(type) {
		case domain.ProgressEvent:
			s.emit(ctx, RecordProgress, map[string]any{
				"phase":  e.Phase,
				"status": e.Status,
			})

		case domain.ApprovalStatusEvent:
			status := "rejected"
			if e.Approved {
				status = "approved"
			}
			s.emit(ctx, RecordHITLStatus, map[string]any{
				"status":      status,
				"approval_id": e.RequestID,
			})

		case domain.ExecutorCompletedEvent:
			s.emit(ctx, RecordExecutorCompleted, map[string]any{
				"executor_id": e.NodeID,
			})

		case domain.RequestInfoEvent:
			s.trackRequest(e.Request)
			s.emit(ctx, RecordApprovalRequired, map[string]any{
				"request_id": e.Request.ID,
				"title":      e.Request.Title,
				"message":    e.Request.Message,
				"origin":     e.Request.Origin,
				"context":    e.Request.Context,
			})

		case domain.OutputEvent:
			// The terminal workflow_completed record carries the output.
		}
	}
}

func (s *Session) trackRequest(req domain.ApprovalRequest) {
	s.mu.Lock()
	s.expected[req.ID] = time.Now()
	s.mu.Unlock()
	s.bridge.registerRequest(req.ID, s.id)
	if m := s.bridge.metrics; m != nil {
		m.ApprovalsPending.Inc()
	}
}

// await blocks until every outstanding request of the current batch has an
// answer, the bounded wait elapses, or the session context ends. The batch
// is all-or-nothing: a partially answered batch that hits the deadline is
// discarded entirely.
func (s *Session) await(ctx context.Context) (map[string]domain.ApprovalDecision, bool) {
	timer := time.NewTimer(s.bridge.waitTimeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		ready := len(s.expected) > 0 && len(s.answers) == len(s.expected)
		var batch map[string]domain.ApprovalDecision
		if ready {
			batch = make(map[string]domain.ApprovalDecision, len(s.answers))
			for id, d := range s.answers {
				batch[id] = d
			}
		}
		s.mu.Unlock()

		if ready {
			return batch, true
		}

		select {
		case <-s.notify:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// resetBatch clears the answered batch after a successful resume.
func (s *Session) resetBatch() {
	s.mu.Lock()
	s.answers = make(map[string]domain.ApprovalDecision)
	s.expected = make(map[string]time.Time)
	s.mu.Unlock()
}

// purge releases everything the session still owns: unanswered request IDs
// leave the routing table and the run's correlation-store entries are taken
// back so no orphaned IDs survive.
func (s *Session) purge() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.expected))
	for id := range s.expected {
		ids = append(ids, id)
	}
	unanswered := len(s.expected) - len(s.answers)
	s.mu.Unlock()

	s.bridge.dropRequests(ids)
	if m := s.bridge.metrics; m != nil && unanswered > 0 {
		m.ApprovalsPending.Sub(float64(unanswered))
	}
	s.run.Close()
}

// terminate emits the session's single terminal error record, unless the
// session completed normally.
func (s *Session) terminate(ctx context.Context, state SessionState, err error) {
	s.setStatus(state)

	data := map[string]any{}
	switch state {
	case SessionTimedOut:
		data["message"] = "Approval timeout - no response received"
		data["timeout"] = true
	case SessionClosed:
		data["message"] = "session closed"
	case SessionFailed:
		if err != nil {
			data["message"] = err.Error()
		}
		if m := s.bridge.metrics; m != nil {
			m.RunsFailed.Inc()
		}
	}

	s.bridge.logger.Warn("session ended", "session_id", s.id, "state", state, "err", err)
	s.emit(ctx, RecordError, data)
}

// emit delivers a record to the stream. After the session context ends the
// delivery is best-effort so a departed consumer cannot wedge the loop.
func (s *Session) emit(ctx context.Context, typ RecordType, data map[string]any) {
	rec := Record{
		Type:      typ,
		SessionID: s.id,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	select {
	case s.events <- rec:
	case <-ctx.Done():
		select {
		case s.events <- rec:
		default:
		}
	}
}

// rememberInput extracts a display URI from the run input for status and
// started records.
func (s *Session) rememberInput() {
	switch v := s.input.(type) {
	case string:
		s.docURI = v
	case domain.DocInput:
		s.docURI = v.DocumentURI
	case *domain.DocInput:
		s.docURI = v.DocumentURI
	}
}
