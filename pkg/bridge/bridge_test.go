package bridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docweave/docweave/pkg/adapters/memory"
	"github.com/docweave/docweave/pkg/adapters/static"
	"github.com/docweave/docweave/pkg/approval"
	"github.com/docweave/docweave/pkg/bridge"
	"github.com/docweave/docweave/pkg/domain"
	"github.com/docweave/docweave/pkg/engine"
	"github.com/docweave/docweave/pkg/graph"
	"github.com/docweave/docweave/pkg/pipeline"
)

const waitDeadline = 5 * time.Second

func newBridge(t *testing.T, opts ...bridge.Option) (*bridge.Bridge, *memory.Sink) {
	t.Helper()

	sink := memory.NewSink()
	g, err := pipeline.Build(pipeline.Deps{
		Extractor: static.NewExtractor(
			static.WithDocument("mem://clean", domain.ExtractedDocument{
				Title: "Clean",
				Text:  "A routine quarterly report.",
			}),
			static.WithDocument("mem://flagged", domain.ExtractedDocument{
				Title: "Flagged",
				Text:  "This document is confidential.",
			}),
		),
		Evaluator: static.NewEvaluator(),
		Sink:      sink,
	})
	require.NoError(t, err)

	eng := engine.New(g, approval.NewStore())
	return bridge.New(eng, opts...), sink
}

// nextRecord reads records until one of the wanted type arrives.
func nextRecord(t *testing.T, events <-chan bridge.Record, want bridge.RecordType) bridge.Record {
	t.Helper()
	deadline := time.After(waitDeadline)
	for {
		select {
		case rec, ok := <-events:
			require.True(t, ok, "stream closed before %s", want)
			if rec.Type == want {
				return rec
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func collectTypes(events <-chan bridge.Record) []bridge.RecordType {
	var out []bridge.RecordType
	for rec := range events {
		out = append(out, rec.Type)
	}
	return out
}

func TestBridge_CompliantDocumentCompletes(t *testing.T) {
	b, sink := newBridge(t)

	sessionID, err := b.OpenSession(context.Background(), "mem://clean")
	require.NoError(t, err)

	events, err := b.Events(sessionID)
	require.NoError(t, err)

	types := collectTypes(events)
	require.NotEmpty(t, types)
	assert.Equal(t, bridge.RecordConnected, types[0])
	assert.Equal(t, bridge.RecordWorkflowCompleted, types[len(types)-1], "exactly one terminal record, last")
	assert.NotContains(t, types, bridge.RecordApprovalRequired)
	assert.NotContains(t, types, bridge.RecordError)

	status, err := b.Status(sessionID)
	require.NoError(t, err)
	assert.Equal(t, bridge.SessionCompleted, status.State)
	assert.Equal(t, "mem://clean", status.DocumentURI)
	assert.Equal(t, 1, sink.Len(), "auto-approved record stored")
}

func TestBridge_ApprovalRoundTrip(t *testing.T) {
	b, sink := newBridge(t)

	sessionID, err := b.OpenSession(context.Background(), "mem://flagged")
	require.NoError(t, err)

	events, err := b.Events(sessionID)
	require.NoError(t, err)

	req := nextRecord(t, events, bridge.RecordApprovalRequired)
	requestID, _ := req.Data["request_id"].(string)
	require.NotEmpty(t, requestID)
	assert.Equal(t, "Manual approval required", req.Data["title"])

	nextRecord(t, events, bridge.RecordWaitingForApproval)

	// the request is routable without knowing the session
	gotSession, ok := b.ResolveRequest(requestID)
	require.True(t, ok)
	assert.Equal(t, sessionID, gotSession)

	err = b.SubmitAnswer(sessionID, domain.ApprovalDecision{
		RequestID: requestID,
		Approved:  true,
		Comment:   "verified",
	})
	require.NoError(t, err)

	// second submission for the consumed request is rejected
	err = b.SubmitAnswer(sessionID, domain.ApprovalDecision{RequestID: requestID, Approved: false})
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	hitl := nextRecord(t, events, bridge.RecordHITLStatus)
	assert.Equal(t, "approved", hitl.Data["status"])

	final := nextRecord(t, events, bridge.RecordWorkflowCompleted)
	outcome, ok := final.Data["result"].(pipeline.Outcome)
	require.True(t, ok)
	assert.Equal(t, domain.StatusApproved, outcome.Record.Status)
	assert.Equal(t, "verified", outcome.Record.Comment)
	assert.Equal(t, requestID, outcome.Record.ApprovalID)

	stored, ok := sink.Get(outcome.Record.LogicalKey())
	require.True(t, ok)
	assert.Equal(t, outcome.Record, stored)
}

func TestBridge_RejectionRecordsComment(t *testing.T) {
	b, _ := newBridge(t)

	sessionID, err := b.OpenSession(context.Background(), "mem://flagged")
	require.NoError(t, err)
	events, err := b.Events(sessionID)
	require.NoError(t, err)

	req := nextRecord(t, events, bridge.RecordApprovalRequired)
	requestID := req.Data["request_id"].(string)

	require.NoError(t, b.SubmitAnswer(sessionID, domain.ApprovalDecision{
		RequestID: requestID,
		Approved:  false,
	}))

	final := nextRecord(t, events, bridge.RecordWorkflowCompleted)
	outcome := final.Data["result"].(pipeline.Outcome)
	assert.Equal(t, domain.StatusRejectedByHuman, outcome.Record.Status)
	assert.Equal(t, "Rejected", outcome.Record.Comment, "default comment when the reviewer gives none")
}

func TestBridge_ApprovalTimeout(t *testing.T) {
	b, sink := newBridge(t, bridge.WithWaitTimeout(50*time.Millisecond))

	sessionID, err := b.OpenSession(context.Background(), "mem://flagged")
	require.NoError(t, err)
	events, err := b.Events(sessionID)
	require.NoError(t, err)

	req := nextRecord(t, events, bridge.RecordApprovalRequired)
	requestID := req.Data["request_id"].(string)

	final := nextRecord(t, events, bridge.RecordError)
	assert.Equal(t, "Approval timeout - no response received", final.Data["message"])
	assert.Equal(t, true, final.Data["timeout"])

	// stream ends after the terminal record
	_, open := <-events
	assert.False(t, open)

	status, err := b.Status(sessionID)
	require.NoError(t, err)
	assert.Equal(t, bridge.SessionTimedOut, status.State)

	// the request is no longer routable and late answers are rejected
	_, ok := b.ResolveRequest(requestID)
	assert.False(t, ok)
	err = b.SubmitAnswer(sessionID, domain.ApprovalDecision{RequestID: requestID, Approved: true})
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	assert.Equal(t, 0, sink.Len(), "no result recorded for a timed out run")
}

func TestBridge_UnknownSession(t *testing.T) {
	b, _ := newBridge(t)

	_, err := b.Events("ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = b.SubmitAnswer("ghost", domain.ApprovalDecision{RequestID: "x"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = b.Status("ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = b.Close("ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestBridge_CloseTearsDownSession(t *testing.T) {
	b, _ := newBridge(t)

	sessionID, err := b.OpenSession(context.Background(), "mem://flagged")
	require.NoError(t, err)
	events, err := b.Events(sessionID)
	require.NoError(t, err)

	req := nextRecord(t, events, bridge.RecordApprovalRequired)
	requestID := req.Data["request_id"].(string)

	require.NoError(t, b.Close(sessionID))

	nextRecord(t, events, bridge.RecordError)
	_, open := <-events
	assert.False(t, open)

	_, ok := b.ResolveRequest(requestID)
	assert.False(t, ok, "closing releases outstanding requests")
}

func TestBridge_CompletionReleasesRequests(t *testing.T) {
	// a run that completes while a request is still on the books must not
	// leave the request routable
	relay := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Broadcast(msg.Payload), nil
	}
	ask := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Suspend(domain.ApprovalRequest{Title: "Check"}), nil
	}
	done := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Yield("short-circuit"), nil
	}

	g, err := graph.Build(
		[]domain.Node{
			{ID: "fan", Step: relay},
			{ID: "ask", Step: ask},
			{ID: "relay", Step: relay},
			{ID: "done", Step: done, Terminal: true},
		},
		[]domain.Edge{
			{From: "fan", To: "ask"},
			{From: "fan", To: "relay"},
			{From: "relay", To: "done"},
		},
		"fan",
	)
	require.NoError(t, err)

	eng := engine.New(g, approval.NewStore())
	b := bridge.New(eng)

	sessionID, err := b.OpenSession(context.Background(), "doc")
	require.NoError(t, err)
	events, err := b.Events(sessionID)
	require.NoError(t, err)

	req := nextRecord(t, events, bridge.RecordApprovalRequired)
	requestID := req.Data["request_id"].(string)

	nextRecord(t, events, bridge.RecordWorkflowCompleted)

	_, ok := b.ResolveRequest(requestID)
	assert.False(t, ok, "completion releases the unanswered request")
	err = b.SubmitAnswer(sessionID, domain.ApprovalDecision{RequestID: requestID, Approved: true})
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
	assert.Equal(t, 0, eng.Approvals().Len())
}

func TestBridge_FinishedSessionEvicted(t *testing.T) {
	b, _ := newBridge(t, bridge.WithRetention(20*time.Millisecond))

	sessionID, err := b.OpenSession(context.Background(), "mem://clean")
	require.NoError(t, err)
	events, err := b.Events(sessionID)
	require.NoError(t, err)
	collectTypes(events)

	assert.Eventually(t, func() bool {
		_, err := b.Status(sessionID)
		return errors.Is(err, domain.ErrSessionNotFound)
	}, waitDeadline, 5*time.Millisecond, "finished session leaves the table after retention")
}

func TestBridge_ConcurrentSessions(t *testing.T) {
	b, _ := newBridge(t)

	first, err := b.OpenSession(context.Background(), "mem://flagged")
	require.NoError(t, err)
	second, err := b.OpenSession(context.Background(), "mem://flagged")
	require.NoError(t, err)

	firstEvents, err := b.Events(first)
	require.NoError(t, err)
	secondEvents, err := b.Events(second)
	require.NoError(t, err)

	firstReq := nextRecord(t, firstEvents, bridge.RecordApprovalRequired).Data["request_id"].(string)
	secondReq := nextRecord(t, secondEvents, bridge.RecordApprovalRequired).Data["request_id"].(string)
	require.NotEqual(t, firstReq, secondReq)

	// answers land on their own sessions regardless of submission order
	require.NoError(t, b.SubmitAnswer(second, domain.ApprovalDecision{RequestID: secondReq, Approved: false}))
	require.NoError(t, b.SubmitAnswer(first, domain.ApprovalDecision{RequestID: firstReq, Approved: true}))

	firstFinal := nextRecord(t, firstEvents, bridge.RecordWorkflowCompleted)
	secondFinal := nextRecord(t, secondEvents, bridge.RecordWorkflowCompleted)

	assert.Equal(t, domain.StatusApproved, firstFinal.Data["result"].(pipeline.Outcome).Record.Status)
	assert.Equal(t, domain.StatusRejectedByHuman, secondFinal.Data["result"].(pipeline.Outcome).Record.Status)
}
