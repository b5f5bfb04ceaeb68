package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docweave/docweave/pkg/approval"
	"github.com/docweave/docweave/pkg/domain"
	"github.com/docweave/docweave/pkg/engine"
	"github.com/docweave/docweave/pkg/graph"
)

func drain(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func newEngine(t *testing.T, nodes []domain.Node, edges []domain.Edge, start string, opts ...engine.Option) *engine.Engine {
	t.Helper()
	g, err := graph.Build(nodes, edges, start)
	require.NoError(t, err)
	return engine.New(g, approval.NewStore(), opts...)
}

func TestRun_LinearCompletion(t *testing.T) {
	double := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		emit(domain.ProgressEvent{Phase: "double", Status: "running"})
		return domain.Broadcast(msg.Payload.(int) * 2), nil
	}
	finish := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Yield(msg.Payload), nil
	}

	eng := newEngine(t,
		[]domain.Node{
			{ID: "double", Step: double},
			{ID: "finish", Step: finish, Terminal: true},
		},
		[]domain.Edge{{From: "double", To: "finish"}},
		"double",
	)

	run := eng.NewRun()
	assert.Equal(t, engine.StatusIdle, run.Status())

	ch, err := run.Start(context.Background(), 21)
	require.NoError(t, err)
	events := drain(ch)

	assert.Equal(t, engine.StatusCompleted, run.Status())
	assert.Equal(t, 42, run.Output())

	// per-node ordering: progress before the node's completion marker
	var phases []string
	for _, ev := range events {
		switch e := ev.(type) {
		case domain.ProgressEvent:
			phases = append(phases, "progress:"+e.Phase)
		case domain.ExecutorCompletedEvent:
			phases = append(phases, "done:"+e.NodeID)
		case domain.OutputEvent:
			phases = append(phases, "output")
		}
	}
	assert.Equal(t, []string{"progress:double", "done:double", "done:finish", "output"}, phases)
}

func TestRun_StartTwice(t *testing.T) {
	eng := newEngine(t,
		[]domain.Node{{ID: "a", Step: func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
			return domain.Yield("ok"), nil
		}}},
		nil, "a",
	)

	run := eng.NewRun()
	ch, err := run.Start(context.Background(), nil)
	require.NoError(t, err)
	drain(ch)

	_, err = run.Start(context.Background(), nil)
	assert.Error(t, err)
}

func suspendingEngine(t *testing.T) *engine.Engine {
	ask := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		switch v := msg.Payload.(type) {
		case domain.ResolvedApproval:
			return domain.Broadcast(v.Decision), nil
		default:
			return domain.Suspend(domain.ApprovalRequest{
				Title:   "Check",
				Context: map[string]any{"input": v},
			}), nil
		}
	}
	finish := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Yield(msg.Payload), nil
	}

	return newEngine(t,
		[]domain.Node{
			{ID: "ask", Step: ask},
			{ID: "finish", Step: finish, Terminal: true},
		},
		[]domain.Edge{{From: "ask", To: "finish"}},
		"ask",
	)
}

func TestRun_SuspendAndResume(t *testing.T) {
	eng := suspendingEngine(t)
	run := eng.NewRun()

	ch, err := run.Start(context.Background(), "doc")
	require.NoError(t, err)
	events := drain(ch)

	require.Equal(t, engine.StatusAwaitingInput, run.Status())
	pending := run.Pending()
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].ID, "engine assigns an ID when the step leaves it empty")
	assert.Equal(t, "ask", pending[0].Origin)

	// suspension surfaced as a typed event, not a blocked goroutine
	var info *domain.RequestInfoEvent
	for _, ev := range events {
		if e, ok := ev.(domain.RequestInfoEvent); ok {
			info = &e
		}
	}
	require.NotNil(t, info)
	assert.Equal(t, pending[0].ID, info.Request.ID)

	// the correlation store holds the request until resume
	assert.Equal(t, 1, eng.Approvals().Len())

	decision := domain.ApprovalDecision{RequestID: pending[0].ID, Approved: true, Comment: "ok"}
	ch, err = run.Resume(context.Background(), map[string]domain.ApprovalDecision{
		pending[0].ID: decision,
	})
	require.NoError(t, err)
	drain(ch)

	assert.Equal(t, engine.StatusCompleted, run.Status())
	assert.Equal(t, decision, run.Output(), "origin node re-invoked with the correlated decision")
	assert.Equal(t, 0, eng.Approvals().Len(), "resume consumes the stored request")
	assert.Empty(t, run.Pending())
}

func TestRun_ResumeUnknownIDRejectsBatch(t *testing.T) {
	eng := suspendingEngine(t)
	run := eng.NewRun()

	ch, err := run.Start(context.Background(), "doc")
	require.NoError(t, err)
	drain(ch)

	pending := run.Pending()
	require.Len(t, pending, 1)

	// one valid answer plus one unknown ID: the whole batch is rejected
	_, err = run.Resume(context.Background(), map[string]domain.ApprovalDecision{
		pending[0].ID: {RequestID: pending[0].ID, Approved: true},
		"ghost":       {RequestID: "ghost", Approved: true},
	})
	require.Error(t, err)

	var corrErr *domain.CorrelationError
	require.ErrorAs(t, err, &corrErr)
	assert.Equal(t, "ghost", corrErr.RequestID)

	// nothing changed: still parked, request still stored
	assert.Equal(t, engine.StatusAwaitingInput, run.Status())
	assert.Len(t, run.Pending(), 1)
	assert.Equal(t, 1, eng.Approvals().Len())

	// the valid answer alone still works afterwards
	ch, err = run.Resume(context.Background(), map[string]domain.ApprovalDecision{
		pending[0].ID: {RequestID: pending[0].ID, Approved: false},
	})
	require.NoError(t, err)
	drain(ch)
	assert.Equal(t, engine.StatusCompleted, run.Status())
}

func TestRun_ResumeWhenNotAwaiting(t *testing.T) {
	eng := suspendingEngine(t)
	run := eng.NewRun()

	_, err := run.Resume(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNotAwaitingInput)
}

func TestRun_IterationLimit(t *testing.T) {
	// a -> b -> a forever, no suspension, no yield
	bounce := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Broadcast(msg.Payload), nil
	}

	eng := newEngine(t,
		[]domain.Node{
			{ID: "a", Step: bounce},
			{ID: "b", Step: bounce},
		},
		[]domain.Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
		"a",
		engine.WithMaxIterations(10),
	)

	run := eng.NewRun()
	ch, err := run.Start(context.Background(), nil)
	require.NoError(t, err)
	drain(ch)

	assert.Equal(t, engine.StatusFailed, run.Status())
	assert.ErrorIs(t, run.Err(), domain.ErrIterationLimit)
	assert.Equal(t, 11, run.Iterations())
}

func TestRun_StepErrorFailsRun(t *testing.T) {
	boom := errors.New("extraction exploded")
	eng := newEngine(t,
		[]domain.Node{{ID: "a", Step: func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
			return domain.StepResult{}, boom
		}}},
		nil, "a",
	)

	run := eng.NewRun()
	ch, err := run.Start(context.Background(), nil)
	require.NoError(t, err)
	drain(ch)

	assert.Equal(t, engine.StatusFailed, run.Status())

	var stepErr *domain.StepError
	require.ErrorAs(t, run.Err(), &stepErr)
	assert.Equal(t, "a", stepErr.NodeID)
	assert.ErrorIs(t, run.Err(), boom)
}

func TestRun_InvalidSendTarget(t *testing.T) {
	eng := newEngine(t,
		[]domain.Node{
			{ID: "a", Step: func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
				return domain.Forward(domain.Send{Payload: 1, Target: "elsewhere"}), nil
			}},
			{ID: "b", Step: func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
				return domain.Yield(nil), nil
			}},
		},
		[]domain.Edge{{From: "a", To: "b"}},
		"a",
	)

	run := eng.NewRun()
	ch, err := run.Start(context.Background(), nil)
	require.NoError(t, err)
	drain(ch)

	assert.Equal(t, engine.StatusFailed, run.Status())
	assert.ErrorContains(t, run.Err(), "elsewhere")
}

func TestRun_DrainedQueueCompletes(t *testing.T) {
	// the sole node forwards, but has no outgoing edges: the queue drains
	// with nothing pending and the run completes with no output
	eng := newEngine(t,
		[]domain.Node{{ID: "a", Step: func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
			return domain.Broadcast(msg.Payload), nil
		}}},
		nil, "a",
	)

	run := eng.NewRun()
	ch, err := run.Start(context.Background(), nil)
	require.NoError(t, err)
	drain(ch)

	assert.Equal(t, engine.StatusCompleted, run.Status())
	assert.Nil(t, run.Output())
}

func TestRun_FanOutBatchSuspensions(t *testing.T) {
	// one pass raises two suspensions; resume requires the complete batch
	gate := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		if v, ok := msg.Payload.(domain.ResolvedApproval); ok {
			return domain.Broadcast(v.Decision.Approved), nil
		}
		return domain.Suspend(domain.ApprovalRequest{Title: "gate"}), nil
	}
	// sink arrivals run concurrently within a pass
	var mu sync.Mutex
	var got []bool
	collect := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg.Payload.(bool))
		if len(got) == 2 {
			return domain.Yield(len(got)), nil
		}
		return domain.Forward(), nil
	}

	eng := newEngine(t,
		[]domain.Node{
			{ID: "fan", Step: func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
				return domain.Broadcast(msg.Payload), nil
			}},
			{ID: "gate1", Step: gate},
			{ID: "gate2", Step: gate},
			{ID: "sink", Step: collect, Terminal: true},
		},
		[]domain.Edge{
			{From: "fan", To: "gate1"},
			{From: "fan", To: "gate2"},
			{From: "gate1", To: "sink"},
			{From: "gate2", To: "sink"},
		},
		"fan",
	)

	run := eng.NewRun()
	ch, err := run.Start(context.Background(), "doc")
	require.NoError(t, err)
	drain(ch)

	require.Equal(t, engine.StatusAwaitingInput, run.Status())
	pending := run.Pending()
	require.Len(t, pending, 2)

	answers := make(map[string]domain.ApprovalDecision, 2)
	for _, req := range pending {
		answers[req.ID] = domain.ApprovalDecision{RequestID: req.ID, Approved: true}
	}
	ch, err = run.Resume(context.Background(), answers)
	require.NoError(t, err)
	drain(ch)

	assert.Equal(t, engine.StatusCompleted, run.Status())
	assert.Len(t, got, 2)
}

func TestRun_YieldReleasesSiblingSuspension(t *testing.T) {
	// one branch suspends, the sibling branch yields a pass later; the
	// completed run must not leave the stored request behind
	relay := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Broadcast(msg.Payload), nil
	}
	ask := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Suspend(domain.ApprovalRequest{Title: "Check"}), nil
	}
	done := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		return domain.Yield("short-circuit"), nil
	}

	eng := newEngine(t,
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

	run := eng.NewRun()
	ch, err := run.Start(context.Background(), "doc")
	require.NoError(t, err)
	drain(ch)

	assert.Equal(t, engine.StatusCompleted, run.Status())
	assert.Equal(t, "short-circuit", run.Output())
	assert.Equal(t, 0, eng.Approvals().Len(), "yield releases the sibling's stored request")
	assert.Empty(t, run.Pending())
}

func TestRun_CloseReleasesRequests(t *testing.T) {
	eng := suspendingEngine(t)
	run := eng.NewRun()

	ch, err := run.Start(context.Background(), "doc")
	require.NoError(t, err)
	drain(ch)
	require.Equal(t, 1, eng.Approvals().Len())

	run.Close()

	assert.Equal(t, 0, eng.Approvals().Len())
	assert.Equal(t, engine.StatusFailed, run.Status())
	assert.ErrorIs(t, run.Err(), domain.ErrApprovalTimeout)
}

func TestRun_ValuesReachSteps(t *testing.T) {
	// run-scoped state is visible inside every step invocation and survives
	// the suspend/resume boundary
	tally := func(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
		vals := engine.ValuesFrom(ctx)
		if vals == nil {
			return domain.StepResult{}, errors.New("no run state on context")
		}
		n := 0
		if prev, ok := vals.Get("arrivals"); ok {
			n = prev.(int)
		}
		n++
		vals.Set("arrivals", n)
		if _, ok := msg.Payload.(domain.ResolvedApproval); ok {
			return domain.Yield(n), nil
		}
		return domain.Suspend(domain.ApprovalRequest{Title: "tally"}), nil
	}

	eng := newEngine(t, []domain.Node{{ID: "tally", Step: tally}}, nil, "tally")
	run := eng.NewRun()

	ch, err := run.Start(context.Background(), "doc")
	require.NoError(t, err)
	drain(ch)
	require.Equal(t, engine.StatusAwaitingInput, run.Status())

	pending := run.Pending()
	require.Len(t, pending, 1)
	ch, err = run.Resume(context.Background(), map[string]domain.ApprovalDecision{
		pending[0].ID: {RequestID: pending[0].ID, Approved: true},
	})
	require.NoError(t, err)
	drain(ch)

	require.Equal(t, engine.StatusCompleted, run.Status())
	assert.Equal(t, 2, run.Output(), "both invocations saw the same state")
	got, ok := run.Values().Get("arrivals")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestValues_FanInAccumulation(t *testing.T) {
	vals := engine.NewValues()
	ctx := engine.WithValues(context.Background(), vals)

	require.Same(t, vals, engine.ValuesFrom(ctx))
	assert.Nil(t, engine.ValuesFrom(context.Background()))

	vals.Set("count", 1)
	prev, ok := vals.Swap("count", 2)
	require.True(t, ok)
	assert.Equal(t, 1, prev)

	got, ok := vals.Get("count")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestRun_PendingOrderIsStable(t *testing.T) {
	eng := suspendingEngine(t)

	// several independent runs against one shared store must not cross-talk
	runs := make([]*engine.Run, 3)
	for i := range runs {
		runs[i] = eng.NewRun()
		ch, err := runs[i].Start(context.Background(), fmt.Sprintf("doc-%d", i))
		require.NoError(t, err)
		drain(ch)
	}
	assert.Equal(t, 3, eng.Approvals().Len())

	for i, run := range runs {
		pending := run.Pending()
		require.Len(t, pending, 1)
		ch, err := run.Resume(context.Background(), map[string]domain.ApprovalDecision{
			pending[0].ID: {RequestID: pending[0].ID, Approved: i%2 == 0},
		})
		require.NoError(t, err)
		drain(ch)
		assert.Equal(t, engine.StatusCompleted, run.Status())
	}
	assert.Equal(t, 0, eng.Approvals().Len())
}
