/*
Package docweave is a resumable human-in-the-loop workflow engine for
document processing.

It drives a graph of asynchronous steps (extraction, compliance evaluation,
review, storage) and, instead of blocking when a step needs a human verdict,
parks the run and surfaces a typed approval request on the session's event
stream. The caller answers out of band; the run resumes with the correlated
decisions and carries on to a terminal record.

The library separates three layers:

  - pkg/engine executes one graph as a resumable sequence of passes.
  - pkg/bridge turns a run into a long-lived external event stream with a
    bounded approval wait.
  - pkg/pipeline assembles the document-review graph over the collaborator
    ports (Extractor, ComplianceEvaluator, ResultSink).

The Workflow facade in this package wires the three together for the common
case; hosts with special needs can assemble the layers directly.
*/
package docweave

import (
	"context"
	"log/slog"
	"time"

	"github.com/docweave/docweave/internal/logging"
	"github.com/docweave/docweave/pkg/approval"
	"github.com/docweave/docweave/pkg/bridge"
	"github.com/docweave/docweave/pkg/engine"
	"github.com/docweave/docweave/pkg/pipeline"
)

// Version is the library version, set at release time.
const Version = "0.3.0"

// Workflow bundles the assembled graph, engine and bridge for one
// document-review deployment.
type Workflow struct {
	engine *engine.Engine
	bridge *bridge.Bridge
	logger *slog.Logger

	waitTimeout   time.Duration
	maxIterations int
	bridgeOpts    []bridge.Option
}

// Option configures the Workflow facade.
type Option func(*Workflow)

// WithLogger sets the structured logger shared by the engine and bridge.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithApprovalTimeout bounds how long a session waits for a batch of
// approvals.
func WithApprovalTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		w.waitTimeout = d
	}
}

// WithMaxIterations overrides the engine's pass bound.
func WithMaxIterations(n int) Option {
	return func(w *Workflow) {
		w.maxIterations = n
	}
}

// WithBridgeOptions forwards extra options to the underlying bridge.
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(w *Workflow) {
		w.bridgeOpts = append(w.bridgeOpts, opts...)
	}
}

// New assembles the document-review workflow over the given collaborators.
func New(deps pipeline.Deps, opts ...Option) (*Workflow, error) {
	w := &Workflow{
		logger:        logging.NewNop(),
		waitTimeout:   bridge.DefaultWaitTimeout,
		maxIterations: engine.DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(w)
	}

	g, err := pipeline.Build(deps)
	if err != nil {
		return nil, err
	}

	w.engine = engine.New(g, approval.NewStore(),
		engine.WithLogger(w.logger),
		engine.WithMaxIterations(w.maxIterations),
	)

	bridgeOpts := append([]bridge.Option{
		bridge.WithLogger(w.logger),
		bridge.WithWaitTimeout(w.waitTimeout),
	}, w.bridgeOpts...)
	w.bridge = bridge.New(w.engine, bridgeOpts...)

	return w, nil
}

// Engine returns the underlying engine, for hosts that drive runs directly.
func (w *Workflow) Engine() *engine.Engine {
	return w.engine
}

// Bridge returns the session bridge.
func (w *Workflow) Bridge() *bridge.Bridge {
	return w.bridge
}

// Start opens a session for the given document input and returns its ID.
func (w *Workflow) Start(ctx context.Context, input any) (string, error) {
	return w.bridge.OpenSession(ctx, input)
}

// Events returns the record stream of a session.
func (w *Workflow) Events(sessionID string) (<-chan bridge.Record, error) {
	return w.bridge.Events(sessionID)
}
