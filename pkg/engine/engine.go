// Package engine drives a graph as a resumable sequence of passes. A run
// executes ready steps breadth-first, propagates messages along edges, and
// collects suspensions instead of blocking: when a pass drains with
// outstanding approval requests the run parks in AwaitingInput and the
// caller re-enters it later with the matching decisions.
package engine

import (
	"log/slog"

	"github.com/docweave/docweave/internal/logging"
	"github.com/docweave/docweave/pkg/approval"
	"github.com/docweave/docweave/pkg/graph"
)

// DefaultMaxIterations bounds the number of passes per run. The review loop
// (coordinator -> gate -> coordinator) is intentionally cyclic; the bound is
// the safety valve, not cycle detection.
const DefaultMaxIterations = 80

// Engine executes runs over one immutable graph. It is safe for concurrent
// use; each run owns its own state.
type Engine struct {
	graph         *graph.Graph
	approvals     *approval.Store
	logger        *slog.Logger
	maxIterations int
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxIterations overrides the pass bound.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// New creates an engine for the given graph. The approval store pairs
// suspensions with their answers and may be shared across engines.
func New(g *graph.Graph, approvals *approval.Store, opts ...Option) *Engine {
	e := &Engine{
		graph:         g,
		approvals:     approvals,
		logger:        logging.NewNop(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the topology this engine executes.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Approvals returns the correlation store used by this engine.
func (e *Engine) Approvals() *approval.Store {
	return e.approvals
}
