// Package bridge exposes a run as a long-lived external event stream and
// arbitrates out-of-band answer submission.
//
// One session correlates one run with one stream consumer. After a pass
// parks the run in AwaitingInput, the bridge emits one waiting_for_approval
// record for the batch and waits for all of its answers with a bounded,
// channel-woken wait; on timeout it emits an error record and tears the
// session down, discarding partial answers together with the run state.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/logging"
	"github.com/docweave/docweave/internal/metrics"
	"github.com/docweave/docweave/pkg/domain"
	"github.com/docweave/docweave/pkg/engine"
)

// DefaultWaitTimeout bounds how long a session waits for a batch of
// approvals before giving up.
const DefaultWaitTimeout = 300 * time.Second

// DefaultRetention is how long a finished session stays addressable for
// Status and Events before it is evicted from the session table.
const DefaultRetention = time.Hour

// Bridge manages sessions over one engine.
type Bridge struct {
	engine      *engine.Engine
	logger      *slog.Logger
	metrics     *metrics.Metrics
	waitTimeout time.Duration
	retention   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	requests map[string]string // request ID -> session ID, for answer routing
}

// Option configures the Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithWaitTimeout overrides the bounded approval wait.
func WithWaitTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.waitTimeout = d
		}
	}
}

// WithRetention overrides how long finished sessions stay addressable.
func WithRetention(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.retention = d
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New creates a Bridge over the given engine.
func New(eng *engine.Engine, opts ...Option) *Bridge {
	b := &Bridge{
		engine:      eng,
		logger:      logging.NewNop(),
		waitTimeout: DefaultWaitTimeout,
		retention:   DefaultRetention,
		sessions:    make(map[string]*Session),
		requests:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OpenSession allocates a session and starts its run asynchronously. The
// run input is delivered to the graph's start node unchanged.
func (b *Bridge) OpenSession(ctx context.Context, input any) (string, error) {
	id := uuid.NewString()
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		id:        id,
		bridge:    b,
		run:       b.engine.NewRun(),
		input:     input,
		events:    make(chan Record, eventBuffer),
		notify:    make(chan struct{}, 1),
		answers:   make(map[string]domain.ApprovalDecision),
		expected:  make(map[string]time.Time),
		cancel:    cancel,
		status:    SessionRunning,
		createdAt: time.Now().UTC(),
	}

	b.mu.Lock()
	b.sessions[id] = s
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SessionsStarted.Inc()
	}
	b.logger.Info("session opened", "session_id", id)

	go s.loop(sessionCtx)
	return id, nil
}

// Events returns the session's record stream. The channel closes after the
// terminal record; a finished session is restartable only by opening a new
// one.
func (b *Bridge) Events(sessionID string) (<-chan Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.events, nil
}

// SubmitAnswer deposits a decision for an outstanding request of the given
// session. It may be called concurrently with Events. An unknown or already
// answered request ID is ErrRequestNotFound.
func (b *Bridge) SubmitAnswer(sessionID string, decision domain.ApprovalDecision) error {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	return s.submit(decision)
}

// ResolveRequest returns the session that raised the given request ID.
// Lets the approval endpoint route a decision without a session ID, the way
// the external protocol submits it.
func (b *Bridge) ResolveRequest(requestID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sessionID, ok := b.requests[requestID]
	return sessionID, ok
}

// Status reports the lifecycle state of a session.
func (b *Bridge) Status(sessionID string) (SessionStatus, error) {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return SessionStatus{}, domain.ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Close tears a session down before its terminal state: the run's
// outstanding requests are purged from the correlation store so no orphaned
// IDs survive, and the event stream is closed.
func (b *Bridge) Close(sessionID string) error {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.cancel()
	return nil
}

// scheduleReap evicts a finished session after the retention window, so the
// session table does not grow without bound.
func (b *Bridge) scheduleReap(sessionID string) {
	time.AfterFunc(b.retention, func() {
		b.mu.Lock()
		delete(b.sessions, sessionID)
		b.mu.Unlock()
		b.logger.Debug("session evicted", "session_id", sessionID)
	})
}

func (b *Bridge) registerRequest(requestID, sessionID string) {
	b.mu.Lock()
	b.requests[requestID] = sessionID
	b.mu.Unlock()
}

func (b *Bridge) dropRequests(ids []string) {
	b.mu.Lock()
	for _, id := range ids {
		delete(b.requests, id)
	}
	b.mu.Unlock()
}
