package gateway

import (
	"context"

	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
)

// Gateway feeds inbound events into per-session run lanes. It validates the
// target session, wraps each event in a Run, and enqueues the run for the
// orchestrator. Chat messages and review decisions share one lane per
// session, so the orchestrator always observes them in arrival order.
type Gateway struct {
	tracker *state.Tracker
	Queue   *Queue

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway bound to the session tracker with the given
// concurrency limit for simultaneous run processing.
func New(tracker *state.Tracker, maxConcurrent int64) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Gateway{
		tracker: tracker,
		Queue:   NewQueue(maxConcurrent),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context and stops the queue.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked when the run produces a final reply.
func WithOnComplete(fn func(string)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleInbound validates that the event's session exists, wraps the event
// in a Run, and enqueues it for processing. Unknown sessions return a
// NotFoundError.
func (g *Gateway) HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...RunOption) (*Run, error) {
	if _, err := g.tracker.Get(event.SessionID); err != nil {
		return nil, err
	}
	run := NewRun(event.SessionID, event)
	for _, opt := range opts {
		opt(run)
	}
	if err := g.Queue.Enqueue(run); err != nil {
		return nil, err
	}
	return run, nil
}
