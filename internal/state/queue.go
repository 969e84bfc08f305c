// internal/state/queue.go
package state

import (
	"log/slog"
	"sync"

	"github.com/user/songforge/internal/ring"
	"github.com/user/songforge/internal/types"
)

// DefaultQueueSize caps how many push events a session buffers before the
// oldest are discarded.
const DefaultQueueSize = 256

// PushQueue buffers push events for one session's live stream. When the
// buffer is full the oldest event is dropped so a slow or absent consumer
// never blocks producers.
type PushQueue struct {
	mu      sync.Mutex
	buf     *ring.Buffer[types.PushEvent]
	notify  chan struct{}
	dropped uint64
}

// NewPushQueue creates a queue holding at most capacity events.
func NewPushQueue(capacity int) *PushQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &PushQueue{
		buf:    ring.New[types.PushEvent](capacity),
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues an event, evicting the oldest one if the queue is full,
// then signals any waiting consumer.
func (q *PushQueue) Push(ev types.PushEvent) {
	q.mu.Lock()
	old, dropped := q.buf.Append(ev)
	if dropped {
		q.dropped++
		n := q.dropped
		q.mu.Unlock()
		slog.Debug("push queue full, dropped oldest event",
			"dropped_event", old.Event, "total_dropped", n)
	} else {
		q.mu.Unlock()
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the oldest queued event. The second return is
// false when the queue is empty.
func (q *PushQueue) TryPop() (types.PushEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.PopFront()
}

// Notify returns a channel that receives a signal after each Push. The
// channel has capacity one; consumers should drain the queue fully after
// each signal.
func (q *PushQueue) Notify() <-chan struct{} {
	return q.notify
}

// Len reports how many events are currently buffered.
func (q *PushQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len()
}

// Dropped reports how many events have been discarded since creation.
func (q *PushQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
