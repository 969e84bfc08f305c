// Package bus is the in-process pub/sub dispatcher for agent events. It keeps
// a bounded FIFO history and fans events out to typed subscribers registered
// either for one event type or globally, in sync or async mode. A failing
// subscriber is logged and never blocks the others or the emit call.
package bus

import (
	"log/slog"
	"sync"

	"github.com/user/songforge/internal/ring"
	"github.com/user/songforge/internal/types"
)

// DefaultHistorySize bounds the event history when no size is configured.
const DefaultHistorySize = 1000

// Mode selects how a subscriber is invoked during Emit.
type Mode string

const (
	// ModeSync subscribers run inline, in registration order, before any
	// async subscriber is scheduled.
	ModeSync Mode = "sync"
	// ModeAsync subscribers run concurrently; Emit waits for all of them.
	ModeAsync Mode = "async"
)

// Handler receives events. Returned errors are logged, not propagated.
type Handler interface {
	HandleEvent(ev types.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev types.Event) error

func (f HandlerFunc) HandleEvent(ev types.Event) error {
	return f(ev)
}

// Subscription is the registration handle returned by Register and
// RegisterGlobal; pass it to Unregister to remove the subscriber.
type Subscription struct {
	eventType types.EventType
	global    bool
	mode      Mode
	handler   Handler
}

// Bus dispatches events and records them in a bounded history.
type Bus struct {
	mu     sync.RWMutex
	byType map[types.EventType][]*Subscription
	global []*Subscription

	histMu  sync.Mutex
	history *ring.Buffer[types.Event]
}

// New returns a bus with the given history capacity. Sizes below 1 fall back
// to DefaultHistorySize.
func New(historySize int) *Bus {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Bus{
		byType:  make(map[types.EventType][]*Subscription),
		history: ring.New[types.Event](historySize),
	}
}

// Register subscribes handler to one event type.
func (b *Bus) Register(eventType types.EventType, handler Handler, mode Mode) *Subscription {
	sub := &Subscription{eventType: eventType, mode: mode, handler: handler}
	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], sub)
	b.mu.Unlock()
	return sub
}

// RegisterGlobal subscribes handler to every event type.
func (b *Bus) RegisterGlobal(handler Handler, mode Mode) *Subscription {
	sub := &Subscription{global: true, mode: mode, handler: handler}
	b.mu.Lock()
	b.global = append(b.global, sub)
	b.mu.Unlock()
	return sub
}

// Unregister removes a subscription. Unknown handles are ignored.
func (b *Bus) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.global {
		b.global = remove(b.global, sub)
		return
	}
	b.byType[sub.eventType] = remove(b.byType[sub.eventType], sub)
}

func remove(subs []*Subscription, target *Subscription) []*Subscription {
	for i, s := range subs {
		if s == target {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Emit records the event in history, runs matching sync subscribers in
// registration order (type-scoped before global), then runs matching async
// subscribers concurrently and waits for all of them.
func (b *Bus) Emit(ev types.Event) {
	b.histMu.Lock()
	b.history.Append(ev)
	b.histMu.Unlock()

	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.byType[ev.Type])+len(b.global))
	matched = append(matched, b.byType[ev.Type]...)
	matched = append(matched, b.global...)
	b.mu.RUnlock()

	for _, sub := range matched {
		if sub.mode == ModeSync {
			b.dispatch(sub, ev)
		}
	}

	var wg sync.WaitGroup
	for _, sub := range matched {
		if sub.mode != ModeAsync {
			continue
		}
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			b.dispatch(s, ev)
		}(sub)
	}
	wg.Wait()
}

// dispatch isolates one subscriber invocation: panics and returned errors are
// logged and swallowed.
func (b *Bus) dispatch(sub *Subscription, ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked",
				"event_type", ev.Type,
				"session_id", ev.SessionID,
				"panic", r)
		}
	}()
	if err := sub.handler.HandleEvent(ev); err != nil {
		slog.Error("event subscriber failed",
			"event_type", ev.Type,
			"session_id", ev.SessionID,
			"error", err)
	}
}

// History returns the most recent limit events matching the optional session
// and type filters, in emission order. limit <= 0 returns every match still
// in the buffer.
func (b *Bus) History(sessionID types.SessionID, eventType types.EventType, limit int) []types.Event {
	b.histMu.Lock()
	all := b.history.Items()
	b.histMu.Unlock()

	matched := make([]types.Event, 0, len(all))
	for _, ev := range all {
		if sessionID != "" && ev.SessionID != sessionID {
			continue
		}
		if eventType != "" && ev.Type != eventType {
			continue
		}
		matched = append(matched, ev)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// HistoryLen returns the number of events currently buffered.
func (b *Bus) HistoryLen() int {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	return b.history.Len()
}
