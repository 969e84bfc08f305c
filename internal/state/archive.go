// internal/state/archive.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/songforge/internal/types"
)

// EventArchive is a JSONL-backed append-only archive of bus events.
// Events land per-session in sessions/<sessionID>/events.jsonl so a
// session's history survives a restart even though live state does not.
type EventArchive struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// NewEventArchive creates a file-backed EventArchive rooted at the given
// directory.
func NewEventArchive(root string) *EventArchive {
	return &EventArchive{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
	}
}

// getLock returns the per-session mutex, creating one if it doesn't exist.
func (a *EventArchive) getLock(sessionID types.SessionID) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	if lock, ok := a.locks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	a.locks[sessionID] = lock
	return lock
}

func (a *EventArchive) eventsPath(sessionID types.SessionID) string {
	return filepath.Join(a.root, "sessions", string(sessionID), "events.jsonl")
}

// Append adds an event to the session's archive file.
func (a *EventArchive) Append(_ context.Context, event types.Event) error {
	lock := a.getLock(event.SessionID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(a.eventsPath(event.SessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(a.eventsPath(event.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// Tail returns the last N archived events for the given session.
func (a *EventArchive) Tail(_ context.Context, sessionID types.SessionID, limit int) ([]types.Event, error) {
	lock := a.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(a.eventsPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var events []types.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event types.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events file: %w", err)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	return events, nil
}

// Count returns the number of archived events for the given session.
func (a *EventArchive) Count(_ context.Context, sessionID types.SessionID) (int64, error) {
	lock := a.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(a.eventsPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan events file: %w", err)
	}
	return count, nil
}
