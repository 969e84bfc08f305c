// internal/state/tracker.go
package state

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/songforge/internal/types"
)

const (
	defaultListLimit     = 20
	defaultTrackDuration = 30
)

type entry struct {
	session *Session
	queue   *PushQueue
}

// Tracker owns every live session and its push queue. Its lock covers only
// map creation and lookup; each session serializes its own mutations, so
// activity on one session never blocks another.
type Tracker struct {
	mu        sync.RWMutex
	entries   map[types.SessionID]*entry
	queueSize int
}

// NewTracker creates an empty tracker whose sessions buffer at most
// queueSize push events each.
func NewTracker(queueSize int) *Tracker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Tracker{
		entries:   make(map[types.SessionID]*entry),
		queueSize: queueSize,
	}
}

// CreateSession registers a session under id and announces it on the push
// queue. Calling it again with a known id returns the existing session.
func (t *Tracker) CreateSession(id types.SessionID) *Session {
	t.mu.Lock()
	if e, ok := t.entries[id]; ok {
		t.mu.Unlock()
		return e.session
	}
	e := &entry{
		session: newSession(id),
		queue:   NewPushQueue(t.queueSize),
	}
	t.entries[id] = e
	t.mu.Unlock()

	e.queue.Push(types.PushEvent{
		Event: types.PushSessionCreated,
		Data: map[string]any{
			"session_id": string(id),
			"created_at": e.session.CreatedAt(),
		},
		Timestamp: time.Now(),
	})
	slog.Info("session created", "session_id", id)
	return e.session
}

func (t *Tracker) lookup(id types.SessionID) (*entry, error) {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return nil, &types.NotFoundError{Resource: "session", ID: string(id)}
	}
	return e, nil
}

// Get returns the live session record for id.
func (t *Tracker) Get(id types.SessionID) (*Session, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

// Queue returns the push queue backing id's live stream.
func (t *Tracker) Queue(id types.SessionID) (*PushQueue, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.queue, nil
}

// UpdateStage advances the session's stage machine and pushes a state
// update. Illegal transitions are rejected loudly and leave the session
// untouched.
func (t *Tracker) UpdateStage(id types.SessionID, to types.Stage, desc string) error {
	e, err := t.lookup(id)
	if err != nil {
		return err
	}
	old, changed, err := e.session.Advance(to, desc)
	if err != nil {
		slog.Warn("rejected stage transition",
			"session_id", id, "from", old, "to", to, "error", err)
		return err
	}
	if changed {
		slog.Info("stage changed", "session_id", id, "from", old, "to", to)
	}
	e.queue.Push(types.PushEvent{
		Event: types.PushStateUpdate,
		Data: map[string]any{
			"stage":       string(to),
			"description": e.session.StageDescription(),
			"progress":    to.Progress(),
		},
		Timestamp: time.Now(),
	})
	return nil
}

// AddConversationTurn appends a chat turn and mirrors it to the push queue.
func (t *Tracker) AddConversationTurn(id types.SessionID, role, content string) error {
	e, err := t.lookup(id)
	if err != nil {
		return err
	}
	turn := e.session.AddTurn(role, content)
	e.queue.Push(types.PushEvent{
		Event: types.PushChatMessage,
		Data: map[string]any{
			"role":    turn.Role,
			"content": turn.Content,
		},
		Timestamp: turn.Timestamp,
	})
	return nil
}

// AddDebugLog appends a diagnostic line and mirrors it to the push queue.
func (t *Tracker) AddDebugLog(id types.SessionID, msg string) error {
	e, err := t.lookup(id)
	if err != nil {
		return err
	}
	e.session.AddDebug(msg)
	e.queue.Push(types.PushEvent{
		Event:     types.PushDebugLog,
		Data:      map[string]any{"message": msg},
		Timestamp: time.Now(),
	})
	return nil
}

// SetError marks the session failed and pushes a single error event. The
// stage change itself is not mirrored as a separate state update.
func (t *Tracker) SetError(id types.SessionID, msg string) error {
	e, err := t.lookup(id)
	if err != nil {
		return err
	}
	old, changed := e.session.Fail(msg)
	if changed {
		slog.Warn("session failed", "session_id", id, "from", old, "error", msg)
	}
	e.queue.Push(types.PushEvent{
		Event: types.PushError,
		Data: map[string]any{
			"error": msg,
			"stage": string(e.session.Stage()),
		},
		Timestamp: time.Now(),
	})
	return nil
}

// Push enqueues an arbitrary named event on the session's live stream.
func (t *Tracker) Push(id types.SessionID, event string, data map[string]any) error {
	e, err := t.lookup(id)
	if err != nil {
		return err
	}
	e.queue.Push(types.PushEvent{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	})
	return nil
}

// Snapshot exports the session's full read-only projection.
func (t *Tracker) Snapshot(id types.SessionID) (*SessionSnapshot, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.session.Export(), nil
}

// Result builds the final deliverable for a completed session. Sessions in
// any other stage return a StateError; a completed session without audio
// returns a NotFoundError.
func (t *Tracker) Result(id types.SessionID) (*ResultView, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	snap := e.session.Export()
	if snap.CurrentStage != types.StageCompleted {
		return nil, &types.StateError{
			Stage:  snap.CurrentStage,
			Reason: "session not completed",
		}
	}
	res := snap.GenerationResult
	if res == nil || len(res.AudioPaths) == 0 {
		return nil, &types.NotFoundError{Resource: "result", ID: string(id)}
	}

	duration := defaultTrackDuration
	if snap.GenerationParams != nil && snap.GenerationParams.Duration > 0 {
		duration = int(snap.GenerationParams.Duration)
	} else if snap.Requirement != nil && snap.Requirement.Duration > 0 {
		duration = int(snap.Requirement.Duration)
	}
	scores := scoreList(res.Metadata)

	files := make([]AudioFile, 0, len(res.AudioPaths))
	for i, p := range res.AudioPaths {
		name := filepath.Base(p)
		var score float64
		if i < len(scores) {
			score = scores[i]
		}
		files = append(files, AudioFile{
			URL:      MediaURL(id, name),
			Filename: name,
			Duration: duration,
			Score:    score,
		})
	}
	return &ResultView{
		SessionID:   id,
		AudioFiles:  files,
		FinalLyrics: e.session.FinalLyrics(),
		Metadata:    res.Metadata,
		CompletedAt: snap.UpdatedAt,
	}, nil
}

// scoreList pulls per-track scores out of generation metadata when present.
func scoreList(meta map[string]any) []float64 {
	if meta == nil {
		return nil
	}
	switch v := meta["scores"].(type) {
	case []float64:
		return v
	case []any:
		out := make([]float64, 0, len(v))
		for _, x := range v {
			f, ok := x.(float64)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

// ListSessions returns one page of sessions ordered newest first, ties
// broken by id.
func (t *Tracker) ListSessions(limit, offset int) SessionList {
	t.mu.RLock()
	sessions := make([]*Session, 0, len(t.entries))
	for _, e := range t.entries {
		sessions = append(sessions, e.session)
	}
	t.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i].CreatedAt(), sessions[j].CreatedAt()
		if a.Equal(b) {
			return sessions[i].ID() < sessions[j].ID()
		}
		return a.After(b)
	})

	total := len(sessions)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := sessions[offset:end]
	out := SessionList{
		Sessions: make([]SessionSummary, 0, len(page)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		HasMore:  end < total,
	}
	for _, s := range page {
		out.Sessions = append(out.Sessions, s.Summary())
	}
	return out
}

// StuckSessions returns the ids of non-terminal sessions that have not been
// touched within threshold, sorted for stable reporting.
func (t *Tracker) StuckSessions(threshold time.Duration) []types.SessionID {
	t.mu.RLock()
	sessions := make([]*Session, 0, len(t.entries))
	for _, e := range t.entries {
		sessions = append(sessions, e.session)
	}
	t.mu.RUnlock()

	cutoff := time.Now().Add(-threshold)
	var stuck []types.SessionID
	for _, s := range sessions {
		if s.Stage().Terminal() {
			continue
		}
		if s.UpdatedAt().Before(cutoff) {
			stuck = append(stuck, s.ID())
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
	return stuck
}

// Count reports how many sessions the tracker holds.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
