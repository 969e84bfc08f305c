// internal/state/session.go
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/user/songforge/internal/ring"
	"github.com/user/songforge/internal/types"
)

// Log tail capacities. Exports trim further (10/20/10), these bound what the
// record retains at all.
const (
	debugLogCap   = 256
	thoughtLogCap = 128
	actionLogCap  = 128
)

// Session is the mutable record of one conversation. It guards itself with
// its own lock so unrelated sessions never contend; the tracker's lock covers
// only map create/lookup.
type Session struct {
	mu sync.Mutex

	id        types.SessionID
	createdAt time.Time
	updatedAt time.Time

	stage     types.Stage
	stageDesc string

	requirement  *types.Requirement
	lyrics       []types.LyricsVersion
	selected     int // selected version number, 0 when none
	params       *types.GenerationParams
	result       *types.GenerationResult
	conversation []types.ConversationTurn
	transitions  []types.StageTransition
	assets       []types.Asset
	errMsg       string

	debugLog   *ring.Buffer[types.DebugEntry]
	thoughtLog *ring.Buffer[types.ThoughtEntry]
	actionLog  *ring.Buffer[types.ActionEntry]
}

func newSession(id types.SessionID) *Session {
	now := time.Now()
	return &Session{
		id:         id,
		createdAt:  now,
		updatedAt:  now,
		stage:      types.StageInit,
		stageDesc:  types.StageInit.Describe(),
		debugLog:   ring.New[types.DebugEntry](debugLogCap),
		thoughtLog: ring.New[types.ThoughtEntry](thoughtLogCap),
		actionLog:  ring.New[types.ActionEntry](actionLogCap),
	}
}

func (s *Session) ID() types.SessionID {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) Stage() types.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) StageDescription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stageDesc
}

func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Advance moves the stage machine along one edge. Same-stage calls refresh
// the description without recording a transition. Illegal edges return a
// StateError and change nothing.
func (s *Session) Advance(to types.Stage, desc string) (old types.Stage, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old = s.stage
	if to == s.stage {
		if desc != "" {
			s.stageDesc = desc
		}
		s.updatedAt = time.Now()
		return old, false, nil
	}
	if !types.CanTransition(s.stage, to) {
		return old, false, &types.StateError{
			Stage:  s.stage,
			Reason: fmt.Sprintf("illegal transition to %s", to),
		}
	}

	now := time.Now()
	s.transitions = append(s.transitions, types.StageTransition{From: s.stage, To: to, At: now})
	s.appendDebugLocked(fmt.Sprintf("stage: %s -> %s", s.stage, to), now)
	s.stage = to
	if desc == "" {
		desc = to.Describe()
	}
	s.stageDesc = desc
	s.updatedAt = now
	return old, true, nil
}

// Fail forces the session into the failed stage and records the message.
// Terminal sessions keep their stage; only the error message is updated.
func (s *Session) Fail(msg string) (old types.Stage, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = msg
	old = s.stage
	if s.stage.Terminal() {
		s.appendDebugLocked(fmt.Sprintf("error after terminal stage: %s", msg), time.Now())
		return old, false
	}
	now := time.Now()
	s.transitions = append(s.transitions, types.StageTransition{From: s.stage, To: types.StageFailed, At: now})
	s.appendDebugLocked(fmt.Sprintf("stage: %s -> %s (%s)", s.stage, types.StageFailed, msg), now)
	s.stage = types.StageFailed
	s.stageDesc = types.StageFailed.Describe()
	s.updatedAt = now
	return old, true
}

func (s *Session) SetRequirement(req *types.Requirement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirement = req
	s.updatedAt = time.Now()
}

// Requirement returns a copy; callers may not mutate session state through it.
func (s *Session) Requirement() *types.Requirement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requirement == nil {
		return nil
	}
	cp := *s.requirement
	cp.SpecificRequests = append([]string(nil), s.requirement.SpecificRequests...)
	return &cp
}

func (s *Session) AddTurn(role, content string) types.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn := types.ConversationTurn{Role: role, Content: content, Timestamp: time.Now()}
	s.conversation = append(s.conversation, turn)
	s.updatedAt = turn.Timestamp
	return turn
}

// LastUserMessage returns the most recent user turn's content.
func (s *Session) LastUserMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.conversation) - 1; i >= 0; i-- {
		if s.conversation[i].Role == "user" {
			return s.conversation[i].Content
		}
	}
	return ""
}

// Conversation returns a copy of the full chat history in order.
func (s *Session) Conversation() []types.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ConversationTurn(nil), s.conversation...)
}

func (s *Session) AddDebug(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendDebugLocked(msg, time.Now())
}

func (s *Session) appendDebugLocked(msg string, at time.Time) {
	s.debugLog.Append(types.DebugEntry{Message: msg, Timestamp: at})
}

func (s *Session) AddThought(stage types.Stage, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thoughtLog.Append(types.ThoughtEntry{Stage: stage, Content: content, Timestamp: time.Now()})
}

func (s *Session) AddAction(entry types.ActionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.actionLog.Append(entry)
}

// AddLyricsVersion appends an immutable new version numbered len+1.
func (s *Session) AddLyricsVersion(content, feedback string) types.LyricsVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := types.LyricsVersion{
		Version:   len(s.lyrics) + 1,
		Content:   content,
		Feedback:  feedback,
		CreatedAt: time.Now(),
	}
	s.lyrics = append(s.lyrics, v)
	s.updatedAt = v.CreatedAt
	return v
}

// ApproveLyrics flags an existing version and remembers it as selected.
// Returns false when the version does not exist.
func (s *Session) ApproveLyrics(version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version < 1 || version > len(s.lyrics) {
		return false
	}
	s.lyrics[version-1].Approved = true
	s.selected = version
	s.updatedAt = time.Now()
	return true
}

func (s *Session) LyricsVersions() []types.LyricsVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.LyricsVersion(nil), s.lyrics...)
}

func (s *Session) LatestLyrics() (types.LyricsVersion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lyrics) == 0 {
		return types.LyricsVersion{}, false
	}
	return s.lyrics[len(s.lyrics)-1], true
}

// HasApprovedLyrics reports whether any version carries the approval flag.
func (s *Session) HasApprovedLyrics() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.lyrics {
		if v.Approved {
			return true
		}
	}
	return false
}

// selectedLocked picks the effective lyrics version by priority: explicitly
// selected, most recent approved, first.
func (s *Session) selectedLocked() (types.LyricsVersion, bool) {
	if s.selected >= 1 && s.selected <= len(s.lyrics) {
		return s.lyrics[s.selected-1], true
	}
	for i := len(s.lyrics) - 1; i >= 0; i-- {
		if s.lyrics[i].Approved {
			return s.lyrics[i], true
		}
	}
	if len(s.lyrics) > 0 {
		return s.lyrics[0], true
	}
	return types.LyricsVersion{}, false
}

// SelectedLyrics returns the version FinalLyrics reads its text from.
func (s *Session) SelectedLyrics() (types.LyricsVersion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

// FinalLyrics picks the lyrics text by priority: explicitly selected version,
// most recent approved version, first version, empty string.
func (s *Session) FinalLyrics() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.selectedLocked()
	if !ok {
		return ""
	}
	return v.Content
}

func (s *Session) SetGenerationParams(p *types.GenerationParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.updatedAt = time.Now()
}

func (s *Session) SetGenerationResult(r *types.GenerationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
	s.updatedAt = time.Now()
}

func (s *Session) GenerationResult() *types.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	var cp types.GenerationResult
	if err := copier.CopyWithOption(&cp, s.result, copier.Option{DeepCopy: true}); err != nil {
		cp = *s.result
	}
	return &cp
}

func (s *Session) AddAsset(asset types.Asset) types.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if asset.ID == "" {
		asset.ID = types.NewAssetID()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	s.assets = append(s.assets, asset)
	s.updatedAt = asset.CreatedAt
	return asset
}

// Transitions returns a copy of every recorded stage transition in order.
func (s *Session) Transitions() []types.StageTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.StageTransition(nil), s.transitions...)
}

// Export builds a deep-copied, trimmed projection of the record. The
// ExportedAt field is refreshed on every call; everything else is stable
// between mutations.
func (s *Session) Export() *SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &SessionSnapshot{
		SessionID:        s.id,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
		CurrentStage:     s.stage,
		StageDescription: s.stageDesc,
		Progress:         s.stage.Progress(),
		SelectedVersion:  s.selected,
		Error:            s.errMsg,
		DebugLogs:        s.debugLog.Tail(10),
		Thoughts:         s.thoughtLog.Tail(20),
		Actions:          s.actionLog.Tail(10),
		ExportedAt:       time.Now(),
	}
	if s.requirement != nil {
		snap.Requirement = &types.Requirement{}
		if err := copier.CopyWithOption(snap.Requirement, s.requirement, copier.Option{DeepCopy: true}); err != nil {
			*snap.Requirement = *s.requirement
		}
	}
	_ = copier.CopyWithOption(&snap.ConversationHistory, &s.conversation, copier.Option{DeepCopy: true})
	_ = copier.CopyWithOption(&snap.LyricsVersions, &s.lyrics, copier.Option{DeepCopy: true})
	_ = copier.CopyWithOption(&snap.Assets, &s.assets, copier.Option{DeepCopy: true})
	if s.params != nil {
		snap.GenerationParams = &types.GenerationParams{}
		_ = copier.CopyWithOption(snap.GenerationParams, s.params, copier.Option{DeepCopy: true})
	}
	if s.result != nil {
		snap.GenerationResult = &types.GenerationResult{}
		_ = copier.CopyWithOption(snap.GenerationResult, s.result, copier.Option{DeepCopy: true})
	}
	return snap
}

// Summary builds the listing row for this session under a single lock hold.
func (s *Session) Summary() SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := SessionSummary{
		SessionID:        s.id,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
		CurrentStage:     s.stage,
		StageDescription: s.stageDesc,
		Progress:         s.stage.Progress(),
		Error:            s.errMsg,
	}
	if s.requirement != nil {
		sum.Style = s.requirement.Style
		sum.Duration = int(s.requirement.Duration)
	}
	if s.result != nil {
		sum.AudioCount = len(s.result.AudioPaths)
	}
	return sum
}
