// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Requirement is the structured creative request extracted from conversation.
type Requirement struct {
	Style            string   `json:"style"`
	Mood             string   `json:"mood"`
	Theme            string   `json:"theme"`
	Duration         float64  `json:"duration"`
	Language         string   `json:"language"`
	SpecificRequests []string `json:"specific_requests,omitempty"`
}

// LyricsVersion is one immutable, numbered draft of the lyrics. Content never
// changes after creation; revisions append a new version instead.
type LyricsVersion struct {
	Version   int       `json:"version"`
	Content   string    `json:"content"`
	Approved  bool      `json:"approved"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationTurn is one message in the session's chat history.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ThoughtEntry is one recorded reasoning step of the orchestrator.
type ThoughtEntry struct {
	Stage     Stage     `json:"stage"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionEntry records one executed action with its outcome.
type ActionEntry struct {
	Action    string        `json:"action"`
	Result    string        `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// DebugEntry is one line of the session's debug log.
type DebugEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StageTransition records one legal advance of the stage machine.
type StageTransition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}

// GuidancePoint is one (position, scale) pair of a guidance schedule. The
// position is a fraction of the track in [0,1].
type GuidancePoint struct {
	Position float64
	Scale    float64
}

// MarshalJSON encodes the point as a [position, scale] pair, the form the
// generation backend and the preset files use.
func (p GuidancePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Position, p.Scale})
}

func (p *GuidancePoint) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	p.Position, p.Scale = pair[0], pair[1]
	return nil
}

// GenerationParams is everything the generation collaborator needs for one job.
type GenerationParams struct {
	Prompt           string          `json:"prompt"`
	Lyrics           string          `json:"lyrics"`
	Duration         float64         `json:"duration"`
	CandidateCount   int             `json:"candidate_count"`
	GuidanceSchedule []GuidancePoint `json:"guidance_schedule,omitempty"`
	LoraNameOrPath   string          `json:"lora_name_or_path,omitempty"`
	UseCache         bool            `json:"use_cache"`
}

// GenerationResult is the outcome of one generation job. Ordinary service
// failures arrive as Success=false with Error set, never as a Go error.
// Transport marks failures that never reached the backend's business logic
// (timeouts, refused connections); retry schedules treat those differently.
type GenerationResult struct {
	Success        bool           `json:"success"`
	AudioPaths     []string       `json:"audio_paths,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	GenerationTime float64        `json:"generation_time,omitempty"`
	Transport      bool           `json:"-"`
}

// Asset is a generated artifact recorded against a session. Exactly one of
// Path or Content is set depending on the asset type.
type Asset struct {
	ID        AssetID        `json:"id"`
	Type      string         `json:"type"`
	Path      string         `json:"path,omitempty"`
	Content   string         `json:"content,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Final     bool           `json:"final"`
	CreatedAt time.Time      `json:"created_at"`
}

// LyricsReview is a user's verdict on one lyrics version.
type LyricsReview struct {
	Version  int    `json:"version"`
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// InboundEvent is one unit of user input handed to the gateway: either a chat
// message (Text) or a review decision (Review).
type InboundEvent struct {
	SessionID SessionID     `json:"session_id"`
	Source    string        `json:"source"`
	Text      string        `json:"text,omitempty"`
	Review    *LyricsReview `json:"review,omitempty"`
}

const (
	AssetTypeAudio  = "audio"
	AssetTypeLyrics = "lyrics"
)
