// internal/state/snapshot.go
package state

import (
	"time"

	"github.com/user/songforge/internal/types"
)

// SessionSnapshot is the read-only projection of a session handed to API
// consumers. Log slices carry only the most recent entries.
type SessionSnapshot struct {
	SessionID           types.SessionID          `json:"session_id"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
	CurrentStage        types.Stage              `json:"current_stage"`
	StageDescription    string                   `json:"stage_description"`
	Progress            int                      `json:"progress_percentage"`
	Requirement         *types.Requirement       `json:"user_requirement,omitempty"`
	ConversationHistory []types.ConversationTurn `json:"conversation_history"`
	LyricsVersions      []types.LyricsVersion    `json:"lyrics_versions"`
	SelectedVersion     int                      `json:"selected_version,omitempty"`
	GenerationParams    *types.GenerationParams  `json:"generation_params,omitempty"`
	GenerationResult    *types.GenerationResult  `json:"generation_result,omitempty"`
	DebugLogs           []types.DebugEntry       `json:"debug_logs"`
	Thoughts            []types.ThoughtEntry     `json:"thoughts"`
	Actions             []types.ActionEntry      `json:"actions"`
	Assets              []types.Asset            `json:"final_assets"`
	Error               string                   `json:"error,omitempty"`
	ExportedAt          time.Time                `json:"exported_at"`
}

// SessionSummary is the per-session row of a listing.
type SessionSummary struct {
	SessionID        types.SessionID `json:"session_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CurrentStage     types.Stage     `json:"current_stage"`
	StageDescription string          `json:"stage_description"`
	Progress         int             `json:"progress_percentage"`
	Style            string          `json:"style,omitempty"`
	Duration         int             `json:"duration,omitempty"`
	AudioCount       int             `json:"audio_count"`
	Error            string          `json:"error,omitempty"`
}

// SessionList is one page of session summaries, newest first.
type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
	HasMore  bool             `json:"has_more"`
}

// AudioFile describes one generated track in a result view.
type AudioFile struct {
	URL      string  `json:"url"`
	Filename string  `json:"filename"`
	Duration int     `json:"duration"`
	Score    float64 `json:"score"`
}

// ResultView is the final deliverable of a completed session.
type ResultView struct {
	SessionID   types.SessionID `json:"session_id"`
	AudioFiles  []AudioFile     `json:"audio_files"`
	FinalLyrics string          `json:"final_lyrics"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}
