// internal/hooks/hooks.go

// Package hooks provides typed builders over the event bus. Each emitter
// constructs one event shape and publishes it; none of them carry state.
package hooks

import (
	"github.com/user/songforge/internal/bus"
	"github.com/user/songforge/internal/types"
)

// Emitter publishes agent lifecycle events onto a bus.
type Emitter struct {
	bus *bus.Bus
}

// New returns an emitter bound to b.
func New(b *bus.Bus) *Emitter {
	return &Emitter{bus: b}
}

// EmitThought publishes one reasoning step.
func (e *Emitter) EmitThought(sessionID types.SessionID, thought string, stage types.Stage) {
	e.bus.Emit(types.NewEvent(types.EventThoughtCompleted, sessionID, map[string]any{
		"thought": thought,
		"stage":   string(stage),
	}))
}

// EmitAction publishes an action outcome: action_completed when err is nil,
// action_failed otherwise.
func (e *Emitter) EmitAction(sessionID types.SessionID, actionType string, data map[string]any, result string, err error) {
	payload := map[string]any{
		"action_type": actionType,
	}
	if len(data) > 0 {
		payload["action_data"] = data
	}
	typ := types.EventActionCompleted
	if err != nil {
		typ = types.EventActionFailed
		payload["error"] = err.Error()
	} else {
		payload["result"] = result
	}
	e.bus.Emit(types.NewEvent(typ, sessionID, payload))
}

// EmitStageChange publishes one recorded stage transition.
func (e *Emitter) EmitStageChange(sessionID types.SessionID, old, new types.Stage) {
	e.bus.Emit(types.NewEvent(types.EventStageChanged, sessionID, map[string]any{
		"old_stage": string(old),
		"new_stage": string(new),
	}))
}

// EmitAsset publishes asset_created, or asset_finalized when final is set.
func (e *Emitter) EmitAsset(sessionID types.SessionID, assetType string, id types.AssetID, pathOrContent string, final bool) {
	typ := types.EventAssetCreated
	if final {
		typ = types.EventAssetFinalized
	}
	e.bus.Emit(types.NewEvent(typ, sessionID, map[string]any{
		"asset_type": assetType,
		"asset_id":   string(id),
		"path":       pathOrContent,
		"is_final":   final,
	}))
}

// EmitError publishes a human-readable failure.
func (e *Emitter) EmitError(sessionID types.SessionID, message string) {
	e.bus.Emit(types.NewEvent(types.EventErrorOccurred, sessionID, map[string]any{
		"error": message,
	}))
}

// EmitLyricsGenerated publishes a new lyrics version notification.
func (e *Emitter) EmitLyricsGenerated(sessionID types.SessionID, version int) {
	e.bus.Emit(types.NewEvent(types.EventLyricsGenerated, sessionID, map[string]any{
		"version": version,
	}))
}

// EmitLyricsApproved publishes a lyrics approval.
func (e *Emitter) EmitLyricsApproved(sessionID types.SessionID, version int) {
	e.bus.Emit(types.NewEvent(types.EventLyricsApproved, sessionID, map[string]any{
		"version": version,
	}))
}

// EmitGenerationStarted publishes the start of a generation job.
func (e *Emitter) EmitGenerationStarted(sessionID types.SessionID, params *types.GenerationParams) {
	payload := map[string]any{}
	if params != nil {
		payload["prompt"] = params.Prompt
		payload["duration"] = params.Duration
		payload["candidate_count"] = params.CandidateCount
	}
	e.bus.Emit(types.NewEvent(types.EventMusicGenerationStarted, sessionID, payload))
}

// EmitGenerationCompleted publishes the outcome of a generation job.
func (e *Emitter) EmitGenerationCompleted(sessionID types.SessionID, result *types.GenerationResult) {
	payload := map[string]any{}
	if result != nil {
		payload["success"] = result.Success
		payload["audio_count"] = len(result.AudioPaths)
		if result.Error != "" {
			payload["error"] = result.Error
		}
	}
	e.bus.Emit(types.NewEvent(types.EventMusicGenerationCompleted, sessionID, payload))
}
