package agent

import (
	"strings"

	"github.com/user/songforge/internal/types"
)

// buildParams assembles the generation request from the requirement and the
// approved lyrics. The English prompt is composed from the style preset,
// translated mood keywords, fixed vocal descriptors, and any special
// requests.
func (a *Agent) buildParams(req *types.Requirement, lyrics string) *types.GenerationParams {
	styleDesc := req.Style
	var schedule []types.GuidancePoint
	if preset, err := a.presets.Style(req.Style); err == nil {
		styleDesc = preset.Prompt
		schedule = preset.GuidanceSchedule
	}

	parts := []string{styleDesc, a.moodKeywords(req.Mood), "Chinese male vocals", "clear vocals"}
	for _, request := range req.SpecificRequests {
		parts = append(parts, a.requestKeywords(request))
	}

	duration := req.Duration
	if duration <= 0 {
		duration = a.cfg.DefaultDuration
	}

	return &types.GenerationParams{
		Prompt:           strings.Join(parts, ", "),
		Lyrics:           lyrics,
		Duration:         duration,
		CandidateCount:   a.cfg.CandidateCount,
		GuidanceSchedule: schedule,
		UseCache:         true,
	}
}

// moodKeywords translates a possibly composite Chinese mood into English
// prompt keywords. Unknown moods contribute nothing; an empty result becomes
// "emotional".
func (a *Agent) moodKeywords(mood string) string {
	var parts []string
	for _, m := range strings.Split(mood, ",") {
		if kw := a.presets.MoodKeywords(strings.TrimSpace(m)); kw != "" {
			parts = append(parts, kw)
		}
	}
	if len(parts) == 0 {
		return "emotional"
	}
	return strings.Join(parts, ", ")
}

// requestKeywords translates one special request. The preset table is tried
// first, then broad keyword matches, then a generic descriptor.
func (a *Agent) requestKeywords(request string) string {
	if kw := a.presets.RequestKeywords(request); kw != "" {
		return kw
	}
	switch {
	case containsAny(request, "吉他", "guitar"):
		return "guitar elements"
	case containsAny(request, "节奏快", "快节奏"):
		return "fast tempo"
	case containsAny(request, "节奏慢", "慢节奏"):
		return "slow tempo"
	case containsAny(request, "厚重", "深沉"):
		return "deep, rich"
	case containsAny(request, "清澈", "清晰"):
		return "clear, crisp"
	case strings.Contains(request, "电子"):
		return "electronic"
	}
	return "expressive"
}
