// internal/types/stage.go
package types

// Stage is one position in the session lifecycle state machine.
type Stage string

const (
	StageInit                   Stage = "init"
	StageCollectingRequirements Stage = "collecting_requirements"
	StageGeneratingLyrics       Stage = "generating_lyrics"
	StageReviewingLyrics        Stage = "reviewing_lyrics"
	StagePreparingGeneration    Stage = "preparing_generation"
	StageGeneratingMusic        Stage = "generating_music"
	StageCompleted              Stage = "completed"
	StageFailed                 Stage = "failed"
)

// stageTransitions is the closed edge set. Failed is additionally reachable
// from every non-terminal stage, handled in CanTransition.
var stageTransitions = map[Stage][]Stage{
	StageInit:                   {StageCollectingRequirements},
	StageCollectingRequirements: {StageGeneratingLyrics},
	StageGeneratingLyrics:       {StageReviewingLyrics},
	StageReviewingLyrics:        {StageGeneratingLyrics, StagePreparingGeneration, StageGeneratingMusic},
	StagePreparingGeneration:    {StageGeneratingMusic},
	StageGeneratingMusic:        {StageCompleted},
	StageCompleted:              {},
	StageFailed:                 {},
}

// stageProgress maps each stage to an overall completion percentage.
var stageProgress = map[Stage]int{
	StageInit:                   0,
	StageCollectingRequirements: 20,
	StageGeneratingLyrics:       40,
	StageReviewingLyrics:        60,
	StagePreparingGeneration:    70,
	StageGeneratingMusic:        85,
	StageCompleted:              100,
	StageFailed:                 0,
}

// stageDescriptions are the user-facing stage labels pushed with state updates.
var stageDescriptions = map[Stage]string{
	StageInit:                   "用户发起会话",
	StageCollectingRequirements: "正在收集用户需求",
	StageGeneratingLyrics:       "正在生成歌词",
	StageReviewingLyrics:        "等待用户审核歌词",
	StagePreparingGeneration:    "准备音乐生成参数",
	StageGeneratingMusic:        "正在生成音乐",
	StageCompleted:              "音乐生成完成",
	StageFailed:                 "生成失败",
}

// Valid reports whether s is a member of the closed stage enumeration.
func (s Stage) Valid() bool {
	_, ok := stageProgress[s]
	return ok
}

// Terminal reports whether the session can leave this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Progress returns the completion percentage for the stage (0 for unknown).
func (s Stage) Progress() int {
	return stageProgress[s]
}

// Describe returns the user-facing label for the stage.
func (s Stage) Describe() string {
	if d, ok := stageDescriptions[s]; ok {
		return d
	}
	return string(s)
}

// CanTransition reports whether the edge from → to is legal. Any non-terminal
// stage may fail; terminal stages accept no outgoing edges; self edges are
// never legal transitions (callers refresh in place instead).
func CanTransition(from, to Stage) bool {
	if from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
