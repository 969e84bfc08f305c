// internal/types/stage_test.go
package types

import (
	"testing"
)

func TestStageProgressTable(t *testing.T) {
	want := map[Stage]int{
		StageInit:                   0,
		StageCollectingRequirements: 20,
		StageGeneratingLyrics:       40,
		StageReviewingLyrics:        60,
		StagePreparingGeneration:    70,
		StageGeneratingMusic:        85,
		StageCompleted:              100,
		StageFailed:                 0,
	}
	for stage, pct := range want {
		if got := stage.Progress(); got != pct {
			t.Errorf("progress(%s) = %d, want %d", stage, got, pct)
		}
	}
}

func TestCanTransitionHappyPath(t *testing.T) {
	path := []Stage{
		StageInit,
		StageCollectingRequirements,
		StageGeneratingLyrics,
		StageReviewingLyrics,
		StagePreparingGeneration,
		StageGeneratingMusic,
		StageCompleted,
	}
	for i := 0; i+1 < len(path); i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransitionReviewLoopback(t *testing.T) {
	if !CanTransition(StageReviewingLyrics, StageGeneratingLyrics) {
		t.Error("review feedback must allow looping back to generating_lyrics")
	}
	if !CanTransition(StageReviewingLyrics, StageGeneratingMusic) {
		t.Error("approval must allow reviewing_lyrics -> generating_music")
	}
}

func TestCanTransitionFailedFromAnywhere(t *testing.T) {
	for stage := range stageTransitions {
		if stage.Terminal() {
			continue
		}
		if !CanTransition(stage, StageFailed) {
			t.Errorf("expected %s -> failed to be legal", stage)
		}
	}
}

func TestCanTransitionRejectsIllegalEdges(t *testing.T) {
	cases := []struct{ from, to Stage }{
		{StageInit, StageGeneratingMusic},
		{StageCollectingRequirements, StageCompleted},
		{StageCompleted, StageInit},
		{StageFailed, StageInit},
		{StageCompleted, StageFailed},
		{StageInit, StageInit},
		{StageGeneratingMusic, Stage("mystery")},
	}
	for _, c := range cases {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be illegal", c.from, c.to)
		}
	}
}

func TestStageValid(t *testing.T) {
	if !StageReviewingLyrics.Valid() {
		t.Error("known stage reported invalid")
	}
	if Stage("whatever").Valid() {
		t.Error("arbitrary string accepted as stage")
	}
}

func TestStageDescribe(t *testing.T) {
	if StageGeneratingMusic.Describe() != "正在生成音乐" {
		t.Errorf("unexpected description: %s", StageGeneratingMusic.Describe())
	}
	// Unknown stages fall back to the raw value.
	if Stage("x").Describe() != "x" {
		t.Errorf("unexpected fallback description: %s", Stage("x").Describe())
	}
}
