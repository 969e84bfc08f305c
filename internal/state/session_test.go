// internal/state/session_test.go
package state

import (
	"errors"
	"fmt"
	"testing"

	"github.com/user/songforge/internal/types"
)

func TestSessionAdvance(t *testing.T) {
	s := newSession(types.NewSessionID())
	if s.Stage() != types.StageInit {
		t.Fatalf("expected init stage, got %s", s.Stage())
	}

	// Walk the happy path up to lyric review.
	path := []types.Stage{
		types.StageCollectingRequirements,
		types.StageGeneratingLyrics,
		types.StageReviewingLyrics,
	}
	for _, next := range path {
		old, changed, err := s.Advance(next, "")
		if err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if !changed {
			t.Errorf("advance to %s reported no change", next)
		}
		if old == next {
			t.Errorf("transition recorded with old == new (%s)", next)
		}
	}

	// Illegal jump is rejected and leaves the stage alone.
	_, _, err := s.Advance(types.StageCompleted, "")
	var stateErr *types.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError for illegal transition, got %v", err)
	}
	if s.Stage() != types.StageReviewingLyrics {
		t.Errorf("stage changed after rejected transition: %s", s.Stage())
	}

	// Same-stage call refreshes the description without a transition.
	_, changed, err := s.Advance(types.StageReviewingLyrics, "等待反馈")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("same-stage advance reported a change")
	}
	if s.StageDescription() != "等待反馈" {
		t.Errorf("description not refreshed: %q", s.StageDescription())
	}
	if n := len(s.Transitions()); n != len(path) {
		t.Errorf("expected %d transitions, got %d", len(path), n)
	}
}

func TestSessionFail(t *testing.T) {
	s := newSession(types.NewSessionID())
	if _, _, err := s.Advance(types.StageCollectingRequirements, ""); err != nil {
		t.Fatal(err)
	}

	old, changed := s.Fail("backend down")
	if !changed || old != types.StageCollectingRequirements {
		t.Fatalf("expected transition from collecting_requirements, got old=%s changed=%v", old, changed)
	}
	if s.Stage() != types.StageFailed {
		t.Errorf("expected failed stage, got %s", s.Stage())
	}
	if s.Error() != "backend down" {
		t.Errorf("error message not recorded: %q", s.Error())
	}

	// Failing a terminal session keeps the stage and updates the message.
	_, changed = s.Fail("second error")
	if changed {
		t.Error("terminal session reported a stage change")
	}
	if s.Error() != "second error" {
		t.Errorf("error message not updated: %q", s.Error())
	}
}

func TestSessionLyricsVersioning(t *testing.T) {
	s := newSession(types.NewSessionID())

	v1 := s.AddLyricsVersion("第一版歌词内容", "")
	v2 := s.AddLyricsVersion("第二版歌词内容", "节奏再快一点")
	if v1.Version != 1 || v2.Version != 2 {
		t.Fatalf("expected versions 1 and 2, got %d and %d", v1.Version, v2.Version)
	}

	if s.ApproveLyrics(3) {
		t.Error("approved a version that does not exist")
	}
	if !s.ApproveLyrics(2) {
		t.Fatal("failed to approve version 2")
	}
	if !s.HasApprovedLyrics() {
		t.Error("expected an approved version")
	}
	if got := s.FinalLyrics(); got != "第二版歌词内容" {
		t.Errorf("expected selected version content, got %q", got)
	}

	// Earlier versions stay immutable.
	versions := s.LyricsVersions()
	if versions[0].Approved {
		t.Error("version 1 unexpectedly approved")
	}
	if versions[0].Content != "第一版歌词内容" {
		t.Errorf("version 1 content changed: %q", versions[0].Content)
	}
}

func TestFinalLyricsPriority(t *testing.T) {
	s := newSession(types.NewSessionID())
	if got := s.FinalLyrics(); got != "" {
		t.Errorf("expected empty lyrics, got %q", got)
	}

	s.AddLyricsVersion("版本一", "")
	s.AddLyricsVersion("版本二", "")
	if got := s.FinalLyrics(); got != "版本一" {
		t.Errorf("expected first version fallback, got %q", got)
	}

	// Approval without selection is handled by the scan.
	s.lyrics[1].Approved = true
	if got := s.FinalLyrics(); got != "版本二" {
		t.Errorf("expected latest approved version, got %q", got)
	}
}

func TestLastUserMessage(t *testing.T) {
	s := newSession(types.NewSessionID())
	if got := s.LastUserMessage(); got != "" {
		t.Errorf("expected empty message, got %q", got)
	}

	s.AddTurn("user", "写一首歌")
	s.AddTurn("assistant", "好的")
	s.AddTurn("user", "要摇滚风格")
	if got := s.LastUserMessage(); got != "要摇滚风格" {
		t.Errorf("expected latest user turn, got %q", got)
	}
}

func TestSessionExport(t *testing.T) {
	s := newSession(types.NewSessionID())
	s.SetRequirement(&types.Requirement{
		Style:            "说唱",
		Theme:            "友情",
		SpecificRequests: []string{"要有吉他solo"},
	})
	for i := 0; i < 15; i++ {
		s.AddDebug(fmt.Sprintf("line %d", i))
	}

	snap := s.Export()
	if len(snap.DebugLogs) != 10 {
		t.Fatalf("expected debug tail of 10, got %d", len(snap.DebugLogs))
	}
	if snap.DebugLogs[0].Message != "line 5" {
		t.Errorf("expected oldest surviving line 5, got %q", snap.DebugLogs[0].Message)
	}
	if snap.DebugLogs[9].Message != "line 14" {
		t.Errorf("expected newest line 14, got %q", snap.DebugLogs[9].Message)
	}

	// The export is detached from the live record.
	snap.Requirement.Style = "摇滚"
	snap.Requirement.SpecificRequests[0] = "changed"
	req := s.Requirement()
	if req.Style != "说唱" || req.SpecificRequests[0] != "要有吉他solo" {
		t.Error("mutating the export leaked into the session")
	}
}
