// internal/state/preset_test.go
package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPresetStoreDefaults(t *testing.T) {
	store := NewPresetStore(filepath.Join(t.TempDir(), "presets.json"))

	// No file on disk yet: the built-in defaults answer.
	styles, err := store.Styles()
	if err != nil {
		t.Fatal(err)
	}
	if len(styles) != 5 {
		t.Fatalf("expected 5 default styles, got %d", len(styles))
	}

	rap, err := store.Style("说唱")
	if err != nil {
		t.Fatal(err)
	}
	if rap.Prompt == "" || rap.Guidance == "" {
		t.Error("rap preset missing prompt or guidance")
	}
	if len(rap.GuidanceSchedule) != 4 {
		t.Errorf("expected 4 schedule points, got %d", len(rap.GuidanceSchedule))
	}
	if rap.GuidanceSchedule[0].Scale != 12 {
		t.Errorf("expected rap opening scale 12, got %v", rap.GuidanceSchedule[0].Scale)
	}
}

func TestPresetStoreUnknownStyle(t *testing.T) {
	store := NewPresetStore(filepath.Join(t.TempDir(), "presets.json"))

	p, err := store.Style("爵士")
	if err != nil {
		t.Fatal(err)
	}
	if p.Prompt != "爵士" {
		t.Errorf("expected raw style as prompt, got %q", p.Prompt)
	}
	if p.Guidance != genericGuidance {
		t.Errorf("expected generic guidance, got %q", p.Guidance)
	}
	if len(p.GuidanceSchedule) != 4 {
		t.Errorf("expected base schedule, got %d points", len(p.GuidanceSchedule))
	}
}

func TestPresetStoreTranslations(t *testing.T) {
	store := NewPresetStore(filepath.Join(t.TempDir(), "presets.json"))

	if kw := store.MoodKeywords("激昂"); kw != "energetic, passionate, powerful, uplifting" {
		t.Errorf("unexpected mood keywords: %q", kw)
	}
	// Unknown moods translate to nothing.
	if kw := store.MoodKeywords("salty"); kw != "" {
		t.Errorf("expected empty translation, got %q", kw)
	}

	if kw := store.RequestKeywords("要有吉他solo"); kw != "guitar solo, guitar lead" {
		t.Errorf("unexpected request keywords: %q", kw)
	}
	// Unknown requests translate to nothing.
	if kw := store.RequestKeywords("随便"); kw != "" {
		t.Errorf("expected empty translation, got %q", kw)
	}
}

func TestPresetStoreSeedAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	store := NewPresetStore(path)

	if err := store.Seed(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("seed did not create the file: %v", err)
	}

	// Seeding again leaves an existing file alone.
	if err := store.Seed(); err != nil {
		t.Fatal(err)
	}

	// Edits on disk take effect without a restart.
	edited := `{"styles":[{"style":"说唱","prompt":"custom rap","guidance":"x"}],"moods":{},"requests":{}}`
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := store.Style("说唱")
	if err != nil {
		t.Fatal(err)
	}
	if p.Prompt != "custom rap" {
		t.Errorf("expected edited prompt, got %q", p.Prompt)
	}
}
