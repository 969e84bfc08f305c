// internal/state/assets_test.go
package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/songforge/internal/types"
)

func TestMediaStoreSaveLyricsAndList(t *testing.T) {
	store := NewMediaStore(t.TempDir())
	id := types.NewSessionID()

	// Empty listing before any write.
	files, err := store.List(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("expected empty listing, got %d files", len(files))
	}

	path, err := store.SaveLyrics(id, 1, "第一版歌词")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "lyrics_v1.txt" {
		t.Errorf("unexpected lyrics filename: %s", path)
	}
	if _, err := store.SaveLyrics(id, 2, "第二版歌词"); err != nil {
		t.Fatal(err)
	}

	files, err = store.List(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Filename != "lyrics_v1.txt" || files[1].Filename != "lyrics_v2.txt" {
		t.Errorf("unexpected listing order: %s, %s", files[0].Filename, files[1].Filename)
	}
	want := "/api/v1/media/" + string(id) + "/lyrics_v1.txt"
	if files[0].URL != want {
		t.Errorf("expected url %s, got %s", want, files[0].URL)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "第一版歌词" {
		t.Errorf("unexpected lyrics content: %q", data)
	}
}

func TestMediaStoreImportAudio(t *testing.T) {
	store := NewMediaStore(t.TempDir())
	id := types.NewSessionID()

	src := filepath.Join(t.TempDir(), "track_1.wav")
	if err := os.WriteFile(src, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest, err := store.ImportAudio(id, src)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dest) != "track_1.wav" {
		t.Errorf("unexpected destination name: %s", dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "RIFF....WAVE" {
		t.Error("imported audio content mismatch")
	}

	// Importing a missing source fails without touching the media dir.
	if _, err := store.ImportAudio(id, filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestMediaStoreResolve(t *testing.T) {
	store := NewMediaStore(t.TempDir())
	id := types.NewSessionID()
	if _, err := store.SaveLyrics(id, 1, "内容"); err != nil {
		t.Fatal(err)
	}

	path, err := store.Resolve(id, "lyrics_v1.txt")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "lyrics_v1.txt" {
		t.Errorf("unexpected resolved path: %s", path)
	}

	var verr *types.ValidationError
	for _, name := range []string{"", "../secret", "a/b.txt", "..", "foo/../../x"} {
		if _, err := store.Resolve(id, name); !errors.As(err, &verr) {
			t.Errorf("expected validation error for %q, got %v", name, err)
		}
	}

	var nf *types.NotFoundError
	if _, err := store.Resolve(id, "nope.wav"); !errors.As(err, &nf) {
		t.Errorf("expected not-found error, got %v", err)
	}
	// Unknown sessions read as missing files, not server errors.
	if _, err := store.Resolve(types.NewSessionID(), "lyrics_v1.txt"); !errors.As(err, &nf) {
		t.Errorf("expected not-found error for unknown session, got %v", err)
	}
}
