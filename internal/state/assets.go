// internal/state/assets.go
package state

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/songforge/internal/types"
)

// MediaFile describes one file in a session's media directory.
type MediaFile struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Size       int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// MediaURL builds the public download path for a session's media file.
func MediaURL(sessionID types.SessionID, filename string) string {
	return fmt.Sprintf("/api/v1/media/%s/%s", sessionID, filename)
}

// MediaStore lays out per-session media files (lyrics text, imported audio)
// under root/sessions/<sessionID>/media.
type MediaStore struct {
	root string
}

// NewMediaStore creates a file-backed MediaStore rooted at the given
// directory.
func NewMediaStore(root string) *MediaStore {
	return &MediaStore{root: root}
}

// Dir returns the media directory for a session without creating it.
func (m *MediaStore) Dir(sessionID types.SessionID) string {
	return filepath.Join(m.root, "sessions", string(sessionID), "media")
}

func (m *MediaStore) ensureDir(sessionID types.SessionID) (string, error) {
	dir := m.Dir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	return dir, nil
}

// SaveLyrics writes one lyrics version as lyrics_v<version>.txt and returns
// the file path. Writes are atomic (temp file + rename).
func (m *MediaStore) SaveLyrics(sessionID types.SessionID, version int, content string) (string, error) {
	dir, err := m.ensureDir(sessionID)
	if err != nil {
		return "", err
	}

	target := filepath.Join(dir, fmt.Sprintf("lyrics_v%d.txt", version))
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write temp lyrics file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp lyrics file: %w", err)
	}
	return target, nil
}

// ImportAudio copies a generated audio file into the session's media
// directory under its base name and returns the new path. The source is
// left in place; the generation backend owns its output directory.
func (m *MediaStore) ImportAudio(sessionID types.SessionID, src string) (string, error) {
	dir, err := m.ensureDir(sessionID)
	if err != nil {
		return "", err
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source audio: %w", err)
	}
	defer in.Close()

	target := filepath.Join(dir, filepath.Base(src))
	tmp := target + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close temp audio file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp audio file: %w", err)
	}
	return target, nil
}

// List returns the session's media files sorted by name. A session with no
// media directory yet lists as empty.
func (m *MediaStore) List(sessionID types.SessionID) ([]MediaFile, error) {
	entries, err := os.ReadDir(m.Dir(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []MediaFile{}, nil
		}
		return nil, fmt.Errorf("read media dir: %w", err)
	}

	files := make([]MediaFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, MediaFile{
			Filename:   e.Name(),
			URL:        MediaURL(sessionID, e.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// Resolve maps a requested filename to an absolute path inside the
// session's media directory. Names that escape the directory are rejected
// with a ValidationError; missing files return a NotFoundError.
func (m *MediaStore) Resolve(sessionID types.SessionID, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", &types.ValidationError{Field: "filename", Reason: "invalid file name"}
	}

	dir, err := filepath.Abs(m.Dir(sessionID))
	if err != nil {
		return "", fmt.Errorf("resolve media dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if !strings.HasPrefix(path, dir+string(filepath.Separator)) {
		return "", &types.ValidationError{Field: "filename", Reason: "invalid file name"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &types.NotFoundError{Resource: "file", ID: filename}
		}
		return "", fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return "", &types.NotFoundError{Resource: "file", ID: filename}
	}
	return path, nil
}
