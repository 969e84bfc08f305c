// internal/state/preset.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/songforge/internal/types"
)

// StylePreset carries the vocabulary for one music style: English prompt
// keywords for the generation backend, Chinese writing guidance for the
// lyricist, and the guidance schedule tuned for that style.
type StylePreset struct {
	Style            string                `json:"style"`
	Prompt           string                `json:"prompt"`
	Guidance         string                `json:"guidance"`
	GuidanceSchedule []types.GuidancePoint `json:"guidance_schedule,omitempty"`
}

// PresetFile is the on-disk shape of the preset store.
type PresetFile struct {
	Styles   []*StylePreset    `json:"styles"`
	Moods    map[string]string `json:"moods"`
	Requests map[string]string `json:"requests"`
}

// PresetStore is a JSON-file-backed store of style presets and translation
// tables. Reads go to disk on every call so external edits take effect
// without a restart; missing files fall back to the built-in defaults.
type PresetStore struct {
	path string
	mu   sync.RWMutex
}

// NewPresetStore creates a file-backed PresetStore at the given file path.
func NewPresetStore(path string) *PresetStore {
	return &PresetStore{path: path}
}

// Path returns the file path used by this store.
func (s *PresetStore) Path() string {
	return s.path
}

const genericGuidance = "保持音乐风格的特色，语言要有感染力"

func baseSchedule() []types.GuidancePoint {
	return []types.GuidancePoint{
		{Position: 0, Scale: 10},
		{Position: 0.4, Scale: 16},
		{Position: 0.8, Scale: 12},
		{Position: 1, Scale: 8},
	}
}

func defaultPresets() *PresetFile {
	return &PresetFile{
		Styles: []*StylePreset{
			{
				Style:    "说唱",
				Prompt:   "Rap, hip-hop, rhythmic, urban, strong beat",
				Guidance: "节奏感强，韵脚明显，可以有一些街头文化元素，语言可以更直接有力",
				GuidanceSchedule: []types.GuidancePoint{
					{Position: 0, Scale: 12},
					{Position: 0.3, Scale: 18},
					{Position: 0.7, Scale: 15},
					{Position: 1, Scale: 10},
				},
			},
			{
				Style:            "流行",
				Prompt:           "Pop, mainstream, catchy, melodic, contemporary",
				Guidance:         "朗朗上口，易于传唱，情感表达要真挚自然，有一定的流行元素",
				GuidanceSchedule: baseSchedule(),
			},
			{
				Style:    "摇滚",
				Prompt:   "Rock, energetic, guitar-driven, powerful, dynamic",
				Guidance: "有力量感，可以有一些叛逆或激情的元素，语言要有冲击力",
				GuidanceSchedule: []types.GuidancePoint{
					{Position: 0, Scale: 8},
					{Position: 0.2, Scale: 20},
					{Position: 0.8, Scale: 16},
					{Position: 1, Scale: 6},
				},
			},
			{
				Style:            "民谣",
				Prompt:           "Folk, acoustic, natural, storytelling, gentle",
				Guidance:         "质朴自然，有故事性，语言要温暖真实，贴近生活",
				GuidanceSchedule: baseSchedule(),
			},
			{
				Style:            "电子",
				Prompt:           "Electronic, synthesized, digital, modern, pulsing",
				Guidance:         "现代感强，可以有一些科技或未来元素，节奏要明快",
				GuidanceSchedule: baseSchedule(),
			},
		},
		Moods: map[string]string{
			"悲伤": "melancholic, sad, emotional, slow tempo",
			"愤怒": "angry, aggressive, intense, heavy",
			"快乐": "happy, upbeat, joyful, lively",
			"温柔": "gentle, soft, warm, tender",
			"激昂": "energetic, passionate, powerful, uplifting",
			"忧郁": "melancholic, moody, introspective, dark",
			"浪漫": "romantic, loving, intimate, sweet",
			"怀旧": "nostalgic, reminiscent, wistful, vintage",
			"励志": "inspiring, motivational, uplifting, hopeful",
			"平静": "calm, peaceful, serene, relaxed",
		},
		Requests: map[string]string{
			"希望感情很厚重":  "deep emotional, rich feeling, intense",
			"要有吉他solo": "guitar solo, guitar lead",
			"节奏要快一些":   "fast tempo, upbeat rhythm",
			"节奏要慢一些":   "slow tempo, gentle rhythm",
			"要有电子音效":   "electronic effects, synthesizer",
			"声音要清澈":    "clear vocals, crisp sound",
			"要有和声":     "harmony, backing vocals",
			"要有说唱部分":   "rap section, hip-hop elements",
		},
	}
}

// Styles returns every style preset, seeded defaults when no file exists.
func (s *PresetStore) Styles() ([]*StylePreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pf, err := s.load()
	if err != nil {
		return nil, err
	}
	return pf.Styles, nil
}

// Style finds a preset by exact style name. Unknown styles get a synthetic
// preset that reuses the raw name as the prompt so generation still works
// for styles nobody curated.
func (s *PresetStore) Style(name string) (*StylePreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pf, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, p := range pf.Styles {
		if p.Style == name {
			return p, nil
		}
	}
	return &StylePreset{
		Style:            name,
		Prompt:           name,
		Guidance:         genericGuidance,
		GuidanceSchedule: baseSchedule(),
	}, nil
}

// MoodKeywords translates a Chinese mood label into English prompt keywords.
// Unknown moods return an empty string; callers decide the fallback.
func (s *PresetStore) MoodKeywords(mood string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pf, err := s.load()
	if err != nil {
		return ""
	}
	return pf.Moods[mood]
}

// RequestKeywords translates a specific request into English prompt keywords.
// Unknown requests return an empty string so untranslatable free text never
// leaks into the generation prompt.
func (s *PresetStore) RequestKeywords(req string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pf, err := s.load()
	if err != nil {
		return ""
	}
	return pf.Requests[req]
}

// Seed writes the default preset file if none exists yet.
func (s *PresetStore) Seed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat presets file: %w", err)
	}
	return s.save(defaultPresets())
}

// load reads the JSON file. A missing file yields the built-in defaults.
func (s *PresetStore) load() (*PresetFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultPresets(), nil
		}
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var pf PresetFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("unmarshal presets: %w", err)
	}
	if pf.Moods == nil {
		pf.Moods = map[string]string{}
	}
	if pf.Requests == nil {
		pf.Requests = map[string]string{}
	}
	return &pf, nil
}

// save writes the preset file to disk using atomic write (temp file + rename).
func (s *PresetStore) save(pf *PresetFile) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal presets: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create presets dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp presets file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp presets file: %w", err)
	}
	return nil
}
