package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	HTTP          struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	LLM struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		Temperature      float32 `json:"temperature"`
		MaxTokens        int     `json:"max_tokens"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
		TimeoutSeconds   int     `json:"timeout_seconds"`
	} `json:"llm"`
	Generation struct {
		BaseURL               string `json:"base_url"`
		TimeoutSeconds        int    `json:"timeout_seconds"`
		MaxRetries            int    `json:"max_retries"`
		FailureDelaySeconds   int    `json:"failure_delay_seconds"`
		ExceptionDelaySeconds int    `json:"exception_delay_seconds"`
		CandidateCount        int    `json:"candidate_count"`
	} `json:"generation"`
	Agent struct {
		MaxIterations    int     `json:"max_iterations"`
		MaxLyricsRetries int     `json:"max_lyrics_retries"`
		IterationDelayMS int     `json:"iteration_delay_ms"`
		DefaultDuration  float64 `json:"default_duration"`
	} `json:"agent"`
	Bus struct {
		HistorySize   int  `json:"history_size"`
		QueueSize     int  `json:"queue_size"`
		ArchiveEvents bool `json:"archive_events"`
	} `json:"bus"`
	Scheduler struct {
		HealthProbe           string `json:"health_probe"`
		SessionAudit          string `json:"session_audit"`
		StuckThresholdMinutes int    `json:"stuck_threshold_minutes"`
	} `json:"scheduler"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".local", "share", "songforge"),
		LogLevel:      "info",
		MaxConcurrent: 4,
	}
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:8196"
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	cfg.LLM.Model = "qwen-turbo-latest"
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.MaxContextTokens = 8192
	cfg.LLM.OutputReserve = 2048
	cfg.LLM.TimeoutSeconds = 30
	cfg.Generation.BaseURL = "http://127.0.0.1:8000"
	cfg.Generation.TimeoutSeconds = 300
	cfg.Generation.MaxRetries = 2
	cfg.Generation.FailureDelaySeconds = 3
	cfg.Generation.ExceptionDelaySeconds = 5
	cfg.Generation.CandidateCount = 3
	cfg.Agent.MaxIterations = 10
	cfg.Agent.MaxLyricsRetries = 3
	cfg.Agent.IterationDelayMS = 500
	cfg.Agent.DefaultDuration = 30
	cfg.Bus.HistorySize = 1000
	cfg.Bus.QueueSize = 256
	cfg.Scheduler.HealthProbe = "@every 1m"
	cfg.Scheduler.SessionAudit = "@every 10m"
	cfg.Scheduler.StuckThresholdMinutes = 15

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("SONGFORGE_LLM_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("SONGFORGE_LLM_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if genURL := os.Getenv("SONGFORGE_GEN_URL"); genURL != "" {
		cfg.Generation.BaseURL = genURL
	}

	return cfg, nil
}

// Save writes the config as indented JSON, creating the parent directory if
// needed. The write is atomic (temp file + rename).
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap round-trips the config through JSON into a generic nested map.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues flattens the config into dot-separated keys, masking secret
// values when mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns the value stored under a dot-separated key. The raw file
// is consulted so keys outside the Config schema survive; a missing file is
// first seeded with defaults.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	flat := Flatten(m)
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue updates one dot-separated key in the config file, preserving
// every other key. The value is JSON-decoded when possible so numbers and
// booleans keep their types; anything else is stored as a string.
func SetValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	flat := Flatten(m)

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat[key] = parsed

	out, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
