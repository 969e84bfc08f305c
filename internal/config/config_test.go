package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Missing file is seeded with defaults
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file should exist after Load: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level=info, got %v", cfg.LogLevel)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("expected default max_concurrent=4, got %v", cfg.MaxConcurrent)
	}
	if !cfg.HTTP.Enabled {
		t.Error("expected http.enabled=true by default")
	}
	if cfg.HTTP.Listen != "127.0.0.1:8196" {
		t.Errorf("expected default http.listen=127.0.0.1:8196, got %v", cfg.HTTP.Listen)
	}
	if cfg.LLM.Model != "qwen-turbo-latest" {
		t.Errorf("expected default llm.model=qwen-turbo-latest, got %v", cfg.LLM.Model)
	}
	if cfg.Generation.CandidateCount != 3 {
		t.Errorf("expected default generation.candidate_count=3, got %v", cfg.Generation.CandidateCount)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("expected default agent.max_iterations=10, got %v", cfg.Agent.MaxIterations)
	}
	if cfg.Bus.HistorySize != 1000 {
		t.Errorf("expected default bus.history_size=1000, got %v", cfg.Bus.HistorySize)
	}
	if cfg.Scheduler.StuckThresholdMinutes != 15 {
		t.Errorf("expected default scheduler.stuck_threshold_minutes=15, got %v", cfg.Scheduler.StuckThresholdMinutes)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	cfg.LLM.APIKey = "sk-from-file"
	cfg.Generation.BaseURL = "http://127.0.0.1:8000"
	writeTestConfig(t, path, cfg)

	t.Setenv("SONGFORGE_LLM_API_KEY", "sk-from-env")
	t.Setenv("SONGFORGE_LLM_BASE_URL", "https://proxy.internal/v1")
	t.Setenv("SONGFORGE_GEN_URL", "http://10.0.0.5:9000")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.APIKey != "sk-from-env" {
		t.Errorf("expected env to override llm.api_key, got %v", loaded.LLM.APIKey)
	}
	if loaded.LLM.BaseURL != "https://proxy.internal/v1" {
		t.Errorf("expected env to override llm.base_url, got %v", loaded.LLM.BaseURL)
	}
	if loaded.Generation.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("expected env to override generation.base_url, got %v", loaded.Generation.BaseURL)
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:       "/tmp/test-data",
		LogLevel:      "debug",
		MaxConcurrent: 4,
	}
	original.HTTP.Enabled = true
	original.HTTP.Listen = "0.0.0.0:9196"
	original.LLM.Provider = "openai"
	original.LLM.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	original.LLM.APIKey = "sk-test-round-trip"
	original.LLM.Model = "qwen-plus"
	original.LLM.MaxTokens = 4000
	original.LLM.Temperature = 0.5
	original.LLM.MaxContextTokens = 32768
	original.LLM.OutputReserve = 4096
	original.Generation.BaseURL = "http://192.168.1.10:8000"
	original.Generation.TimeoutSeconds = 600
	original.Generation.CandidateCount = 5
	original.Bus.HistorySize = 500
	original.Scheduler.SessionAudit = "@every 5m"

	// Save
	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file does not exist after Save: %v", err)
	}

	// Reload
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Compare key fields
	if loaded.DataDir != original.DataDir {
		t.Errorf("DataDir mismatch: %v != %v", loaded.DataDir, original.DataDir)
	}
	if loaded.LogLevel != original.LogLevel {
		t.Errorf("LogLevel mismatch: %v != %v", loaded.LogLevel, original.LogLevel)
	}
	if loaded.MaxConcurrent != original.MaxConcurrent {
		t.Errorf("MaxConcurrent mismatch: %v != %v", loaded.MaxConcurrent, original.MaxConcurrent)
	}
	if loaded.HTTP.Listen != original.HTTP.Listen {
		t.Errorf("HTTP.Listen mismatch: %v != %v", loaded.HTTP.Listen, original.HTTP.Listen)
	}
	if loaded.LLM.Provider != original.LLM.Provider {
		t.Errorf("LLM.Provider mismatch: %v != %v", loaded.LLM.Provider, original.LLM.Provider)
	}
	if loaded.LLM.APIKey != original.LLM.APIKey {
		t.Errorf("LLM.APIKey mismatch: %v != %v", loaded.LLM.APIKey, original.LLM.APIKey)
	}
	if loaded.LLM.Model != original.LLM.Model {
		t.Errorf("LLM.Model mismatch: %v != %v", loaded.LLM.Model, original.LLM.Model)
	}
	if loaded.LLM.Temperature != original.LLM.Temperature {
		t.Errorf("LLM.Temperature mismatch: %v != %v", loaded.LLM.Temperature, original.LLM.Temperature)
	}
	if loaded.Generation.BaseURL != original.Generation.BaseURL {
		t.Errorf("Generation.BaseURL mismatch: %v != %v", loaded.Generation.BaseURL, original.Generation.BaseURL)
	}
	if loaded.Generation.CandidateCount != original.Generation.CandidateCount {
		t.Errorf("Generation.CandidateCount mismatch: %v != %v", loaded.Generation.CandidateCount, original.Generation.CandidateCount)
	}
	if loaded.Bus.HistorySize != original.Bus.HistorySize {
		t.Errorf("Bus.HistorySize mismatch: %v != %v", loaded.Bus.HistorySize, original.Bus.HistorySize)
	}
	if loaded.Scheduler.SessionAudit != original.Scheduler.SessionAudit {
		t.Errorf("Scheduler.SessionAudit mismatch: %v != %v", loaded.Scheduler.SessionAudit, original.Scheduler.SessionAudit)
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify no temp file left behind
	tmpPath := path + ".tmp"
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}

	// Verify the file is valid JSON
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestToMap(t *testing.T) {
	cfg := &Config{
		DataDir:  "/tmp/test",
		LogLevel: "debug",
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "qwen-plus"
	cfg.LLM.MaxTokens = 2000

	m, err := ToMap(cfg)
	if err != nil {
		t.Fatalf("ToMap failed: %v", err)
	}

	if m["data_dir"] != "/tmp/test" {
		t.Errorf("expected data_dir=/tmp/test, got %v", m["data_dir"])
	}
	if m["log_level"] != "debug" {
		t.Errorf("expected log_level=debug, got %v", m["log_level"])
	}

	llm, ok := m["llm"].(map[string]any)
	if !ok {
		t.Fatalf("expected llm to be map, got %T", m["llm"])
	}
	if llm["provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", llm["provider"])
	}
	if llm["model"] != "qwen-plus" {
		t.Errorf("expected llm.model=qwen-plus, got %v", llm["model"])
	}
	// JSON numbers are float64
	if llm["max_tokens"] != float64(2000) {
		t.Errorf("expected llm.max_tokens=2000, got %v", llm["max_tokens"])
	}
}

func TestListValues_NoMask(t *testing.T) {
	cfg := &Config{
		LogLevel: "info",
	}
	cfg.LLM.APIKey = "sk-secret-key-1234"
	cfg.Generation.BaseURL = "http://127.0.0.1:8000"

	flat, err := ListValues(cfg, false)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}

	// Secrets should be unmasked
	if flat["llm.api_key"] != "sk-secret-key-1234" {
		t.Errorf("expected unmasked llm.api_key, got %v", flat["llm.api_key"])
	}
	if flat["generation.base_url"] != "http://127.0.0.1:8000" {
		t.Errorf("expected generation.base_url=http://127.0.0.1:8000, got %v", flat["generation.base_url"])
	}
	if flat["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", flat["log_level"])
	}
}

func TestListValues_WithMask(t *testing.T) {
	cfg := &Config{
		LogLevel: "info",
	}
	cfg.LLM.APIKey = "sk-secret-key-1234"
	cfg.Generation.BaseURL = "http://127.0.0.1:8000"

	flat, err := ListValues(cfg, true)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}

	// Secrets should be masked
	if flat["llm.api_key"] != "***1234" {
		t.Errorf("expected masked llm.api_key=***1234, got %v", flat["llm.api_key"])
	}

	// Non-secrets should be unchanged
	if flat["generation.base_url"] != "http://127.0.0.1:8000" {
		t.Errorf("expected generation.base_url unchanged, got %v", flat["generation.base_url"])
	}
	if flat["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", flat["log_level"])
	}
}

func TestGetValue_ExistingKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{
		LogLevel:      "debug",
		MaxConcurrent: 8,
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "qwen-plus"
	writeTestConfig(t, path, cfg)

	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "debug" {
		t.Errorf("expected log_level=debug, got %v", v)
	}

	v, err = GetValue(path, "llm.model")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "qwen-plus" {
		t.Errorf("expected llm.model=qwen-plus, got %v", v)
	}

	v, err = GetValue(path, "max_concurrent")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	// JSON numbers are float64
	if v != float64(8) {
		t.Errorf("expected max_concurrent=8, got %v (%T)", v, v)
	}
}

func TestGetValue_UnknownKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	writeTestConfig(t, path, cfg)

	_, err := GetValue(path, "nonexistent.key")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	expected := "unknown config key: nonexistent.key"
	if err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}

func TestSetValue_String(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	cfg.LLM.Provider = "openai"
	writeTestConfig(t, path, cfg)

	// Set a string value
	if err := SetValue(path, "log_level", "debug"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	// Verify it was set
	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "debug" {
		t.Errorf("expected log_level=debug after set, got %v", v)
	}

	// Verify other values are preserved
	v, err = GetValue(path, "llm.provider")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "openai" {
		t.Errorf("expected llm.provider=openai (preserved), got %v", v)
	}
}

func TestSetValue_Numeric(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{MaxConcurrent: 2}
	writeTestConfig(t, path, cfg)

	// Set a numeric value (JSON parseable)
	if err := SetValue(path, "max_concurrent", "16"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "max_concurrent")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != float64(16) {
		t.Errorf("expected max_concurrent=16, got %v (%T)", v, v)
	}
}

func TestSetValue_Boolean(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	writeTestConfig(t, path, cfg)

	// Set a boolean value (JSON parseable)
	if err := SetValue(path, "bus.archive_events", "true"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "bus.archive_events")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != true {
		t.Errorf("expected bus.archive_events=true, got %v (%T)", v, v)
	}
}

func TestSetValue_Float(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{}
	cfg.LLM.Temperature = 0.7
	writeTestConfig(t, path, cfg)

	if err := SetValue(path, "llm.temperature", "0.3"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "llm.temperature")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != 0.3 {
		t.Errorf("expected llm.temperature=0.3, got %v (%T)", v, v)
	}
}

func TestSetValue_NestedKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{}
	cfg.LLM.Model = "qwen-turbo-latest"
	writeTestConfig(t, path, cfg)

	if err := SetValue(path, "llm.model", "qwen-plus"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "llm.model")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "qwen-plus" {
		t.Errorf("expected llm.model=qwen-plus, got %v", v)
	}
}

func TestSetValue_NewNestedKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	writeTestConfig(t, path, cfg)

	// Set a new nested key that doesn't exist in Config struct
	if err := SetValue(path, "custom.setting", "value"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "custom.setting")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "value" {
		t.Errorf("expected custom.setting=value, got %v", v)
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	err := SetValue(path, "log_level", "debug")
	if err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestGetValue_NonexistentFile(t *testing.T) {
	// GetValue calls Load, which creates the file if it doesn't exist.
	path := tempConfigPath(t)

	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue on new config failed: %v", err)
	}
	// Default log_level is "info"
	if v != "info" {
		t.Errorf("expected default log_level=info, got %v", v)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.json")

	cfg := &Config{LogLevel: "warn"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save should create parent directory, got: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
}
