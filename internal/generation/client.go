package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/songforge/internal/types"
)

// DefaultTimeout bounds one generation request end to end. Music synthesis
// is slow; the backend streams nothing, so the whole wait sits here.
const DefaultTimeout = 300 * time.Second

// Client talks to the music generation backend over HTTP. Failures the
// backend (or the network) can produce during normal operation come back as
// failure results, never as Go errors; a Go error means the request itself
// was broken or the context was canceled.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	healthClient *http.Client
}

// New creates a generation client for the backend at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		healthClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// generationConfig is the tuning block of a generation request.
type generationConfig struct {
	Duration         float64               `json:"duration,omitempty"`
	CandidateCount   int                   `json:"candidate_count,omitempty"`
	GuidanceSchedule []types.GuidancePoint `json:"guidance_schedule,omitempty"`
	LoraNameOrPath   string                `json:"lora_name_or_path,omitempty"`
	UseCache         bool                  `json:"use_cache"`
}

// generateRequest is the backend's generation request body.
type generateRequest struct {
	Prompt           string           `json:"prompt"`
	Lyrics           string           `json:"lyrics"`
	GenerationConfig generationConfig `json:"generation_config"`
}

// generateResponse is the backend's response envelope.
type generateResponse struct {
	Success   bool           `json:"success"`
	Data      *generateData  `json:"data,omitempty"`
	Error     *backendError  `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type generateData struct {
	AudioPaths     []string       `json:"audio_paths"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	GenerationTime float64        `json:"generation_time,omitempty"`
}

type backendError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// failure builds a retryable failure result.
func failure(msg string, transport bool, elapsed time.Duration) *types.GenerationResult {
	return &types.GenerationResult{
		Success:        false,
		Error:          msg,
		Transport:      transport,
		GenerationTime: elapsed.Seconds(),
	}
}

// truncate keeps error payloads loggable.
func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// Generate runs one synthesis job. The returned result reports business
// failures (success=false) and transport failures (timeout, refused
// connection, bad status) with Success=false; the error return is reserved
// for canceled contexts and malformed requests.
func (c *Client) Generate(ctx context.Context, params *types.GenerationParams) (*types.GenerationResult, error) {
	start := time.Now()

	reqBody := generateRequest{
		Prompt: params.Prompt,
		Lyrics: params.Lyrics,
		GenerationConfig: generationConfig{
			Duration:         params.Duration,
			CandidateCount:   params.CandidateCount,
			GuidanceSchedule: params.GuidanceSchedule,
			LoraNameOrPath:   params.LoraNameOrPath,
			UseCache:         params.UseCache,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate_music", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failure(fmt.Sprintf("request failed: %v", err), true, time.Since(start)), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(fmt.Sprintf("reading response: %v", err), true, time.Since(start)), nil
	}
	if resp.StatusCode != http.StatusOK {
		return failure(fmt.Sprintf("backend error (status %d): %s", resp.StatusCode, truncate(respBody)), true, time.Since(start)), nil
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return failure(fmt.Sprintf("parsing response: %v", err), true, time.Since(start)), nil
	}

	result := &types.GenerationResult{
		Success:        genResp.Success,
		RequestID:      genResp.RequestID,
		Metadata:       genResp.Metadata,
		GenerationTime: time.Since(start).Seconds(),
	}
	if genResp.Data != nil {
		result.AudioPaths = genResp.Data.AudioPaths
		if genResp.Data.Metadata != nil {
			result.Metadata = genResp.Data.Metadata
		}
		if genResp.Data.GenerationTime > 0 {
			result.GenerationTime = genResp.Data.GenerationTime
		}
	}
	if !genResp.Success {
		msg := "generation failed"
		if genResp.Error != nil && genResp.Error.Message != "" {
			msg = genResp.Error.Message
		}
		result.Error = msg
		return result, nil
	}
	if len(result.AudioPaths) == 0 {
		result.Success = false
		result.Error = "backend reported success without audio paths"
	}
	return result, nil
}

// Health probes the backend's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return &types.ExternalServiceError{Service: "generation", Transport: true, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &types.ExternalServiceError{
			Service:   "generation",
			Transport: false,
			Err:       fmt.Errorf("health check returned status %d", resp.StatusCode),
		}
	}
	return nil
}
