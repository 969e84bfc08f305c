// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/user/songforge/internal/bus"
	"github.com/user/songforge/internal/gateway"
	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
)

// API error codes carried in the response envelope.
const (
	codeValidation          = "VALIDATION_ERROR"
	codeSessionNotFound     = "SESSION_NOT_FOUND"
	codeSessionNotCompleted = "SESSION_NOT_COMPLETED"
	codeResultNotFound      = "RESULT_NOT_FOUND"
	codeInvalidEventType    = "INVALID_EVENT_TYPE"
	codeInvalidPath         = "INVALID_PATH"
	codeFileNotFound        = "FILE_NOT_FOUND"
	codeInvalidFileType     = "INVALID_FILE_TYPE"
	codeInternal            = "INTERNAL_ERROR"
)

// Server exposes the session API over HTTP: lifecycle and state endpoints,
// a live SSE stream per session, bus history queries, and media downloads.
type Server struct {
	tracker   *state.Tracker
	gw        *gateway.Gateway
	bus       *bus.Bus
	media     *state.MediaStore
	mux       *http.ServeMux
	heartbeat time.Duration
}

// NewServer creates a Server wired to the given tracker, run gateway, event
// bus, and media store.
func NewServer(tracker *state.Tracker, gw *gateway.Gateway, b *bus.Bus, media *state.MediaStore) *Server {
	s := &Server{
		tracker:   tracker,
		gw:        gw,
		bus:       b,
		media:     media,
		mux:       http.NewServeMux(),
		heartbeat: defaultHeartbeat,
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/session/start", s.handleStart)
	s.mux.HandleFunc("GET /api/v1/session", s.handleList)
	s.mux.HandleFunc("GET /api/v1/session/{id}/state", s.handleState)
	s.mux.HandleFunc("GET /api/v1/session/{id}/result", s.handleResult)
	s.mux.HandleFunc("GET /api/v1/session/{id}/stream", s.handleStream)
	s.mux.HandleFunc("GET /api/v1/session/{id}/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/v1/session/{id}/message", s.handleMessage)
	s.mux.HandleFunc("POST /api/v1/session/{id}/lyrics/review", s.handleReview)
	s.mux.HandleFunc("GET /api/v1/media/{id}/files", s.handleMediaList)
	s.mux.HandleFunc("GET /api/v1/media/{id}/{filename}", s.handleMediaFile)
	return s
}

// ServeHTTP adds permissive CORS headers and delegates to the internal mux,
// implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// envelope is the common JSON wrapper for API responses.
type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	RequestID string     `json:"request_id"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Success:   true,
		Data:      data,
		RequestID: string(types.NewRequestID()),
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     &errorBody{Code: code, Message: message},
		RequestID: string(types.NewRequestID()),
	})
}

func writeSessionNotFound(w http.ResponseWriter, id types.SessionID) {
	writeError(w, http.StatusNotFound, codeSessionNotFound, fmt.Sprintf("会话 %s 不存在", id))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := types.NewSessionID()
	sess := s.tracker.CreateSession(id)
	writeData(w, http.StatusOK, map[string]any{
		"session_id": string(id),
		"created_at": sess.CreatedAt().Format(time.RFC3339),
		"status":     string(sess.Stage()),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if q := r.URL.Query().Get("offset"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			offset = n
		}
	}
	writeData(w, http.StatusOK, s.tracker.ListSessions(limit, offset))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	snap, err := s.tracker.Snapshot(id)
	if err != nil {
		writeSessionNotFound(w, id)
		return
	}
	writeData(w, http.StatusOK, snap)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	res, err := s.tracker.Result(id)
	if err != nil {
		var notFound *types.NotFoundError
		var stateErr *types.StateError
		switch {
		case errors.As(err, &notFound) && notFound.Resource == "session":
			writeSessionNotFound(w, id)
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, codeResultNotFound, "会话结果不存在")
		case errors.As(err, &stateErr):
			writeError(w, http.StatusBadRequest, codeSessionNotCompleted, "会话尚未完成")
		default:
			slog.Error("result lookup failed", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
		}
		return
	}
	writeData(w, http.StatusOK, res)
}

// knownEventTypes guards the events endpoint's type filter.
var knownEventTypes = map[types.EventType]bool{
	types.EventStageChanged:             true,
	types.EventThoughtCompleted:         true,
	types.EventActionCompleted:          true,
	types.EventActionFailed:             true,
	types.EventLyricsGenerated:          true,
	types.EventLyricsApproved:           true,
	types.EventMusicGenerationStarted:   true,
	types.EventMusicGenerationCompleted: true,
	types.EventAssetCreated:             true,
	types.EventAssetFinalized:           true,
	types.EventErrorOccurred:            true,
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))

	var eventType types.EventType
	if q := r.URL.Query().Get("event_type"); q != "" {
		eventType = types.EventType(q)
		if !knownEventTypes[eventType] {
			writeError(w, http.StatusBadRequest, codeInvalidEventType,
				fmt.Sprintf("无效的事件类型: %s", q))
			return
		}
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	events := s.bus.History(id, eventType, limit)
	writeData(w, http.StatusOK, map[string]any{
		"events":     events,
		"total":      len(events),
		"session_id": string(id),
	})
}

// messageRequest is the JSON body for POST /api/v1/session/{id}/message.
type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "content is required")
		return
	}

	// Replies stream out as conversation turns while the run executes; the
	// callback only has to surface failures. The processor records the error
	// on the run before the queue invokes it.
	run, err := s.gw.HandleInbound(r.Context(), &types.InboundEvent{
		SessionID: id,
		Source:    "http",
		Text:      req.Content,
	}, func(run *gateway.Run) {
		run.OnComplete = func(string) {
			if run.Error == nil {
				return
			}
			msg := fmt.Sprintf("处理消息时发生错误: %s", run.Error)
			s.tracker.AddDebugLog(id, msg)
			s.tracker.SetError(id, msg)
		}
	})
	if err != nil {
		var notFound *types.NotFoundError
		if errors.As(err, &notFound) {
			writeSessionNotFound(w, id)
			return
		}
		slog.Error("enqueue message failed", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, codeInternal, err.Error())
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"message_id":     string(run.ID),
		"agent_response": "正在处理您的消息...",
		"next_action":    "请稍候",
	})
}

// reviewRequest is the JSON body for POST /api/v1/session/{id}/lyrics/review.
type reviewRequest struct {
	Version  int    `json:"version"`
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON")
		return
	}

	_, err := s.gw.HandleInbound(r.Context(), &types.InboundEvent{
		SessionID: id,
		Source:    "http",
		Review: &types.LyricsReview{
			Version:  req.Version,
			Approved: req.Approved,
			Feedback: req.Feedback,
		},
	}, func(run *gateway.Run) {
		run.OnComplete = func(string) {
			if run.Error == nil {
				return
			}
			s.tracker.AddDebugLog(id, fmt.Sprintf("歌词审核失败: %s", run.Error))
		}
	})
	if err != nil {
		var notFound *types.NotFoundError
		if errors.As(err, &notFound) {
			writeSessionNotFound(w, id)
			return
		}
		slog.Error("enqueue review failed", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, codeInternal, err.Error())
		return
	}

	nextAction := "重新生成歌词"
	if req.Approved {
		nextAction = "准备生成音乐"
	}
	writeData(w, http.StatusOK, map[string]any{
		"version":     req.Version,
		"approved":    req.Approved,
		"next_action": nextAction,
	})
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	if _, err := s.tracker.Get(id); err != nil {
		writeSessionNotFound(w, id)
		return
	}

	files, err := s.media.List(id)
	if err != nil {
		slog.Error("list media failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}

	audio := make([]state.MediaFile, 0, len(files))
	other := make([]state.MediaFile, 0)
	for _, f := range files {
		if strings.HasPrefix(contentTypeFor(f.Filename), "audio/") {
			audio = append(audio, f)
		} else {
			other = append(other, f)
		}
	}
	writeData(w, http.StatusOK, map[string]any{
		"audio_files": audio,
		"other_files": other,
	})
}

func (s *Server) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	filename := r.PathValue("filename")
	if _, err := s.tracker.Get(id); err != nil {
		writeSessionNotFound(w, id)
		return
	}

	path, err := s.media.Resolve(id, filename)
	if err != nil {
		var invalid *types.ValidationError
		var notFound *types.NotFoundError
		switch {
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, codeInvalidPath, "无效的文件路径")
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, codeFileNotFound,
				fmt.Sprintf("文件 %s 不存在", filename))
		default:
			slog.Error("resolve media file failed", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
		}
		return
	}

	ctype := contentTypeFor(path)
	if !strings.HasPrefix(ctype, "audio/") && !strings.HasPrefix(ctype, "image/") {
		writeError(w, http.StatusBadRequest, codeInvalidFileType, "不支持的文件类型")
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

// mediaTypes covers the audio formats the generation backend produces; the
// stdlib extension table does not know them on every platform.
var mediaTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}
