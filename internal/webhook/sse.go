// internal/webhook/sse.go
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/songforge/internal/types"
)

// defaultHeartbeat paces keep-alive frames on an idle stream.
const defaultHeartbeat = 30 * time.Second

// handleStream serves the session's push queue as server-sent events. The
// first frame is always connected; buffered events drain in order after each
// wakeup, a heartbeat keeps idle connections open, and client cancellation
// ends the stream with a best-effort disconnected frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	queue, err := s.tracker.Queue(id)
	if err != nil {
		writeSessionNotFound(w, id)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame(w, types.PushConnected, map[string]any{"session_id": string(id)})
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		for {
			ev, ok := queue.TryPop()
			if !ok {
				break
			}
			writeFrame(w, ev.Event, ev.Data)
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			writeFrame(w, types.PushDisconnected, map[string]any{"session_id": string(id)})
			return
		case <-queue.Notify():
		case <-heartbeat.C:
			writeFrame(w, types.PushHeartbeat,
				map[string]any{"timestamp": time.Now().Format(time.RFC3339)})
			flusher.Flush()
		}
	}
}

// writeFrame writes one named SSE frame with a single-line JSON payload.
func writeFrame(w io.Writer, event string, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Warn("encode sse frame", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
