package webapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// checkWSOrigin applies the same origin allowlist to websocket upgrades that
// CORSMiddleware applies to the REST routes. Requests without an Origin
// header (non-browser clients) and same-origin requests are always allowed.
func (h *Handlers) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return h.allowedOrigins[origin]
}

// HandleProgressWS streams a run's progress over a websocket. The client
// receives the current state immediately, then every update, and the
// connection closes after the terminal state is delivered.
func (h *Handlers) HandleProgressWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	updates, cancel, ok := h.tracker.Subscribe(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkWSOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("websocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Drain the client's side so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for state := range updates {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)) //nolint:errcheck
		if err := conn.WriteJSON(state); err != nil {
			h.logger.Debug("websocket write failed", "run_id", id, "error", err)
			return
		}
	}

	conn.WriteControl( //nolint:errcheck
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
		time.Now().Add(time.Second),
	)
}
