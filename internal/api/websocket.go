package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/advisor/internal/eventlog"
	"github.com/ashureev/advisor/internal/identity"
	"github.com/coder/websocket"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	// wsPendingFrames bounds chat frames queued behind the running turn.
	wsPendingFrames = 4
	wsWriteTimeout  = 10 * time.Second
)

// wsInbound is a client frame: a chat message or a ping.
type wsInbound struct {
	Type string `json:"type,omitempty"`
	ChatRequest
}

// wsOutbound is a server frame. Reply frames carry the ChatResponse fields.
type wsOutbound struct {
	Type string `json:"type"`
	*ChatResponse
	Error string `json:"error,omitempty"`
}

// HandleWebSocket handles GET /ws/advisor. Each text frame runs one turn;
// turns on a connection run in order. Closing the connection cancels the
// turn in flight.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.checkOrigin(r) {
		Error(w, http.StatusForbidden, "origin not allowed")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(h.opts.MaxRequestBodySize)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	key := eventlog.SessionKey(userID, sessionID)
	h.conns.register(key, ws)
	defer h.conns.unregister(key, ws)
	h.logger.Info("Advisor websocket connected", "user_id", userID, "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan []byte, wsPendingFrames)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		defer close(frames)
		h.wsReadLoop(ctx, ws, frames, userID)
	}()

	connReqID := chiMiddleware.GetReqID(r.Context())
	seq := 0
	for data := range frames {
		seq++
		h.wsHandleFrame(ctx, ws, data, turnRequest{
			channel:   "chat_ws",
			userID:    userID,
			sessionID: sessionID,
			requestID: fmt.Sprintf("%s/%d", connReqID, seq),
		})
	}
	wg.Wait()
	h.logger.Info("Advisor websocket closed", "user_id", userID, "session_id", sessionID)
}

// wsReadLoop keeps reading while a turn runs so a disconnect is noticed
// immediately.
func (h *Handler) wsReadLoop(ctx context.Context, ws *websocket.Conn, frames chan<- []byte, userID string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}
		if typ != websocket.MessageText {
			h.wsWrite(ws, wsOutbound{Type: "error", Error: "text frames only"})
			continue
		}
		select {
		case frames <- data:
		default:
			h.wsWrite(ws, wsOutbound{Type: "error", Error: "too many pending messages"})
		}
	}
}

func (h *Handler) wsHandleFrame(ctx context.Context, ws *websocket.Conn, data []byte, tr turnRequest) {
	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.wsWrite(ws, wsOutbound{Type: "error", Error: "invalid message"})
		return
	}
	if msg.Type == "ping" {
		h.wsWrite(ws, wsOutbound{Type: "pong"})
		return
	}
	if err := msg.normalize(); err != nil {
		h.wsWrite(ws, wsOutbound{Type: "error", Error: err.Error()})
		return
	}

	tr.message = msg.Message
	resp, _, err := h.runTurn(ctx, tr)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		h.wsWrite(ws, wsOutbound{Type: "error", Error: err.Error()})
		return
	}
	h.wsWrite(ws, wsOutbound{Type: "reply", ChatResponse: resp})
}

func (h *Handler) wsWrite(ws *websocket.Conn, v wsOutbound) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("Failed to marshal websocket frame", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("WebSocket write error", "error", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.opts.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.opts.AllowedOrigin == "" || h.opts.AllowedOrigin == "*" {
		return true
	}
	if origin == h.opts.AllowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.opts.AllowedOrigin)
	return false
}
