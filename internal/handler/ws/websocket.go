package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/edge-terminal/backend/internal/handler/stream"
	chatservice "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/turn"
	"github.com/zhouzirui/edge-terminal/backend/pkg/markdown"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler runs chat turns over a WebSocket connection.
type WebSocketHandler struct {
	runner          *turn.Runner
	chatSvc         *chatservice.Service
	renderer        *markdown.Renderer
	searchAvailable bool
	upgrader        websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(runner *turn.Runner, chatSvc *chatservice.Service, renderer *markdown.Renderer, searchAvailable bool) *WebSocketHandler {
	if renderer == nil {
		renderer = markdown.New()
	}
	return &WebSocketHandler{
		runner:          runner,
		chatSvc:         chatSvc,
		renderer:        renderer,
		searchAvailable: searchAvailable,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts GET /ws/{sessionID}.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage carries one user instruction.
type TextMessage struct {
	Text string `json:"text"`
}

// SearchMessage flips the session's search toggle.
type SearchMessage struct {
	Enabled bool `json:"enabled"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// socket serialises writes; gorilla connections allow one concurrent writer.
type socket struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
}

func (s *socket) write(msgType string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: s.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (s *socket) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *socket) sendError(message string) {
	s.write("error", map[string]string{"message": message})
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !session.Unlocked {
		http.Error(w, "session is locked", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	var turns sync.WaitGroup
	defer turns.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sock := &socket{conn: conn, sessionID: sessionID}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go pingLoop(ctx, sock)

	sock.write("result", map[string]any{
		"type":          "connected",
		"profile":       session.ProfileID,
		"searchEnabled": session.SearchEnabled,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			sock.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, sock, &turns, &msg)
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// handleMessage dispatches one frame. Turns run in the background so clear and search
// frames take effect while a reply is streaming; a second text frame during a turn is
// rejected by the session's turn slot.
func (h *WebSocketHandler) handleMessage(ctx context.Context, sock *socket, turns *sync.WaitGroup, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, sock, turns, msg.Data)
	case "search":
		h.handleSearchMessage(ctx, sock, msg.Data)
	case "clear":
		if err := h.chatSvc.Clear(ctx, sock.sessionID); err != nil {
			sock.sendError(err.Error())
			return
		}
		sock.write("result", map[string]any{"type": "cleared"})
	default:
		sock.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, sock *socket, turns *sync.WaitGroup, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		sock.sendError("invalid text payload")
		return
	}

	pending, err := h.runner.Begin(ctx, sock.sessionID, text.Text)
	if err != nil {
		if !errors.Is(err, turn.ErrEmptyMessage) {
			log.Printf("[websocket] session=%s turn rejected: %v", sock.sessionID, err)
		}
		sock.sendError(err.Error())
		return
	}

	display := stream.NewDisplay(sock.sessionID, h.renderer, func(event stream.Event) {
		sock.write(event.Event, event)
	})
	display.Start(pending.Profile().ID)

	turns.Add(1)
	go func() {
		defer turns.Done()
		if _, err := pending.Execute(ctx, display); err != nil {
			log.Printf("[websocket] session=%s turn ended with error: %v", sock.sessionID, err)
		}
		display.End()
	}()
}

func (h *WebSocketHandler) handleSearchMessage(ctx context.Context, sock *socket, raw json.RawMessage) {
	var cfg SearchMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		sock.sendError("invalid search payload")
		return
	}

	session, err := h.chatSvc.SetSearch(ctx, sock.sessionID, cfg.Enabled && h.searchAvailable)
	if err != nil {
		sock.sendError(err.Error())
		return
	}
	sock.write("result", map[string]any{
		"type":          "search",
		"searchEnabled": session.SearchEnabled,
	})
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, sock *socket) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sock.ping(); err != nil {
				return
			}
		}
	}
}
