package stream

import (
	"github.com/zhouzirui/edge-terminal/backend/internal/service/turn"
	"github.com/zhouzirui/edge-terminal/backend/pkg/markdown"
)

// Event is one progress payload of a turn. The SSE and WebSocket transports share it.
type Event struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Content   string `json:"content,omitempty"`
	HTML      string `json:"html,omitempty"`
	Cursor    bool   `json:"cursor,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Display turns runner callbacks into Events.
type Display struct {
	sessionID string
	renderer  *markdown.Renderer
	send      func(Event)
}

// NewDisplay returns a turn.Display that hands every event to send.
func NewDisplay(sessionID string, renderer *markdown.Renderer, send func(Event)) *Display {
	return &Display{sessionID: sessionID, renderer: renderer, send: send}
}

func (d *Display) Phase(phase turn.Phase) {
	d.send(Event{Event: "status", SessionID: d.sessionID, Phase: string(phase)})
}

// Render emits the converted delta followed by the re-rendered reply. The final frame is
// sent as "message" and carries no cursor.
func (d *Display) Render(frame turn.Frame) {
	if frame.Final {
		d.send(Event{
			Event:     "message",
			SessionID: d.sessionID,
			Content:   frame.Text,
			HTML:      d.renderer.Render(frame.Text),
		})
		return
	}

	if frame.Delta != "" {
		d.send(Event{Event: "delta", SessionID: d.sessionID, Content: frame.Delta})
	}
	d.send(Event{
		Event:     "render",
		SessionID: d.sessionID,
		Content:   frame.Text,
		HTML:      d.renderer.Render(frame.Text),
		Cursor:    true,
	})
}

func (d *Display) Error(message string) {
	d.send(Event{Event: "error", SessionID: d.sessionID, Error: message})
}

// Start and End bracket a turn.
func (d *Display) Start(profileID string) {
	d.send(Event{Event: "start", SessionID: d.sessionID, Content: profileID})
}

func (d *Display) End() {
	d.send(Event{Event: "end", SessionID: d.sessionID, Finished: true})
}
