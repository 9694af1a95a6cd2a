package chat

import (
	"log/slog"
	"net/http"

	"vidcast/internal/platform/metrics"

	"github.com/gorilla/websocket"
)

// Client-to-server frame types.
const (
	frameJoin        = "join"
	frameChatMessage = "chatMessage"
)

// clientFrame is a message read from the websocket.
type clientFrame struct {
	Type    string `json:"type"`
	VideoID string `json:"videoId"`
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// Handler exposes the chat broker over a websocket endpoint.
type Handler struct {
	broker   *Broker
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler serving the given Broker. Metrics may be nil
// to disable metric recording (e.g. in tests).
func NewHandler(broker *Broker, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		broker:  broker,
		log:     log,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy belongs to the outer deployment, not this core.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS handles GET /chat: upgrades the connection and runs one reader and
// one writer goroutine for its lifetime. Disconnecting leaves every joined
// room before the member handle is closed.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	m := NewMember()
	go h.writeLoop(conn, m)
	h.readLoop(r, conn, m)
}

// writeLoop drains the member's event channel onto the socket. It keeps
// draining after a write error so the member never blocks a room loop, and
// exits when the channel is closed.
func (h *Handler) writeLoop(conn *websocket.Conn, m *Member) {
	for ev := range m.Events() {
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
		}
	}
	conn.Close()
}

func (h *Handler) readLoop(r *http.Request, conn *websocket.Conn, m *Member) {
	joined := make(map[string]struct{})
	defer func() {
		for videoID := range joined {
			h.broker.Leave(videoID, m)
		}
		m.Close()
		conn.Close()
	}()

	for {
		var f clientFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}

		switch f.Type {
		case frameJoin:
			if f.VideoID == "" {
				m.deliver(Event{Type: EventError, Error: "join requires videoId"})
				continue
			}
			if _, ok := joined[f.VideoID]; ok {
				continue
			}
			h.broker.Join(f.VideoID, m)
			joined[f.VideoID] = struct{}{}
			h.log.Debug("chat member joined",
				slog.String("video_id", f.VideoID),
				slog.String("member", m.id))

		case frameChatMessage:
			if f.VideoID == "" || f.Content == "" {
				m.deliver(Event{Type: EventError, VideoID: f.VideoID, Error: "chatMessage requires videoId and content"})
				continue
			}
			if _, err := h.broker.Send(r.Context(), f.VideoID, f.UserID, f.Content); err != nil {
				h.log.Error("chat message rejected",
					slog.String("video_id", f.VideoID),
					slog.String("error", err.Error()))
				m.deliver(Event{Type: EventError, VideoID: f.VideoID, Error: "message could not be recorded"})
				continue
			}
			if h.metrics != nil {
				h.metrics.IncChatMessages()
			}

		default:
			m.deliver(Event{Type: EventError, Error: "unknown message type"})
		}
	}
}
