package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
	replayLimit    = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler pushes pipeline events to websocket clients.
type StreamHandler struct {
	source EventSource
	logger hclog.Logger
}

// NewStreamHandler creates a websocket event stream handler.
func NewStreamHandler(source EventSource, logger hclog.Logger) *StreamHandler {
	return &StreamHandler{
		source: source,
		logger: logger.Named("event-stream"),
	}
}

// Stream handles GET /api/events/stream
//
// Query parameters:
//   - projectId: only events for this batch (repeatable)
//   - type: only events of this type (repeatable)
//   - replay: send recent matching events first when "true"
func (h *StreamHandler) Stream(c *gin.Context) {
	filter := events.EventFilter{Targets: c.QueryArray("projectId")}
	for _, t := range c.QueryArray("type") {
		filter.Types = append(filter.Types, events.EventType(strings.TrimSpace(t)))
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	send := make(chan events.Event, sendBuffer)
	done := make(chan struct{})

	if c.Query("replay") == "true" {
		for _, e := range h.source.Recent(filter, replayLimit) {
			select {
			case send <- e:
			default:
			}
		}
	}

	sub := h.source.Subscribe(filter, func(e events.Event) error {
		select {
		case send <- e:
		case <-done:
		default:
			h.logger.Debug("slow stream client, dropping event", "event_type", e.Type)
		}
		return nil
	})
	h.logger.Debug("stream client connected", "subscription_id", sub.ID)

	go h.writePump(conn, send, done)
	h.readPump(conn)

	close(done)
	if err := h.source.Unsubscribe(sub.ID); err != nil {
		h.logger.Debug("failed to unsubscribe", "subscription_id", sub.ID, "error", err)
	}
	h.logger.Debug("stream client disconnected", "subscription_id", sub.ID)
}

// readPump discards client messages and returns when the connection closes.
func (h *StreamHandler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream read error", "error", err)
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, send <-chan events.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case e := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debug("stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
