package handlers

import (
	"net/http"
	"time"

	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FeedHandler streams hub messages to websocket subscribers
type FeedHandler struct {
	hub    *hub.Hub
	buffer int
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(h *hub.Hub, buffer int) *FeedHandler {
	return &FeedHandler{hub: h, buffer: buffer}
}

// feedFilter narrows a feed to one device or device type
type feedFilter struct {
	deviceID   string
	deviceType models.DeviceType
}

func (f feedFilter) match(msg hub.Message) bool {
	env, ok := msg.Payload.(models.Envelope)
	if !ok {
		return true
	}
	if f.deviceID != "" && env.Reading.DeviceID != f.deviceID {
		return false
	}
	if f.deviceType != "" && env.Reading.DeviceType != f.deviceType {
		return false
	}
	return true
}

// HandleFeed upgrades the connection and relays every matching envelope until either side goes away
func (h *FeedHandler) HandleFeed(c *gin.Context) {
	filter := feedFilter{
		deviceID:   c.Query("device_id"),
		deviceType: models.DeviceType(c.Query("type")),
	}
	if filter.deviceType != "" && !filter.deviceType.Valid() {
		badRequest(c, models.ErrInvalidDevice)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe(h.buffer)
	log.Info().Str("subscriber_id", sub.ID.String()).Str("remote", conn.RemoteAddr().String()).Msg("Feed subscriber connected")

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub, filter, done)

	h.hub.Unsubscribe(sub.ID)
	log.Info().Str("subscriber_id", sub.ID.String()).Msg("Feed subscriber disconnected")
}

// readPump consumes control frames so pongs and close messages are seen
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

// writePump relays hub messages and keeps the connection alive with pings
func writePump(conn *websocket.Conn, sub *hub.Subscription, filter feedFilter, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// dropped by the hub or the hub shut down
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}
			if !filter.match(msg) {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
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

// RegisterRoutes registers the handler's routes
func (h *FeedHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/feed", h.HandleFeed)
}
