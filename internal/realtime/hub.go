package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub upgrades HTTP requests to websockets and pumps a user's broker events
// to each connection until the client goes away.
type Hub struct {
	broker   *Broker
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHub creates a websocket hub backed by the given broker.
func NewHub(broker *Broker, logger *zap.Logger) *Hub {
	return &Hub{
		broker: broker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The share page is served cross-origin from the journal API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream upgrades the request and forwards the user's events as JSON
// messages. It returns when the client disconnects or the subscription ends.
func (h *Hub) Stream(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, cancel := h.broker.Subscribe(r.Context(), userID)
	defer cancel()

	// Reader goroutine: we never expect client messages, but reading is
	// required to process pong frames and notice closed connections.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return err
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-done:
			return nil
		case <-r.Context().Done():
			return nil
		}
	}
}
