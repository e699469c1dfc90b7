package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ralphorch/ralph/internal/broadcast"
)

const (
	wsHeartbeatInterval = 30 * time.Second
	wsHeartbeatTimeout  = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerWebSocket mounts GET /ws: a live feed of every broadcast.Message,
// one JSON object per frame, with a connect notice and a ping/pong
// heartbeat to detect and drop dead clients.
func registerWebSocket(router chi.Router, deps Deps) {
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[httpapi] websocket upgrade failed: %v", err)
			return
		}
		handleSubscriber(conn, deps.Broadcast)
	})
}

func handleSubscriber(conn *websocket.Conn, hub *broadcast.Hub) {
	defer conn.Close()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	conn.SetReadDeadline(time.Now().Add(wsHeartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsHeartbeatTimeout))
		return nil
	})

	// Drain and discard anything the client sends; this endpoint is
	// read-only from the client's side but we still need to read frames to
	// notice a close and keep the pong handler firing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	if err := writeJSON(conn, broadcast.Message{Channel: "system", Message: "connected"}); err != nil {
		return
	}

	ticker := time.NewTicker(wsHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := writeJSON(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
