package transport

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"iotfabric/internal/gateway"
	"iotfabric/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
			return true
		}
		host := r.Host
		if strings.HasPrefix(origin, "http://") {
			return origin[len("http://"):] == host
		}
		if strings.HasPrefix(origin, "https://") {
			return origin[len("https://"):] == host
		}
		return false
	},
}

const wsPingInterval = 30 * time.Second

// handleEvents upgrades the connection and streams the registry's event
// bus until the client disconnects. Each message is one base64-encoded
// wire frame: a 1-byte event tag followed by the EncodeDeviceEntry bytes
// of the full snapshot (empty for Resync only; DeviceRemoved carries the
// removed entry's snapshot too).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("transport: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.reg.Events().Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go watchForClientClose(conn, done)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.C():
			for _, ev := range sub.Next() {
				if err := writeEvent(conn, ev); err != nil {
					return
				}
			}
		}
	}
}

// watchForClientClose drains and discards client reads (this stream is
// server-to-client only) and closes done on any read error.
func watchForClientClose(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev gateway.Event) error {
	tag := eventTag(ev.Type)

	var payload []byte
	if ev.Type != gateway.Resync {
		payload = model.EncodeDeviceEntry(ev.Device)
	}

	frame := make([]byte, 1+len(payload))
	frame[0] = tag
	copy(frame[1:], payload)

	encoded := base64.StdEncoding.EncodeToString(frame)
	return conn.WriteMessage(websocket.TextMessage, []byte(encoded))
}

func eventTag(t gateway.EventType) byte {
	switch t {
	case gateway.DeviceAdded:
		return 0
	case gateway.DeviceChanged:
		return 1
	case gateway.DeviceRemoved:
		return 2
	default:
		return 3 // Resync
	}
}
