package testpeer

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Handler returns an http.Handler that serves the peer over WebSocket.
// Every binary message is one request frame. protocols lists the
// accepted subprotocols.
func (p *Peer) Handler(protocols ...string) http.Handler {
	upgrader := websocket.Upgrader{
		Subprotocols: protocols,
		CheckOrigin:  func(*http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		deliver := func(data []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			return conn.WriteMessage(websocket.BinaryMessage, data)
		}

		link, unbind := p.Bind(deliver)
		defer unbind()

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			if err := link.Send(data); err != nil {
				return
			}
		}
	})
}
