// Package sink adapts viewer transports to the fan-out hub.
package sink

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

const writeWait = 2 * time.Second

var _ core.Sink = (*WebSocket)(nil)

// WebSocket sends each frame as one text message holding the base64 JPEG.
type WebSocket struct {
	conn *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

func (s *WebSocket) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(base64.StdEncoding.EncodeToString(payload)))
}

// Close sends a close frame and closes the connection. It is safe to call
// concurrently with Send and more than once.
func (s *WebSocket) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
