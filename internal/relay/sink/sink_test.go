package sink

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketSendsBase64Frames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	sinks := make(chan *WebSocket, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sinks <- NewWebSocket(conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	s := <-sinks
	frame := []byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9}
	if err := s.Send(frame); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if typ != websocket.TextMessage || string(msg) != base64.StdEncoding.EncodeToString(frame) {
		t.Errorf("message = %d %q", typ, msg)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	_ = s.Close()
	if _, _, err := client.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("client read after Close error = %v, want normal closure", err)
	}
	if err := s.Send(frame); err == nil {
		t.Errorf("Send() after Close succeeded")
	}
}

func TestMJPEGSend(t *testing.T) {
	s := NewMJPEG()
	if err := s.Send([]byte{0xff, 0xd8, 0xff, 0xd9}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMJPEGViewerLeavesWhenRequestEnds(t *testing.T) {
	s := NewMJPEG()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/video-feed", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ServeHTTP(rec, req)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			if rec.Body.Len() != 0 {
				t.Errorf("wrote %d bytes to a gone viewer", rec.Body.Len())
			}
			return
		case <-deadline:
			t.Fatal("ServeHTTP kept serving after the request ended")
		case <-time.After(5 * time.Millisecond):
			_ = s.Send([]byte{0xff, 0xd8, 0xff, 0xd9})
		}
	}
}
