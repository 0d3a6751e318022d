package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/dronerelay/internal/relay/capture"
	"github.com/autopeer-io/dronerelay/internal/relay/command"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/fanout"
	"github.com/autopeer-io/dronerelay/internal/relay/hal"
	"github.com/autopeer-io/dronerelay/internal/relay/journal"
	"github.com/autopeer-io/dronerelay/internal/relay/session"
	"github.com/autopeer-io/dronerelay/internal/relay/storage"
	"github.com/autopeer-io/dronerelay/internal/relay/telemetry"
	"github.com/autopeer-io/dronerelay/internal/relay/video"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

type fixture struct {
	srv *httptest.Server
	s   *Server
	sim *hal.Sim
	mgr *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	j, err := journal.Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	photos := storage.NewLocalProvider(filepath.Join(t.TempDir(), "photos"))
	if err := photos.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	sim := hal.NewSim(hal.WithFrameSize(32, 24), hal.WithFrameInterval(time.Millisecond), hal.WithStateInterval(10*time.Millisecond))
	mgr := session.New(sim,
		session.WithRecorder(j),
		session.WithCommandOptions(command.WithTimeout(200*time.Millisecond), command.WithPollInterval(10*time.Millisecond)),
		session.WithTelemetryOptions(telemetry.WithPollInterval(10*time.Millisecond)),
		session.WithIngestPollInterval(time.Millisecond),
		session.WithCaptureOptions(capture.WithSamples(2), capture.WithInterval(5*time.Millisecond)),
		session.WithFanout(video.JPEGEncoder{Quality: 80}, 5*time.Millisecond),
		session.WithFirstFrameWait(time.Second),
	)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mgr.Run(runCtx)
	}()

	s := NewServer(options.NewHttpOptions(), Deps{
		Session: mgr,
		Photos:  photos,
		Encoder: video.JPEGEncoder{Quality: 100},
		Journal: j,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &fixture{srv: srv, s: s, sim: sim, mgr: mgr}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/status", "")
	if code != http.StatusOK || body["battery"] != notAvailable || body["connected"] != false {
		t.Fatalf("status before connect = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/connect", "")
	if code != http.StatusOK || body["battery"] != "87" || body["success"] != true {
		t.Fatalf("connect = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/start-stream", "")
	if code != http.StatusOK {
		t.Fatalf("start-stream = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/capture", "")
	if code != http.StatusOK {
		t.Fatalf("capture = %d %v", code, body)
	}
	url, _ := body["url"].(string)
	resp, err := http.Get(f.srv.URL + url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	var photo bytes.Buffer
	_, _ = photo.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" || !bytes.HasPrefix(photo.Bytes(), []byte{0xff, 0xd8}) {
		t.Errorf("photo download = %d %s, %d bytes", resp.StatusCode, resp.Header.Get("Content-Type"), photo.Len())
	}

	code, body = f.do(t, http.MethodPost, "/api/stop-stream", "")
	if code != http.StatusOK {
		t.Errorf("stop-stream = %d %v", code, body)
	}

	code, _ = f.do(t, http.MethodPost, "/api/disconnect", "")
	if code != http.StatusOK {
		t.Errorf("disconnect = %d", code)
	}
	if _, body = f.do(t, http.MethodGet, "/api/status", ""); body["state"] != string(core.StateDisconnected) {
		t.Errorf("status after disconnect = %v", body)
	}
}

func TestFlightEndpoints(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/takeoff", "")
	if code != http.StatusConflict || body["kind"] != string(core.KindNotConnected) {
		t.Fatalf("takeoff before connect = %d %v", code, body)
	}

	f.do(t, http.MethodPost, "/api/connect", `{"source":"drone"}`)

	tests := []struct {
		path string
		body string
		code int
		kind core.Kind
	}{
		{"/api/takeoff", "", http.StatusOK, ""},
		{"/api/move", `{"direction":"forward","distance":50}`, http.StatusOK, ""},
		{"/api/move", `{"direction":"forward","distance":10}`, http.StatusBadRequest, core.KindValidation},
		{"/api/move", `{"direction":`, http.StatusBadRequest, core.KindValidation},
		{"/api/rotate", `{"direction":"ccw","angle":90}`, http.StatusOK, ""},
		{"/api/rotate", `{"direction":"spin","angle":90}`, http.StatusBadRequest, core.KindValidation},
		{"/api/flip", `{"direction":"r"}`, http.StatusOK, ""},
		{"/api/command", `{"command":"speed 40"}`, http.StatusOK, ""},
		{"/api/command", `{"command":""}`, http.StatusBadRequest, core.KindValidation},
		{"/api/capture", "", http.StatusConflict, core.KindStreamNotActive},
		{"/api/land", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		code, body := f.do(t, http.MethodPost, tt.path, tt.body)
		if code != tt.code {
			t.Errorf("POST %s %s = %d %v, want %d", tt.path, tt.body, code, body, tt.code)
			continue
		}
		if tt.kind != "" && body["kind"] != string(tt.kind) {
			t.Errorf("POST %s %s kind = %v, want %s", tt.path, tt.body, body["kind"], tt.kind)
		}
		if tt.code == http.StatusOK && body["response"] != "ok" {
			t.Errorf("POST %s response = %v", tt.path, body["response"])
		}
	}

	code, body = f.do(t, http.MethodGet, "/api/commands?limit=3", "")
	cmds, _ := body["commands"].([]any)
	if code != http.StatusOK || len(cmds) != 3 {
		t.Fatalf("commands = %d %v", code, body)
	}
	if first, _ := cmds[0].(map[string]any); first["command"] != "land" {
		t.Errorf("newest journal entry = %v, want land", cmds[0])
	}
	if code, _ = f.do(t, http.MethodGet, "/api/commands?limit=x", ""); code != http.StatusBadRequest {
		t.Errorf("commands with bad limit = %d", code)
	}
}

func TestFlightDefaults(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/connect", "")

	tests := []struct {
		path string
		body string
		want string
	}{
		{"/api/move", `{"direction":"forward"}`, "forward 30"},
		{"/api/move", `{"direction":"up","distance":45}`, "up 45"},
		{"/api/rotate", `{"direction":"cw"}`, "cw 90"},
		{"/api/rotate", `{"direction":"ccw","angle":15}`, "ccw 15"},
	}
	for _, tt := range tests {
		code, body := f.do(t, http.MethodPost, tt.path, tt.body)
		if code != http.StatusOK {
			t.Errorf("POST %s %s = %d %v", tt.path, tt.body, code, body)
			continue
		}
		cmds := f.sim.Commands()
		if got := cmds[len(cmds)-1]; got != tt.want {
			t.Errorf("POST %s %s sent %q, want %q", tt.path, tt.body, got, tt.want)
		}
	}
}

func TestBattery(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/battery", "")
	if code != http.StatusConflict || body["kind"] != string(core.KindNotConnected) {
		t.Fatalf("battery before connect = %d %v", code, body)
	}

	f.do(t, http.MethodPost, "/api/connect", "")
	code, body = f.do(t, http.MethodGet, "/api/battery", "")
	if code != http.StatusOK || body["battery"] != "87" || body["success"] != true {
		t.Errorf("battery = %d %v", code, body)
	}
}

func (f *fixture) feedHandle() fanout.Handle {
	f.s.feedMu.Lock()
	defer f.s.feedMu.Unlock()
	return f.s.feedHandle
}

func TestVideoFeedReleasedByLastViewer(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/connect", "")
	if code, body := f.do(t, http.MethodPost, "/api/start-stream", ""); code != http.StatusOK {
		t.Fatalf("start-stream = %d %v", code, body)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/video-feed", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/video-feed error = %v", err)
	}
	if _, err := io.ReadAtLeast(resp.Body, make([]byte, 64), 64); err != nil {
		t.Fatalf("reading feed error = %v", err)
	}

	h := f.feedHandle()
	if h == "" || !f.mgr.Subscribed(h) {
		t.Fatalf("feed not subscribed while a viewer is attached")
	}

	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.mgr.Subscribed(h) {
		if time.Now().After(deadline) {
			t.Fatal("feed subscription kept after the last viewer left")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.feedHandle(); got != "" {
		t.Errorf("feed handle = %q after the last viewer left", got)
	}
}

func TestPhotoLookup(t *testing.T) {
	f := newFixture(t)

	if code, _ := f.do(t, http.MethodGet, "/api/photo/missing.jpg", ""); code != http.StatusNotFound {
		t.Errorf("missing photo = %d, want 404", code)
	}
	if code, body := f.do(t, http.MethodGet, "/api/photo/notes.txt", ""); code != http.StatusBadRequest {
		t.Errorf("invalid photo name = %d %v, want 400", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/connect", `{"source":"satellite"}`); code != http.StatusBadRequest {
		t.Errorf("unknown source = %d, want 400", code)
	}
}

func TestVideoSocket(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/video"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil || resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("dial before streaming: err = %v", err)
	}

	f.do(t, http.MethodPost, "/api/connect", "")
	if code, body := f.do(t, http.MethodPost, "/api/start-stream", ""); code != http.StatusOK {
		t.Fatalf("start-stream = %d %v", code, body)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	jpg, err := base64.StdEncoding.DecodeString(string(msg))
	if typ != websocket.TextMessage || err != nil || !bytes.HasPrefix(jpg, []byte{0xff, 0xd8}) {
		t.Errorf("frame message type %d, decode error %v", typ, err)
	}

	f.do(t, http.MethodPost, "/api/stop-stream", "")
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestProbesAndMetrics(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(f.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind core.Kind
		want int
	}{
		{core.KindValidation, http.StatusBadRequest},
		{core.KindNotConnected, http.StatusConflict},
		{core.KindAlreadyInProgress, http.StatusConflict},
		{core.KindStreamNotActive, http.StatusConflict},
		{core.KindNoFrameAvailable, http.StatusServiceUnavailable},
		{core.KindTransport, http.StatusBadGateway},
		{core.KindTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		if got := statusFor(core.Errorf(tt.kind, "op", "x")); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if got := statusFor(context.Canceled); got != http.StatusInternalServerError {
		t.Errorf("statusFor(unclassified) = %d", got)
	}
}
