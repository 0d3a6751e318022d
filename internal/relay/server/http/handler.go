package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/sink"
	"github.com/autopeer-io/dronerelay/internal/relay/storage"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

const notAvailable = "N/A"

const (
	defaultMoveDistance = 30
	defaultRotateAngle  = 90
)

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = string(s.deps.DefaultSource)
	}
	source, ok := core.ParseSource(req.Source)
	if !ok {
		writeError(w, core.Errorf(core.KindValidation, "connect", "unknown source %q", req.Source))
		return
	}

	battery, err := s.deps.Session.Connect(r.Context(), source)
	if err != nil {
		writeError(w, err)
		return
	}
	st := s.deps.Session.Status()
	writeOK(w, map[string]any{
		"battery":   reading(battery >= 0, battery),
		"sessionId": st.SessionID,
		"source":    st.Source,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Disconnect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"message": "disconnected"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Session.Status()
	t := st.Telemetry
	live := st.State.Connected() && !st.Stale

	writeOK(w, map[string]any{
		"state":       st.State,
		"connected":   st.State.Connected(),
		"streaming":   st.Streaming,
		"sessionId":   st.SessionID,
		"source":      st.Source,
		"stale":       st.Stale,
		"battery":     reading(live && t.Has("bat"), t.Battery),
		"temperature": reading(live && (t.Has("temp") || t.Has("templ")), t.Temperature),
		"height":      reading(live && t.Has("h"), t.Height),
		"tof":         reading(live && t.Has("tof"), t.TimeOfFlight),
	})
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	battery, err := s.deps.Session.Battery(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"battery": reading(battery >= 0, battery)})
}

// reading formats v, or N/A when it is not known.
func reading(known bool, v int) string {
	if !known {
		return notAvailable
	}
	return strconv.Itoa(v)
}

func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.StartStreaming(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"message": "stream started"})
}

func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.StopStreaming(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"message": "stream stopped"})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	res, err := s.deps.Session.Capture(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := s.deps.Encoder.Encode(res.Frame)
	if err != nil {
		writeError(w, err)
		return
	}

	name := storage.PhotoName(time.Now())
	photo, err := s.deps.Photos.Put(r.Context(), name, data)
	if err != nil {
		logger.Error(err, "Failed to store photo", "filename", name)
		writeError(w, err)
		return
	}
	if photo.URL == "" {
		photo.URL = "/api/photo/" + photo.Name
	}

	logger.Info("Photo stored", "filename", photo.Name, "size", photo.SizeText, "score", res.Score)
	writeOK(w, map[string]any{
		"filename": photo.Name,
		"url":      photo.URL,
		"size":     photo.Size,
		"sizeText": photo.SizeText,
		"score":    res.Score,
		"width":    res.Frame.Width(),
		"height":   res.Frame.Height(),
	})
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	rc, photo, err := s.deps.Photos.Open(r.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "photo not found"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.FormatInt(photo.Size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		log.FromContext(r.Context()).Warn("Photo download interrupted", "filename", name, "error", err)
	}
}

func (s *Server) handleTakeoff(w http.ResponseWriter, r *http.Request) {
	s.reply(w)(s.deps.Session.Takeoff(r.Context()))
}

func (s *Server) handleLand(w http.ResponseWriter, r *http.Request) {
	s.reply(w)(s.deps.Session.Land(r.Context()))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
		Distance  int    `json:"distance"`
	}
	req.Distance = defaultMoveDistance
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.reply(w)(s.deps.Session.Move(r.Context(), req.Direction, req.Distance))
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
		Angle     int    `json:"angle"`
	}
	req.Angle = defaultRotateAngle
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.reply(w)(s.deps.Session.Rotate(r.Context(), req.Direction, req.Angle))
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.reply(w)(s.deps.Session.Flip(r.Context(), req.Direction))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.reply(w)(s.deps.Session.SendRaw(r.Context(), req.Command))
}

// reply writes the outcome of a drone command.
func (s *Server) reply(w http.ResponseWriter) func(string, error) {
	return func(reply string, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, map[string]any{"response": reply})
	}
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "command journal is disabled"})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, core.Errorf(core.KindValidation, "commands", "invalid limit %q", v))
			return
		}
		limit = n
	}

	entries, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"commands": entries})
}

// handleVideoFeed serves the live stream as multipart MJPEG. Every viewer
// shares one hub subscription, renewed when the hub has dropped it and
// released when the last viewer leaves.
func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Session.Status().Streaming {
		writeError(w, core.Errorf(core.KindStreamNotActive, "video feed", "video stream is not running"))
		return
	}

	s.feedMu.Lock()
	s.feedViewers++
	if s.feedHandle == "" || !s.deps.Session.Subscribed(s.feedHandle) {
		s.feedHandle = s.deps.Session.Subscribe(s.feed)
	}
	s.feedMu.Unlock()
	defer s.leaveFeed()

	s.feed.ServeHTTP(w, r)
}

func (s *Server) leaveFeed() {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	s.feedViewers--
	if s.feedViewers > 0 || s.feedHandle == "" {
		return
	}
	s.deps.Session.Unsubscribe(s.feedHandle)
	s.feedHandle = ""
}

// handleVideoSocket streams base64 JPEG frames over a websocket until the
// viewer goes away or the stream stops.
func (s *Server) handleVideoSocket(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Session.Status().Streaming {
		writeError(w, core.Errorf(core.KindStreamNotActive, "video", "video stream is not running"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.FromContext(r.Context()).Warn("WebSocket upgrade failed", "error", err)
		return
	}

	ws := sink.NewWebSocket(conn)
	h := s.deps.Session.Subscribe(ws)
	defer s.deps.Session.Unsubscribe(h)

	// Reads only detect the viewer leaving; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
