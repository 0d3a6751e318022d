package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	"github.com/autopeer-io/dronerelay/internal/relay/capture"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/fanout"
	"github.com/autopeer-io/dronerelay/internal/relay/journal"
	"github.com/autopeer-io/dronerelay/internal/relay/sink"
	"github.com/autopeer-io/dronerelay/internal/relay/storage"
	"github.com/autopeer-io/dronerelay/pkg/log"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

// Session is the part of the session manager the API calls.
type Session interface {
	Connect(ctx context.Context, source core.Source) (int, error)
	Disconnect(ctx context.Context) error
	StartStreaming(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	Status() core.Status
	Battery(ctx context.Context) (int, error)
	Capture(ctx context.Context) (capture.Result, error)

	Takeoff(ctx context.Context) (string, error)
	Land(ctx context.Context) (string, error)
	Move(ctx context.Context, direction string, cm int) (string, error)
	Rotate(ctx context.Context, direction string, deg int) (string, error)
	Flip(ctx context.Context, direction string) (string, error)
	SendRaw(ctx context.Context, command string) (string, error)

	Subscribe(sink core.Sink) fanout.Handle
	Unsubscribe(h fanout.Handle)
	Subscribed(h fanout.Handle) bool
}

// Journal lists recorded command exchanges.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// FrameEncoder encodes captured photos.
type FrameEncoder interface {
	Encode(f *core.Frame) ([]byte, error)
}

// Deps are the collaborators behind the API. Journal and Ready may be nil.
type Deps struct {
	Session Session
	Photos  storage.Provider
	Encoder FrameEncoder
	Journal Journal
	// DefaultSource is used when a connect request names no source.
	DefaultSource core.Source
	// Ready reports why the relay cannot serve traffic yet.
	Ready func() error
}

type Server struct {
	server  *http.Server
	options *options.HttpOptions
	deps    Deps
	logger  log.Logger

	upgrader websocket.Upgrader

	feedMu      sync.Mutex
	feed        *sink.MJPEG
	feedHandle  fanout.Handle
	feedViewers int
}

func NewServer(opts *options.HttpOptions, deps Deps) *Server {
	s := &Server{
		options: opts,
		deps:    deps,
		logger:  log.WithName("http"),
		feed:    sink.NewMJPEG(),
		upgrader: websocket.Upgrader{
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the router; used by tests and embedding servers.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)
	api.HandleFunc("/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/battery", s.handleBattery).Methods(http.MethodGet)
	api.HandleFunc("/start-stream", s.handleStartStream).Methods(http.MethodPost)
	api.HandleFunc("/stop-stream", s.handleStopStream).Methods(http.MethodPost)
	api.HandleFunc("/capture", s.handleCapture).Methods(http.MethodPost)
	api.HandleFunc("/photo/{filename}", s.handlePhoto).Methods(http.MethodGet)
	api.HandleFunc("/takeoff", s.handleTakeoff).Methods(http.MethodPost)
	api.HandleFunc("/land", s.handleLand).Methods(http.MethodPost)
	api.HandleFunc("/move", s.handleMove).Methods(http.MethodPost)
	api.HandleFunc("/rotate", s.handleRotate).Methods(http.MethodPost)
	api.HandleFunc("/flip", s.handleFlip).Methods(http.MethodPost)
	api.HandleFunc("/command", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/commands", s.handleCommands).Methods(http.MethodGet)
	api.HandleFunc("/video-feed", s.handleVideoFeed).Methods(http.MethodGet)

	r.HandleFunc("/video", s.handleVideoSocket)

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.HandleFunc("/readyz", s.handleReady)
	if s.options.EnableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.WithValues("request", uuid.NewString()[:8])
		next.ServeHTTP(w, r.WithContext(log.NewContext(r.Context(), logger)))
		logger.Debug("Handled request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	log.Info("Starting HTTP Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		// Video viewers never finish on their own; cut them off once the grace period ends.
		if err := s.server.Shutdown(shutdownCtx); errors.Is(err, context.DeadlineExceeded) {
			return s.server.Close()
		} else if err != nil {
			return err
		}
		return nil
	}
}
