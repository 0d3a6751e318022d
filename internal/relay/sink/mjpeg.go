package sink

import (
	"context"
	"net/http"

	"github.com/hybridgroup/mjpeg"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

var _ core.Sink = (*MJPEG)(nil)

// MJPEG feeds one multipart stream shared by every HTTP viewer.
type MJPEG struct {
	stream *mjpeg.Stream
}

func NewMJPEG() *MJPEG {
	return &MJPEG{stream: mjpeg.NewStream()}
}

func (s *MJPEG) Send(payload []byte) error {
	s.stream.UpdateJPEG(payload)
	return nil
}

// Close keeps the stream open; viewers stay attached across subscriptions.
func (s *MJPEG) Close() error { return nil }

// ServeHTTP streams frames to one viewer until it disconnects. The viewer
// is dropped on the first frame after its request context ends.
func (s *MJPEG) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.stream.ServeHTTP(&viewerWriter{ResponseWriter: w, ctx: r.Context()}, r)
}

// viewerWriter flushes every frame and fails writes once the viewer is gone.
type viewerWriter struct {
	http.ResponseWriter
	ctx context.Context
}

func (v *viewerWriter) Write(p []byte) (int, error) {
	if err := v.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := v.ResponseWriter.Write(p)
	if f, ok := v.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}
