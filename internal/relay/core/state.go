package core

import "time"

// State is a Session Manager lifecycle state.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateStreaming     State = "streaming"
	StateDisconnecting State = "disconnecting"
	StateConnectFailed State = "connect_failed"
)

// Connected reports whether commands may be dispatched in s.
func (s State) Connected() bool {
	return s == StateConnected || s == StateStreaming
}

// Source selects where a session's video comes from.
type Source string

const (
	SourceDrone  Source = "drone"
	SourceCamera Source = "camera"
)

// ParseSource maps a user-supplied name onto a Source. Empty means drone.
func ParseSource(s string) (Source, bool) {
	switch Source(s) {
	case "", SourceDrone, "tello":
		return SourceDrone, true
	case SourceCamera, "webcam":
		return SourceCamera, true
	}
	return "", false
}

// Status is a point-in-time view of the session.
type Status struct {
	State     State
	Streaming bool
	SessionID string
	Source    Source
	CreatedAt time.Time
	Telemetry TelemetrySnapshot
	Stale     bool
}
