package mqtt

import (
	"time"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

// Online payloads published retained on the online topic.
const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// commandRequest is received on {root}/command/{droneID}.
type commandRequest struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

// commandAck is published on {root}/command/ack/{droneID}.
type commandAck struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type stateMessage struct {
	DroneID   string     `json:"droneId"`
	From      core.State `json:"from,omitempty"`
	State     core.State `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
}

type telemetryMessage struct {
	DroneID      string            `json:"droneId"`
	State        core.State        `json:"state"`
	Streaming    bool              `json:"streaming"`
	Stale        bool              `json:"stale"`
	Battery      int               `json:"battery"`
	Temperature  int               `json:"temperature"`
	Height       int               `json:"height"`
	TimeOfFlight int               `json:"tof"`
	FlightTime   int               `json:"flightTime"`
	Fields       map[string]string `json:"fields,omitempty"`
	ReceivedAt   time.Time         `json:"receivedAt"`
}

func newTelemetryMessage(droneID string, st core.Status) telemetryMessage {
	t := st.Telemetry
	return telemetryMessage{
		DroneID:      droneID,
		State:        st.State,
		Streaming:    st.Streaming,
		Stale:        st.Stale,
		Battery:      t.Battery,
		Temperature:  t.Temperature,
		Height:       t.Height,
		TimeOfFlight: t.TimeOfFlight,
		FlightTime:   t.FlightTime,
		Fields:       t.Fields,
		ReceivedAt:   t.ReceivedAt,
	}
}
