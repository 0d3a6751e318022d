package paths

// Topic segments exchanged between the relay and remote controllers.
// Every topic is {root}/{segment}/{droneID}.

// Downstream: controller -> relay.
const (
	// Command carries a raw drone command.
	// Payload: {"id": "...", "command": "takeoff"}
	Command = "command"
)

// Upstream: relay -> controller.
const (
	// CommandAck carries the drone's reply to a Command.
	// Payload: {"id": "...", "command": "...", "reply": "ok", "error": "", "kind": ""}
	CommandAck = "command/ack"

	// Telemetry carries the latest telemetry snapshot at a fixed interval.
	Telemetry = "telemetry"

	// State carries session state transitions; published retained.
	State = "state"

	// Online carries relay liveness; the offline payload is the MQTT will.
	Online = "online"
)
