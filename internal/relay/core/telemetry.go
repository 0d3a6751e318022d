package core

import (
	"maps"
	"time"
)

// TelemetrySnapshot is the most recent state broadcast from the drone.
// Fields holds every well-formed key/value pair of the record, including
// keys without a typed field.
type TelemetrySnapshot struct {
	Battery      int
	Temperature  int
	Height       int
	TimeOfFlight int
	FlightTime   int
	Pitch        int
	Roll         int
	Yaw          int
	Barometer    float64

	Fields     map[string]string
	ReceivedAt time.Time
}

// IsZero reports whether no record has been received yet.
func (t TelemetrySnapshot) IsZero() bool {
	return t.ReceivedAt.IsZero()
}

// Has reports whether the record carried key.
func (t TelemetrySnapshot) Has(key string) bool {
	_, ok := t.Fields[key]
	return ok
}

// Stale reports whether the snapshot is older than after at now.
// A snapshot that was never received is always stale.
func (t TelemetrySnapshot) Stale(now time.Time, after time.Duration) bool {
	return t.IsZero() || now.Sub(t.ReceivedAt) > after
}

// Clone returns a copy that shares no memory with t.
func (t TelemetrySnapshot) Clone() TelemetrySnapshot {
	t.Fields = maps.Clone(t.Fields)
	return t
}
