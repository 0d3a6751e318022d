package telemetry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

// ErrMalformed is returned for a record without a single usable pair.
var ErrMalformed = errors.New("telemetry record has no valid key:value pairs")

// Parse decodes a state record of the form "k1:v1;k2:v2;...".
// Each pair is split on its first ':'. Pairs without a ':' or with an
// unparsable value for a known key are dropped; unknown keys are kept in
// Fields only.
func Parse(record string, at time.Time) (core.TelemetrySnapshot, error) {
	snap := core.TelemetrySnapshot{Fields: map[string]string{}, ReceivedAt: at}

	var templ, temph *int
	for _, pair := range strings.Split(record, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), ":")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" {
			continue
		}

		var err error
		switch key {
		case "bat":
			snap.Battery, err = atoi(val)
		case "temp":
			snap.Temperature, err = atoi(val)
		case "templ":
			var v int
			if v, err = atoi(val); err == nil {
				templ = &v
			}
		case "temph":
			var v int
			if v, err = atoi(val); err == nil {
				temph = &v
			}
		case "h":
			snap.Height, err = atoi(val)
		case "tof":
			snap.TimeOfFlight, err = atoi(val)
		case "time":
			snap.FlightTime, err = atoi(strings.TrimSuffix(val, "s"))
		case "pitch":
			snap.Pitch, err = atoi(val)
		case "roll":
			snap.Roll, err = atoi(val)
		case "yaw":
			snap.Yaw, err = atoi(val)
		case "baro":
			snap.Barometer, err = strconv.ParseFloat(val, 64)
		}
		if err != nil {
			continue
		}
		snap.Fields[key] = val
	}

	if len(snap.Fields) == 0 {
		return core.TelemetrySnapshot{}, ErrMalformed
	}

	// The SDK reports a low/high pair; "temp" wins when both forms are present.
	if !snap.Has("temp") && templ != nil && temph != nil {
		snap.Temperature = (*templ + *temph) / 2
	}

	return snap, nil
}

func atoi(s string) (int, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
