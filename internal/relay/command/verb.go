package command

import "strings"

// knownVerbs keeps the metrics label set bounded; raw commands outside it
// are counted as "other".
var knownVerbs = map[string]struct{}{
	"command": {}, "takeoff": {}, "land": {}, "emergency": {}, "stop": {},
	"streamon": {}, "streamoff": {}, "setresolution": {}, "setbitrate": {}, "setfps": {},
	"up": {}, "down": {}, "left": {}, "right": {}, "forward": {}, "back": {},
	"cw": {}, "ccw": {}, "flip": {}, "go": {}, "curve": {}, "speed": {}, "rc": {}, "wifi": {},
	"battery?": {}, "speed?": {}, "time?": {}, "height?": {}, "temp?": {}, "attitude?": {},
	"baro?": {}, "acceleration?": {}, "tof?": {}, "wifi?": {}, "sn?": {}, "sdk?": {},
}

func verb(command string) string {
	v, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(command)), " ")
	if _, ok := knownVerbs[v]; ok {
		return v
	}
	return "other"
}
