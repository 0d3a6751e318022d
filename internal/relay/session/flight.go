package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

const (
	MinDistance = 20
	MaxDistance = 500
	MinAngle    = 1
	MaxAngle    = 360
)

var (
	moveDirections = map[string]string{
		"forward": "forward", "back": "back",
		"left": "left", "right": "right",
		"up": "up", "down": "down",
	}
	rotateDirections = map[string]string{
		"cw": "cw", "clockwise": "cw",
		"ccw": "ccw", "counterclockwise": "ccw",
	}
	flipDirections = map[string]string{
		"forward": "f", "f": "f",
		"back": "b", "b": "b",
		"left": "l", "l": "l",
		"right": "r", "r": "r",
	}
)

// Takeoff returns the drone's reply to takeoff.
func (m *Manager) Takeoff(ctx context.Context) (string, error) {
	return m.send(ctx, "takeoff", "takeoff")
}

func (m *Manager) Land(ctx context.Context) (string, error) {
	return m.send(ctx, "land", "land")
}

// Move flies cm centimetres in direction (forward, back, left, right, up
// or down).
func (m *Manager) Move(ctx context.Context, direction string, cm int) (string, error) {
	verb, ok := moveDirections[normalize(direction)]
	if !ok {
		return "", core.Errorf(core.KindValidation, "move", "unknown direction %q", direction)
	}
	if cm < MinDistance || cm > MaxDistance {
		return "", core.Errorf(core.KindValidation, "move", "distance %d cm outside [%d, %d]", cm, MinDistance, MaxDistance)
	}
	return m.send(ctx, "move", verb+" "+strconv.Itoa(cm))
}

// Rotate turns deg degrees; direction is cw, clockwise, ccw or
// counterclockwise.
func (m *Manager) Rotate(ctx context.Context, direction string, deg int) (string, error) {
	verb, ok := rotateDirections[normalize(direction)]
	if !ok {
		return "", core.Errorf(core.KindValidation, "rotate", "unknown direction %q", direction)
	}
	if deg < MinAngle || deg > MaxAngle {
		return "", core.Errorf(core.KindValidation, "rotate", "angle %d outside [%d, %d]", deg, MinAngle, MaxAngle)
	}
	return m.send(ctx, "rotate", verb+" "+strconv.Itoa(deg))
}

func (m *Manager) Flip(ctx context.Context, direction string) (string, error) {
	d, ok := flipDirections[normalize(direction)]
	if !ok {
		return "", core.Errorf(core.KindValidation, "flip", "unknown direction %q", direction)
	}
	return m.send(ctx, "flip", "flip "+d)
}

// SendRaw passes command to the drone unchanged.
func (m *Manager) SendRaw(ctx context.Context, command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", core.Errorf(core.KindValidation, "command", "empty command")
	}
	return m.send(ctx, "command", command)
}

func (m *Manager) send(ctx context.Context, op, command string) (string, error) {
	m.mu.RLock()
	ch := m.channel
	m.mu.RUnlock()

	if !m.State().Connected() {
		return "", core.Errorf(core.KindNotConnected, op, "no live session")
	}
	if ch == nil {
		return "", core.Errorf(core.KindNotConnected, op, "session has no drone link")
	}
	return ch.Send(ctx, command)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
