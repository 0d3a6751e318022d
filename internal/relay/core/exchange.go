package core

import "time"

// CommandExchange records one command sent to the drone and its outcome.
type CommandExchange struct {
	SessionID string
	Command   string
	IssuedAt  time.Time
	Reply     string
	Err       error
	Duration  time.Duration
}

// Result is "ok", or the error Kind, or "error" for unclassified failures.
func (e CommandExchange) Result() string {
	if e.Err == nil {
		return "ok"
	}
	if k := KindOf(e.Err); k != "" {
		return string(k)
	}
	return "error"
}
