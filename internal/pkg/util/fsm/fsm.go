package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning handler to a looplab/fsm callback.
// A returned error is stored on the event and surfaces from FSM.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IsNoTransition reports whether err only says the event left the state
// unchanged. Such events ran their callbacks and need no handling.
func IsNoTransition(err error) bool {
	var nt fsm.NoTransitionError
	return errors.As(err, &nt)
}

// Reachable lists the events that can fire from the machine's current state.
func Reachable(f *fsm.FSM) []string {
	return f.AvailableTransitions()
}
