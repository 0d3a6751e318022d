package session

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/dronerelay/internal/pkg/util/fsm"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

const (
	// EventConnect starts dialing a source.
	EventConnect = "connect"
	// EventConnected completes a successful connect.
	EventConnected = "connected"
	// EventFail records a failed connect.
	EventFail = "fail"
	// EventReset returns a failed connect to disconnected.
	EventReset = "reset"
	// EventStreamOn marks video ingest as running.
	EventStreamOn = "stream_on"
	// EventStreamOff marks video ingest as stopped.
	EventStreamOff = "stream_off"
	// EventDisconnect starts teardown from any live state.
	EventDisconnect = "disconnect"
	// EventDisconnected completes teardown.
	EventDisconnected = "disconnected"
)

var allStates = []core.State{
	core.StateDisconnected,
	core.StateConnecting,
	core.StateConnected,
	core.StateStreaming,
	core.StateDisconnecting,
	core.StateConnectFailed,
}

func newFSM(onEnter func(ctx context.Context, e *fsm.Event) error) *fsm.FSM {
	s := func(states ...core.State) []string {
		out := make([]string, len(states))
		for i, st := range states {
			out[i] = string(st)
		}
		return out
	}

	events := fsm.Events{
		{Name: EventConnect, Src: s(core.StateDisconnected), Dst: string(core.StateConnecting)},
		{Name: EventConnected, Src: s(core.StateConnecting), Dst: string(core.StateConnected)},
		{Name: EventFail, Src: s(core.StateConnecting), Dst: string(core.StateConnectFailed)},
		{Name: EventReset, Src: s(core.StateConnectFailed), Dst: string(core.StateDisconnected)},

		{Name: EventStreamOn, Src: s(core.StateConnected), Dst: string(core.StateStreaming)},
		{Name: EventStreamOff, Src: s(core.StateStreaming), Dst: string(core.StateConnected)},

		{Name: EventDisconnect, Src: s(core.StateConnecting, core.StateConnected, core.StateStreaming, core.StateConnectFailed), Dst: string(core.StateDisconnecting)},
		{Name: EventDisconnected, Src: s(core.StateDisconnecting), Dst: string(core.StateDisconnected)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(onEnter),
	}

	return fsm.NewFSM(string(core.StateDisconnected), events, callbacks)
}

func setStateMetric(current core.State) {
	for _, st := range allStates {
		v := 0.0
		if st == current {
			v = 1
		}
		metrics.SessionState.WithLabelValues(string(st)).Set(v)
	}
}
