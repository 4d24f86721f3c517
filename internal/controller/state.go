package controller

import "time"

// State is the connection state of the controller
type State int

const (
	Disconnected State = iota
	Connecting
	Initializing
	Ready
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Session is a snapshot of the controller's connection bookkeeping
type Session struct {
	State            State
	Version          string
	ConnectedAt      time.Time
	LastKeepalive    time.Time
	MissedKeepalives int
	Reconnects       int
}

// Transition is delivered to the state callback
type Transition struct {
	From State
	To   State
	Err  error
}
