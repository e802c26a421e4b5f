package ws

import "sync/atomic"

// ConnState represents the lifecycle state of a stream connection.
type ConnState int32

// Connection states. Closed is terminal.
const (
	// StateConnected indicates the socket is open and commands are accepted.
	StateConnected ConnState = iota
	// StateClosing indicates a close frame was queued or sent and the reader is winding down.
	StateClosing
	// StateClosed indicates both loops have stopped.
	StateClosed
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State provides thread-safe atomic access to a ConnState value.
type State struct {
	state atomic.Int32
}

// Load returns the current connection state.
func (s *State) Load() ConnState {
	return ConnState(s.state.Load())
}

// Store sets the connection state to the given value.
func (s *State) Store(state ConnState) {
	s.state.Store(int32(state))
}

// CompareAndSwap atomically compares the current state with old and swaps to new if equal.
// It returns true if the swap was performed.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}
