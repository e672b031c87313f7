// Package sequence provides the primitives used to compose asynchronous
// motion operations into ordered behavior scripts without threads: one-shot
// completion Signals, polled Timers, and an integer-state Sequencer that
// advances when awaited Signals fire. Everything here is polled once per
// robot cycle on a single goroutine; nothing blocks.
package sequence

// SignalState is the lifecycle state of a Signal.
type SignalState int

const (
	// StateCleared means the signal has been reset and holds no result.
	StateCleared SignalState = iota
	// StatePending means a Sequencer is waiting on the signal.
	StatePending
	// StateSignaled means the owning operation completed.
	StateSignaled
	// StateCanceled means the owning operation was canceled before
	// completion. A canceled signal still satisfies a waiter.
	StateCanceled
)

func (s SignalState) String() string {
	switch s {
	case StateCleared:
		return "cleared"
	case StatePending:
		return "pending"
	case StateSignaled:
		return "signaled"
	case StateCanceled:
		return "canceled"
	}
	return "unknown"
}

// Source is the read-only view of a Signal handed to waiters. Only the
// component that owns the operation gets the full *Signal and may set or
// cancel it.
type Source interface {
	Name() string
	Signaled() bool
}

// Signal is a single-owner completion flag. It is created once by the owning
// component and reused across operations via Clear/Set/Cancel; at most one
// Sequencer should wait on it at a time.
type Signal struct {
	name   string
	state  SignalState
	result interface{}
}

// NewSignal returns a cleared signal. The name is for diagnostics only.
func NewSignal(name string) *Signal {
	return &Signal{name: name}
}

// Name returns the diagnostic name.
func (s *Signal) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Signal) State() SignalState {
	return s.state
}

// Clear resets the signal so it can gate a new operation.
func (s *Signal) Clear() {
	s.state = StateCleared
	s.result = nil
}

// Set marks the operation complete, recording an optional result, and
// releases any waiter on its next poll. Setting an already fired signal is a
// no-op; a signal fires at most once per Clear.
func (s *Signal) Set(result interface{}) {
	if s.Signaled() {
		return
	}
	s.state = StateSignaled
	s.result = result
}

// Cancel marks the operation canceled. A waiter observing a canceled signal
// treats it exactly like a completed one; callers that must distinguish the
// two can inspect State.
func (s *Signal) Cancel() {
	if s.Signaled() {
		return
	}
	s.state = StateCanceled
	s.result = nil
}

// Signaled reports whether the signal has fired, by completion or by
// cancellation.
func (s *Signal) Signaled() bool {
	return s.state == StateSignaled || s.state == StateCanceled
}

// Result returns the value recorded by Set, or nil.
func (s *Signal) Result() interface{} {
	return s.result
}

// markPending records that a Sequencer started waiting on the signal.
func (s *Signal) markPending() {
	if s.state == StateCleared {
		s.state = StatePending
	}
}
