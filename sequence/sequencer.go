package sequence

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Reserved sequencer states. Behavior scripts number their own states
// starting at StateStarted; values need not be contiguous.
const (
	// StateStopped is reported before Start and after Stop.
	StateStopped = 0
	// StateStarted is the initial state entered by Start.
	StateStarted = 0x100
)

// Sequencer is a numbered-state engine used to compose motion operations
// into ordered behavior scripts. Client code polls IsReady once per cycle
// and, when ready, issues the commands for the current state and either
// transitions immediately with SetState or parks on WaitForSignals.
//
// Waits use OR semantics: the sequencer advances on the first awaited signal
// to fire (or on timeout), never on all of them. Call sites rely on
// first-to-fire for "reached target or timed out" composition.
type Sequencer struct {
	name string
	clk  clock.Clock

	started   bool
	state     int
	waiting   bool
	nextState int
	awaited   []Source
	deadline  time.Time
}

// NewSequencer returns a stopped sequencer for one behavior script.
func NewSequencer(name string, clk clock.Clock) *Sequencer {
	return &Sequencer{name: name, clk: clk}
}

// Name returns the diagnostic name.
func (sm *Sequencer) Name() string {
	return sm.name
}

// Start resets the sequencer to the initial state.
func (sm *Sequencer) Start() {
	sm.started = true
	sm.state = StateStarted
	sm.clearWait()
}

// Stop marks the script terminal. State remains readable and IsReady is
// always false afterwards.
func (sm *Sequencer) Stop() {
	sm.started = false
	sm.state = StateStopped
	sm.clearWait()
}

// Started reports whether the sequencer is running.
func (sm *Sequencer) Started() bool {
	return sm.started
}

// State returns the current state number.
func (sm *Sequencer) State() int {
	return sm.state
}

// SetState transitions unconditionally to state n, abandoning any wait.
func (sm *Sequencer) SetState(n int) {
	sm.state = n
	sm.clearWait()
}

// WaitForSignals parks the sequencer until the first of sigs fires or the
// timeout elapses (timeout 0 means no deadline), then auto-advances to next.
// An empty signal set with a nonzero timeout is a pure delay.
func (sm *Sequencer) WaitForSignals(next int, timeout time.Duration, sigs ...Source) {
	sm.waiting = true
	sm.nextState = next
	sm.awaited = append([]Source(nil), sigs...)
	if timeout > 0 {
		sm.deadline = sm.clk.Now().Add(timeout)
	} else {
		sm.deadline = time.Time{}
	}
	for _, sig := range sigs {
		if s, ok := sig.(*Signal); ok {
			s.markPending()
		}
	}
}

// IsReady reports whether the current state's handler should run this cycle.
// When a pending wait is satisfied, the sequencer advances to the stored
// target state before returning true. Polled at most once per cycle.
func (sm *Sequencer) IsReady() bool {
	if !sm.started {
		return false
	}
	if !sm.waiting {
		return true
	}
	if sm.waitSatisfied() {
		sm.state = sm.nextState
		sm.clearWait()
		return true
	}
	return false
}

func (sm *Sequencer) waitSatisfied() bool {
	// nothing awaited and no deadline: there is nothing to wait for
	if len(sm.awaited) == 0 && sm.deadline.IsZero() {
		return true
	}
	for _, sig := range sm.awaited {
		if sig.Signaled() {
			return true
		}
	}
	if !sm.deadline.IsZero() && !sm.clk.Now().Before(sm.deadline) {
		return true
	}
	return false
}

func (sm *Sequencer) clearWait() {
	sm.waiting = false
	sm.nextState = 0
	sm.awaited = nil
	sm.deadline = time.Time{}
}
