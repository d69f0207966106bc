package copilot

import "sync"

// SessionState is a node in the session lifecycle state machine (§4.6):
// Created -> Running -> {Idle <-> Running} -> Destroyed, with Destroyed
// reachable from any state via destroy() or a terminal lifecycle event.
type SessionState string

const (
	StateCreated   SessionState = "created"
	StateRunning   SessionState = "running"
	StateIdle      SessionState = "idle"
	StateDestroyed SessionState = "destroyed"
)

// sessionLifecycle tracks the current state under a mutex, since state
// transitions are driven both by incoming events (connection goroutine)
// and by user-initiated RPCs (caller goroutine) concurrently (§4.6 "mutated
// only by incoming events and user-initiated RPCs").
type sessionLifecycle struct {
	mu    sync.RWMutex
	state SessionState
}

func newSessionLifecycle() *sessionLifecycle {
	return &sessionLifecycle{state: StateCreated}
}

func (l *sessionLifecycle) current() SessionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// transition moves to next unconditionally, except that Destroyed is
// terminal: once destroyed, further transitions are no-ops (§4.6 "In
// Destroyed, all further calls return an error").
func (l *sessionLifecycle) transition(next SessionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateDestroyed {
		return
	}
	l.state = next
}

func (l *sessionLifecycle) destroyed() bool {
	return l.current() == StateDestroyed
}

// observeEvent derives a lifecycle transition from an incoming Event, per
// §4.6's "mutated only by incoming events" rule. Most events don't affect
// lifecycle state; this only reacts to the handful that do.
func (l *sessionLifecycle) observeEvent(e Event) {
	switch e.(type) {
	case SessionStart, SessionResume:
		l.transition(StateRunning)
	case SessionIdle:
		l.transition(StateIdle)
	case TurnStart:
		l.transition(StateRunning)
	case SessionShutdown:
		l.transition(StateDestroyed)
	}
}
