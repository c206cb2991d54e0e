// Package session manages practice session lifecycle and aggregates the
// pipeline components into one event-producing unit.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a practice session.
type State int

const (
	// StateNotStarted - No session has been started yet.
	StateNotStarted State = iota
	// StateActive - Session is running and accepting frames and notes.
	StateActive
	// StateEnded - Session has been ended and frozen.
	StateEnded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateActive:
		return "ACTIVE"
	case StateEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for out-of-order lifecycle operations.
var (
	ErrNotStarted    = errors.New("session has not been started")
	ErrAlreadyActive = errors.New("session is already active")
	ErrEnded         = errors.New("session has ended")
)

// Lifecycle manages the state machine for practice sessions.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	NOT_STARTED → ACTIVE → ENDED
//	                ↑         │
//	                └─ Start ─┘  (a new session after a previous one ended)
//
// Rules:
//   - NOT_STARTED / ENDED: Start() is allowed; frames and notes are not.
//   - ACTIVE: frames, notes, and End() are allowed; Start() is not.
//   - An ended session itself is frozen; Start() after ENDED begins a new
//     session, it never reopens the old one.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in NOT_STARTED state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateNotStarted}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsActive returns true while a session is running.
func (l *Lifecycle) IsActive() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateActive
}

// Start transitions to ACTIVE. Allowed from NOT_STARTED and from ENDED.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateActive {
		return ErrAlreadyActive
	}
	l.state = StateActive
	return nil
}

// RequireActive validates that frames and notes may be processed.
func (l *Lifecycle) RequireActive() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateActive:
		return nil
	case StateNotStarted:
		return ErrNotStarted
	case StateEnded:
		return ErrEnded
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// End transitions to ENDED. Only allowed from ACTIVE.
func (l *Lifecycle) End() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateActive:
		l.state = StateEnded
		return nil
	case StateNotStarted:
		return ErrNotStarted
	case StateEnded:
		return ErrEnded
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}
