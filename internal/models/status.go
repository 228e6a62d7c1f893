package models

// Status is the lifecycle state of a split session.
//
// The lifecycle is waiting → active ⇄ locked → ended. A session starts in
// waiting when the host creates it, moves to active when the host starts
// it, may toggle between active and locked, and terminates in ended.
type Status string

const (
	// StatusWaiting is the initial state: the split exists and
	// participants may join, but the bill is not being worked yet.
	StatusWaiting Status = "waiting"

	// StatusActive is the working state: participants assign items.
	StatusActive Status = "active"

	// StatusLocked blocks new joins but not item or assignment mutation
	// by participants already in the split. Rejoins bypass the lock.
	StatusLocked Status = "locked"

	// StatusEnded is terminal: no transition leaves it and no further
	// mutation is accepted.
	StatusEnded Status = "ended"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusLocked, StatusEnded:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusEnded
}

// CanTransition reports whether the lifecycle permits moving from s to
// next. Any non-terminal state may be ended; only active and locked may
// toggle between each other; waiting may only start into active.
func (s Status) CanTransition(next Status) bool {
	if s == next || !next.Valid() {
		return false
	}
	switch s {
	case StatusWaiting:
		return next == StatusActive || next == StatusEnded
	case StatusActive:
		return next == StatusLocked || next == StatusEnded
	case StatusLocked:
		return next == StatusActive || next == StatusEnded
	}
	return false
}

// BlocksJoin reports whether new participants are rejected in s. A device
// holding a persisted session for the PIN rejoins regardless.
func (s Status) BlocksJoin() bool {
	return s == StatusLocked || s == StatusEnded
}
