package domain

import (
	"time"
)

// State is the position of a user in the input dialogue.
type State int

const (
	StateIdle State = iota
	StateAwaitingOperand1
	StateAwaitingOperand2
	StateAwaitingDescription
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingOperand1:
		return "awaiting_operand1"
	case StateAwaitingOperand2:
		return "awaiting_operand2"
	case StateAwaitingDescription:
		return "awaiting_description"
	default:
		return "unknown"
	}
}

// Pending holds the values collected so far in an unfinished dialogue.
// Operand2 and Result are only set once the session is past AwaitingOperand2.
type Pending struct {
	Operand1 *float64
	Operand2 *float64
	Result   *float64
}

// Session holds dialogue state for a user.
type Session struct {
	UserID    int64
	State     State
	Pending   Pending
	UpdatedAt time.Time
}

// NewSession returns an idle session for the user.
func NewSession(userID int64) Session {
	return Session{UserID: userID, State: StateIdle}
}

// Active reports whether the user is in the middle of a dialogue.
func (s *Session) Active() bool {
	return s.State != StateIdle
}

// Reset returns the session to Idle and discards pending data.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Pending = Pending{}
}
