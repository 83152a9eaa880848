// Package dialogue implements the input dialogue that collects two operands
// and a description before a record is committed.
package dialogue

import (
	"errors"

	"github.com/ashureev/diffbot/internal/domain"
)

// EventKind distinguishes the inputs the machine reacts to.
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventText
	EventCancel
)

// Event is a single input to the machine.
type Event struct {
	Kind EventKind
	Text string
}

// Start begins a new calculation.
func Start() Event { return Event{Kind: EventStart} }

// Text carries a message typed by the user.
func Text(text string) Event { return Event{Kind: EventText, Text: text} }

// Cancel abandons the current dialogue.
func Cancel() Event { return Event{Kind: EventCancel} }

// Prompt tells the caller what to show next.
type Prompt int

const (
	PromptMenu Prompt = iota
	PromptOperand1
	PromptOperand2
	PromptDescription
	PromptRetry
	PromptCommit
)

func (p Prompt) String() string {
	switch p {
	case PromptMenu:
		return "menu"
	case PromptOperand1:
		return "operand1"
	case PromptOperand2:
		return "operand2"
	case PromptDescription:
		return "description"
	case PromptRetry:
		return "retry"
	case PromptCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Outcome is the result of one transition.
type Outcome struct {
	Prompt Prompt

	// Operand1 is set with PromptOperand2 so the entered value can be echoed.
	Operand1 float64

	// Operand2 and Result accompany PromptDescription.
	Operand2 float64
	Result   float64

	// ParseErr is set with PromptRetry.
	ParseErr *ParseError

	// Commit holds the completed record with PromptCommit. The returned
	// session is only valid once the record has been stored.
	Commit *domain.Record
}

// Machine drives a session through the dialogue. It holds no state of its
// own and is safe for concurrent use; callers own the sessions.
type Machine struct{}

// NewMachine returns a dialogue machine.
func NewMachine() *Machine {
	return &Machine{}
}

// Handle applies ev to s and returns the next session along with what to
// show the user. s itself is not modified.
func (m *Machine) Handle(s domain.Session, ev Event) (domain.Session, Outcome) {
	switch ev.Kind {
	case EventStart:
		s.Reset()
		s.State = domain.StateAwaitingOperand1
		return s, Outcome{Prompt: PromptOperand1}
	case EventCancel:
		s.Reset()
		return s, Outcome{Prompt: PromptMenu}
	case EventText:
		return m.handleText(s, ev.Text)
	default:
		return s, Outcome{Prompt: PromptMenu}
	}
}

func (m *Machine) handleText(s domain.Session, text string) (domain.Session, Outcome) {
	switch s.State {
	case domain.StateIdle:
		return s, Outcome{Prompt: PromptMenu}

	case domain.StateAwaitingOperand1:
		v, err := ParseDecimal(text)
		if err != nil {
			return s, retry(err)
		}
		s.Pending.Operand1 = &v
		s.State = domain.StateAwaitingOperand2
		return s, Outcome{Prompt: PromptOperand2, Operand1: v}

	case domain.StateAwaitingOperand2:
		if s.Pending.Operand1 == nil {
			s.Reset()
			return s, Outcome{Prompt: PromptMenu}
		}
		v, err := ParseDecimal(text)
		if err != nil {
			return s, retry(err)
		}
		result := domain.Difference(*s.Pending.Operand1, v)
		s.Pending.Operand2 = &v
		s.Pending.Result = &result
		s.State = domain.StateAwaitingDescription
		return s, Outcome{
			Prompt:   PromptDescription,
			Operand1: *s.Pending.Operand1,
			Operand2: v,
			Result:   result,
		}

	case domain.StateAwaitingDescription:
		p := s.Pending
		if p.Operand1 == nil || p.Operand2 == nil || p.Result == nil {
			s.Reset()
			return s, Outcome{Prompt: PromptMenu}
		}
		rec := &domain.Record{
			UserID:      s.UserID,
			Operand1:    *p.Operand1,
			Operand2:    *p.Operand2,
			Result:      *p.Result,
			Description: text,
		}
		s.Reset()
		return s, Outcome{Prompt: PromptCommit, Commit: rec}
	}

	s.Reset()
	return s, Outcome{Prompt: PromptMenu}
}

func retry(err error) Outcome {
	var pe *ParseError
	if !errors.As(err, &pe) {
		pe = &ParseError{Err: err}
	}
	return Outcome{Prompt: PromptRetry, ParseErr: pe}
}
