package domain

import (
	"fmt"
	"strings"
)

// Action is a menu command a user can invoke from a keyboard button.
type Action int

const (
	ActionStartAdd Action = iota + 1
	ActionCancel
	ActionShowHistory
	ActionClearHistory
)

// Code returns the callback code carried by keyboard buttons.
func (a Action) Code() string {
	switch a {
	case ActionStartAdd:
		return "1"
	case ActionCancel:
		return "0"
	case ActionShowHistory:
		return "-1"
	case ActionClearHistory:
		return "-2"
	default:
		return ""
	}
}

func (a Action) String() string {
	switch a {
	case ActionStartAdd:
		return "add"
	case ActionCancel:
		return "cancel"
	case ActionShowHistory:
		return "history"
	case ActionClearHistory:
		return "clear"
	default:
		return "unknown"
	}
}

// ParseAction accepts either a callback code ("1", "0", "-1", "-2")
// or an action name ("add", "cancel", "history", "clear").
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "add":
		return ActionStartAdd, nil
	case "0", "cancel", "back":
		return ActionCancel, nil
	case "-1", "history":
		return ActionShowHistory, nil
	case "-2", "clear":
		return ActionClearHistory, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// Keyboard selects the buttons attached to an outbound message.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardCancel
	KeyboardMenu
)

func (k Keyboard) String() string {
	switch k {
	case KeyboardCancel:
		return "cancel"
	case KeyboardMenu:
		return "menu"
	default:
		return "none"
	}
}

// MarshalText renders the keyboard by name in JSON payloads.
func (k Keyboard) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (k *Keyboard) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*k = KeyboardNone
	case "cancel":
		*k = KeyboardCancel
	case "menu":
		*k = KeyboardMenu
	default:
		return fmt.Errorf("unknown keyboard %q", text)
	}
	return nil
}

// Message is one outbound chat message.
type Message struct {
	Text     string   `json:"text"`
	Keyboard Keyboard `json:"keyboard"`
}

// Reply is everything sent back to a user for a single inbound event.
type Reply struct {
	Messages []Message `json:"messages"`
}

// Add appends a message to the reply.
func (r *Reply) Add(text string, kb Keyboard) {
	r.Messages = append(r.Messages, Message{Text: text, Keyboard: kb})
}

// Last returns the final message of the reply, or the zero Message.
func (r Reply) Last() Message {
	if len(r.Messages) == 0 {
		return Message{}
	}
	return r.Messages[len(r.Messages)-1]
}
