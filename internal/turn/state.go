// Package turn is the orchestrator: a single control goroutine that owns
// the turn state and sequences capture, transcription, the model reply and
// speech, one turn at a time.
package turn

import "fmt"

// State is the assistant's current phase. Exactly one State is active at
// any instant and only the control goroutine mutates it.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Mode selects who ends a listening turn: the user (manual stop command) or
// the silence detector (automatic).
type Mode int32

const (
	ModeManual Mode = iota
	ModeAutomatic
)

func (m Mode) String() string {
	if m == ModeAutomatic {
		return "auto"
	}
	return "manual"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "manual":
		return ModeManual, nil
	case "auto", "automatic":
		return ModeAutomatic, nil
	default:
		return ModeManual, fmt.Errorf("unknown mode %q", s)
	}
}
