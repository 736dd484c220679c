// Package fsm defines the recording attempt lifecycle as a pure transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateError      State = "error"
)

const (
	EventStart       Event = "start"
	EventUpload      Event = "upload"
	EventStop        Event = "stop"
	EventEmpty       Event = "empty"
	EventCancel      Event = "cancel"
	EventTranscribed Event = "transcribed"
	EventNoted       Event = "noted"
	EventFail        Event = "fail"
	EventReset       Event = "reset"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateDone, StateError:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventUpload:
			return StateProcessing, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateProcessing, nil
		case EventEmpty, EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventTranscribed:
			return StateProcessing, nil
		case EventNoted:
			return StateDone, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Accepts reports whether any attempt may begin from state.
func Accepts(state State) bool {
	return state == StateIdle || state == StateDone || state == StateError
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
