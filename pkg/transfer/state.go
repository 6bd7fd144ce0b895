package transfer

import (
	"errors"
	"fmt"
	"slices"
)

// State is the lifecycle position of a transfer intent
type State int

const (
	// Idle means no intent is in flight and the form is open
	Idle State = iota
	// Collecting means the recipient is being looked up
	Collecting
	// Resolving means the recipient contract is known and the remaining
	// dispatch inputs are being resolved
	Resolving
	// Submitting means the contract write has been handed to the wallet
	Submitting
	// Succeeded means the write was accepted and a tx hash is known
	Succeeded
	// Failed means the write was rejected or could not be dispatched
	Failed
)

// ErrInvalidTransition is returned for a state change outside the transition table
var ErrInvalidTransition = errors.New("invalid transfer state transition")

var transitions = map[State][]State{
	Idle:       {Collecting},
	Collecting: {Resolving, Idle},
	Resolving:  {Submitting, Idle},
	Submitting: {Succeeded, Failed},
	Succeeded:  {Idle},
	Failed:     {Idle},
}

var stateNames = map[State]string{
	Idle:       "idle",
	Collecting: "collecting",
	Resolving:  "resolving",
	Submitting: "submitting",
	Succeeded:  "succeeded",
	Failed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown transfer state %q", text)
}

// InProgress reports whether an intent is being resolved or dispatched
func (s State) InProgress() bool {
	return s == Collecting || s == Resolving || s == Submitting
}

// Terminal reports whether the intent has an outcome
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
