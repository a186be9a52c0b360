package engine

import (
	"errors"
	"fmt"
)

// BotState is the engine lifecycle. ERROR is terminal.
type BotState int

const (
	StateIdle BotState = iota
	StateRunning
	StatePaused
	StateStopped
	StateError
)

func (s BotState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[BotState][]BotState{
	StateIdle:    {StateRunning},
	StateRunning: {StatePaused, StateStopped, StateError},
	StatePaused:  {StateRunning, StateStopped, StateError},
}

func canTransition(from, to BotState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(from, to BotState) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
