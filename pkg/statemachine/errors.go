package statemachine

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for a transition with a zero from, to or event.
var ErrInvalidTransition = errors.New("invalid transition: from, to, and event must be set")

// ErrNoTransitionAvailable indicates no transition exists for the state/event combination.
type ErrNoTransitionAvailable struct {
	State string
	Event string
}

func (e *ErrNoTransitionAvailable) Error() string {
	return fmt.Sprintf("no transition available from state '%s' for event '%s'", e.State, e.Event)
}

// ErrTransitionRejected indicates every candidate transition was blocked by its guards.
type ErrTransitionRejected struct {
	State string
	Event string
}

func (e *ErrTransitionRejected) Error() string {
	return fmt.Sprintf("transition from state '%s' for event '%s' was rejected by guards", e.State, e.Event)
}

// ErrActionFailed wraps the error of an action that aborted a transition.
type ErrActionFailed struct {
	State string
	Event string
	Err   error
}

func (e *ErrActionFailed) Error() string {
	return fmt.Sprintf("action failed from state '%s' for event '%s': %v", e.State, e.Event, e.Err)
}

func (e *ErrActionFailed) Unwrap() error { return e.Err }

func newErrNoTransitionAvailable[S, E comparable](state S, event E) *ErrNoTransitionAvailable {
	return &ErrNoTransitionAvailable{State: name(state), Event: name(event)}
}

func newErrTransitionRejected[S, E comparable](state S, event E) *ErrTransitionRejected {
	return &ErrTransitionRejected{State: name(state), Event: name(event)}
}

func name(v any) string {
	return fmt.Sprint(v)
}

func IsNoTransitionAvailableError(err error) bool {
	var e *ErrNoTransitionAvailable
	return errors.As(err, &e)
}

func IsTransitionRejectedError(err error) bool {
	var e *ErrTransitionRejected
	return errors.As(err, &e)
}
