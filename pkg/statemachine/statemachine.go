package statemachine

import "context"

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S, E comparable] func(ctx context.Context, from S, event E, data any) bool

// Action executes side effects during a transition. Returning an error prevents the transition.
type Action[S, E comparable] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition[S, E comparable] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // All must pass for transition to proceed
	Actions []Action[S, E] // Executed in order before the new state is returned
}

// Machine is an immutable transition table. It holds no current state:
// callers pass the state they are in and store the state Fire returns, so a
// single Machine serves any number of records concurrently.
type Machine[S, E comparable] struct {
	transitions map[S]map[E][]Transition[S, E]
}

func newMachine[S, E comparable]() *Machine[S, E] {
	return &Machine[S, E]{transitions: make(map[S]map[E][]Transition[S, E])}
}

func (m *Machine[S, E]) add(t Transition[S, E]) error {
	var (
		zeroState S
		zeroEvent E
	)
	if t.From == zeroState || t.To == zeroState || t.Event == zeroEvent {
		return ErrInvalidTransition
	}
	if _, ok := m.transitions[t.From]; !ok {
		m.transitions[t.From] = make(map[E][]Transition[S, E])
	}
	// Multiple transitions allowed for same from/event to support guard-based branching
	m.transitions[t.From][t.Event] = append(m.transitions[t.From][t.Event], t)
	return nil
}

// Fire returns the state reached from current on event. The first
// transition whose guards all pass wins; its actions run before returning.
func (m *Machine[S, E]) Fire(ctx context.Context, current S, event E, data any) (S, error) {
	transitions := m.transitions[current][event]
	if len(transitions) == 0 {
		return current, newErrNoTransitionAvailable(current, event)
	}

	t, ok := firstAllowed(ctx, transitions, current, event, data)
	if !ok {
		return current, newErrTransitionRejected(current, event)
	}

	for _, action := range t.Actions {
		if err := action(ctx, current, t.To, event, data); err != nil {
			return current, &ErrActionFailed{State: name(current), Event: name(event), Err: err}
		}
	}
	return t.To, nil
}

// CanFire reports whether Fire would find an allowed transition. Actions are
// not run.
func (m *Machine[S, E]) CanFire(ctx context.Context, current S, event E, data any) bool {
	_, ok := firstAllowed(ctx, m.transitions[current][event], current, event, data)
	return ok
}

// Events lists the events with at least one transition out of state,
// regardless of guards.
func (m *Machine[S, E]) Events(state S) []E {
	out := make([]E, 0, len(m.transitions[state]))
	for event := range m.transitions[state] {
		out = append(out, event)
	}
	return out
}

func firstAllowed[S, E comparable](ctx context.Context, transitions []Transition[S, E], from S, event E, data any) (Transition[S, E], bool) {
	for _, t := range transitions {
		passed := true
		for _, guard := range t.Guards {
			if !guard(ctx, from, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return t, true
		}
	}
	return Transition[S, E]{}, false
}
