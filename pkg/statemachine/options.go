package statemachine

import "fmt"

// Option configures a Machine during construction.
type Option[S, E comparable] func(*Machine[S, E]) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption[S, E comparable] func(*Transition[S, E])

// New creates a Machine from the given transitions.
func New[S, E comparable](opts ...Option[S, E]) (*Machine[S, E], error) {
	m := newMachine[S, E]()
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New for package-level tables; it panics on an invalid definition.
func MustNew[S, E comparable](opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

// WithTransition adds a single transition to the machine.
func WithTransition[S, E comparable](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		t := Transition[S, E]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		if err := m.add(t); err != nil {
			return fmt.Errorf("%v -> %v on %v: %w", from, to, event, err)
		}
		return nil
	}
}

// WithTransitions adds multiple transitions at once.
func WithTransitions[S, E comparable](transitions ...Transition[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for i, t := range transitions {
			if err := m.add(t); err != nil {
				return fmt.Errorf("transition[%d] %v -> %v on %v: %w", i, t.From, t.To, t.Event, err)
			}
		}
		return nil
	}
}

// WithGuard adds guards to a transition. Nil guards are ignored.
func WithGuard[S, E comparable](guards ...Guard[S, E]) TransitionOption[S, E] {
	return func(t *Transition[S, E]) {
		for _, g := range guards {
			if g != nil {
				t.Guards = append(t.Guards, g)
			}
		}
	}
}

// WithAction adds actions to a transition. Nil actions are ignored.
func WithAction[S, E comparable](actions ...Action[S, E]) TransitionOption[S, E] {
	return func(t *Transition[S, E]) {
		for _, a := range actions {
			if a != nil {
				t.Actions = append(t.Actions, a)
			}
		}
	}
}
