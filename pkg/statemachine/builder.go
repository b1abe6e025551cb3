package statemachine

import "errors"

// Builder provides a fluent API for building machines. Definition errors
// are collected and reported by Build.
type Builder[S, E comparable] struct {
	machine *Machine[S, E]
	current Transition[S, E]
	errs    []error
}

func NewBuilder[S, E comparable]() *Builder[S, E] {
	return &Builder[S, E]{machine: newMachine[S, E]()}
}

// From starts a new transition.
func (b *Builder[S, E]) From(state S) *Builder[S, E] {
	b.current = Transition[S, E]{From: state}
	return b
}

func (b *Builder[S, E]) When(event E) *Builder[S, E] {
	b.current.Event = event
	return b
}

func (b *Builder[S, E]) To(state S) *Builder[S, E] {
	b.current.To = state
	return b
}

func (b *Builder[S, E]) WithGuard(guard Guard[S, E]) *Builder[S, E] {
	if guard != nil {
		b.current.Guards = append(b.current.Guards, guard)
	}
	return b
}

func (b *Builder[S, E]) WithAction(action Action[S, E]) *Builder[S, E] {
	if action != nil {
		b.current.Actions = append(b.current.Actions, action)
	}
	return b
}

// Add finalizes the current transition.
func (b *Builder[S, E]) Add() *Builder[S, E] {
	if err := b.machine.add(b.current); err != nil {
		b.errs = append(b.errs, err)
	}
	b.current = Transition[S, E]{}
	return b
}

// Build returns the machine, or the joined errors of every invalid transition.
func (b *Builder[S, E]) Build() (*Machine[S, E], error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.machine, nil
}
