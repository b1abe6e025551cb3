// Package statemachine provides generic, immutable finite-state-machine
// definitions.
//
// A Machine is a transition table keyed by state and event. It does not own a
// current state: records that live in storage keep their own state, pass it
// to Fire and persist the state Fire returns. Any comparable type works as a
// state or event, typically a string enum:
//
//	type Status string
//	type Event string
//
//	machine := statemachine.MustNew(
//		statemachine.WithTransition(Status("draft"), Status("review"), Event("submit")),
//		statemachine.WithTransition(Status("review"), Status("published"), Event("approve"),
//			statemachine.WithGuard(isEditor),
//		),
//	)
//
//	next, err := machine.Fire(ctx, doc.Status, Event("submit"), doc)
//
// # Guards and Actions
//
// Guards veto a transition based on runtime data. When several transitions
// share a state and event, the first whose guards all pass wins. Actions run
// after the guards and before Fire returns; an action error aborts the
// transition.
//
// # Errors
//
//	if statemachine.IsNoTransitionAvailableError(err) { /* undefined */ }
//	if statemachine.IsTransitionRejectedError(err)   { /* guard said no */ }
//
// Machines are read-only after construction and safe for concurrent use.
package statemachine
