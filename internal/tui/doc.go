// Package tui implements the interactive view behind formrelay send.
//
// SendModel is a Bubble Tea model that submits one registration and follows
// it through its states. Changes reach the model as SnapshotMsg values,
// pushed by the observer returned from Forward; the submission itself runs
// as a tea.Cmd and reports back with an OutcomeMsg.
//
// The screen shows a spinner while loading, the region panel (which of
// loading, success and error is visible, with its text) and a progress bar
// counting down to the auto-hide. The program exits on its own once the
// regions are hidden again, or right after the first outcome with NoWait.
//
// Keys:
//
//	r     submit again (ignored while loading)
//	q     quit
//
// Non-interactive callers use the ui package instead.
package tui
