package protocol

import "errors"

// ErrAwaitInput suspends the execution when returned (possibly wrapped)
// from a task handler. The engine parks the token past the task and waits
// for an external resume call carrying the missing input.
var ErrAwaitInput = errors.New("awaiting external input")
