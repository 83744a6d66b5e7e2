// File: promise/promise.go
// Package promise implements the completion scheduler for in-flight
// protocol operations.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A promise represents one asynchronous operation. It moves pending ->
// ready exactly once (when its completer calls Done) and ready ->
// delivered exactly once (when a blocking wait consumes it or the
// scheduler runs its callback). A refcount hold keeps a ready promise out
// of the deliverable set until released.

package promise

// ID identifies one in-flight operation.
type ID uint64

// Result is a completed operation outcome: a success value or a failure
// marker, never both.
type Result struct {
	Value any
	Err   error
}

// Callback is an async completion handler, invoked by the scheduler during
// an event-loop pass.
type Callback func(id ID, r Result)

type state uint8

const (
	statePending state = iota
	stateReady
	stateDelivered
)

type promise struct {
	id       ID
	state    state
	refcnt   int
	callback Callback
	result   Result
}

// held reports whether delivery of a ready result must be deferred.
func (p *promise) held() bool {
	return p.refcnt > 0
}
