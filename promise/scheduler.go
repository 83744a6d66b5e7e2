// File: promise/scheduler.go
// Package promise
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package promise

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-amqp/api"
)

// Scheduler owns the promise table. It is driven exclusively by the
// reactor thread, so no locking is needed: see the concurrency model of
// the connection package.
type Scheduler struct {
	table  map[ID]*promise
	ready  map[ID]struct{}
	order  *queue.Queue // FIFO of ids that became ready, drained lazily
	nextID ID
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		table: make(map[ID]*promise),
		ready: make(map[ID]struct{}),
		order: queue.New(),
	}
}

// Create allocates a fresh pending promise.
func (s *Scheduler) Create() ID {
	s.nextID++
	id := s.nextID
	s.table[id] = &promise{id: id, state: statePending}
	return id
}

// Done completes a promise. Exactly one completer may call it per id;
// a second call is a programmer error. If the promise is held, the result
// is stored but stays out of the ready set until the hold is released.
func (s *Scheduler) Done(id ID, r Result) error {
	p, ok := s.table[id]
	if !ok {
		return api.ErrPromiseNotFound
	}
	if p.state != statePending {
		return api.ErrPromiseDone
	}
	p.result = r
	p.state = stateReady
	if !p.held() {
		s.markReady(p)
	}
	return nil
}

// markReady makes a ready promise visible for delivery. Called at most
// once per promise: from Done when unheld, or from Release.
func (s *Scheduler) markReady(p *promise) {
	s.ready[p.id] = struct{}{}
	s.order.Add(p.id)
}

// Hold increments the promise's refcount, deferring delivery and excluding
// it from shutdown broadcasts until released.
func (s *Scheduler) Hold(id ID) error {
	p, ok := s.table[id]
	if !ok {
		return api.ErrPromiseNotFound
	}
	if p.state == stateDelivered {
		return api.ErrPromiseDone
	}
	p.refcnt++
	return nil
}

// Release drops one hold. When the last hold on a ready promise is
// released, the promise joins the deliverable set.
func (s *Scheduler) Release(id ID) error {
	p, ok := s.table[id]
	if !ok {
		return api.ErrPromiseNotFound
	}
	if p.refcnt == 0 {
		return api.ErrPromiseNotHeld
	}
	p.refcnt--
	if p.refcnt == 0 && p.state == stateReady {
		s.markReady(p)
	}
	return nil
}

// SetCallback registers the async completion handler. A promise that is
// already ready is delivered on the next scheduler pass, never inline from
// the registration call.
func (s *Scheduler) SetCallback(id ID, cb Callback) error {
	p, ok := s.table[id]
	if !ok {
		return api.ErrPromiseNotFound
	}
	p.callback = cb
	return nil
}

// IsReady reports whether id is in the deliverable set.
func (s *Scheduler) IsReady(id ID) bool {
	_, ok := s.ready[id]
	return ok
}

// AnyReady reports whether any promise awaits delivery.
func (s *Scheduler) AnyReady() bool {
	return len(s.ready) > 0
}

// NextReady returns the oldest deliverable id without removing it from the
// ready set; removal happens in RunCallback. Stale queue entries left by
// out-of-order delivery (Wait consuming a specific id) are skipped.
func (s *Scheduler) NextReady() (ID, bool) {
	for s.order.Length() > 0 {
		id := s.order.Peek().(ID)
		if _, ok := s.ready[id]; ok {
			return id, true
		}
		s.order.Remove()
	}
	return 0, false
}

// RunCallback delivers a ready promise exactly once. The id is removed
// from the ready set before any user code runs, so reentrant scheduler use
// inside a callback can never deliver it twice. With raiseErrors, a
// failure result is returned as an error; otherwise it is passed through
// to the callback or returned as a value-free result.
func (s *Scheduler) RunCallback(id ID, raiseErrors bool) (any, error) {
	p, ok := s.table[id]
	if !ok {
		return nil, api.ErrPromiseNotFound
	}
	if _, ok := s.ready[id]; !ok {
		return nil, api.ErrPromiseNotReady
	}
	delete(s.ready, id)
	delete(s.table, id)
	p.state = stateDelivered

	r := p.result
	if p.callback != nil {
		p.callback(id, r)
	}
	if raiseErrors && r.Err != nil {
		return nil, r.Err
	}
	return r.Value, nil
}

// Outstanding returns every undelivered promise id, for shutdown
// broadcast.
func (s *Scheduler) Outstanding() []ID {
	ids := make([]ID, 0, len(s.table))
	for id := range s.table {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast completes every outstanding unheld pending promise with r.
// Held promises are skipped: they are still in use by a multi-step
// operation and must not be force-completed under their holder.
func (s *Scheduler) Broadcast(r Result) {
	for _, id := range s.Outstanding() {
		p := s.table[id]
		if p.held() || p.state != statePending {
			continue
		}
		_ = s.Done(id, r)
	}
}
