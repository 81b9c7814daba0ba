// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "sync"

// event is a one-shot, error-propagating latch (spec.md §9 "Blocking
// event with error injection"): it can be completed successfully or
// with a stored error, and wakes every waiter either way. Grounded on
// the same sync.Cond shape as the teacher's window type in common.go,
// generalized from a counting semaphore to a single fire-once gate.
type event struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
	err  error
}

func newEvent() *event {
	e := &event{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// fire completes the event. The first call wins; subsequent calls are
// no-ops, matching spec.md's "disconnect() called twice" idempotence
// law generalized to any one-shot completion.
func (e *event) fire(err error) {
	e.mu.Lock()
	if !e.done {
		e.done = true
		e.err = err
		e.cond.Broadcast()
	}
	e.mu.Unlock()
}

// wait blocks until fire has been called, returning the stored error
// (nil on success).
func (e *event) wait() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.done {
		e.cond.Wait()
	}
	return e.err
}

// isDone reports completion without blocking.
func (e *event) isDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// latch is a level-triggered rendezvous over an enumerated state,
// spec.md §3 "TransportState" / §9. Observers block until the state
// reaches a desired value or a terminal error state; any transition
// wakes all waiters so they can re-check their condition.
type latch struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state TransportState
	err   error
}

func newLatch(initial TransportState) *latch {
	l := &latch{state: initial}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// set transitions to s, recording err if s is the terminal error
// state. Always broadcasts so blocked waiters re-evaluate.
func (l *latch) set(s TransportState, err error) {
	l.mu.Lock()
	l.state = s
	if err != nil {
		l.err = err
	}
	l.cond.Broadcast()
	l.mu.Unlock()
}

// get returns the current state and, if it is stateError, the stored
// cause.
func (l *latch) get() (TransportState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.err
}

// awaitState blocks until the state equals want or the state machine
// has reached stateError/stateStopped, whichever comes first. It
// returns the stored error if the terminal state reached wasn't want.
func (l *latch) awaitState(want TransportState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.state != want && l.state != stateError && l.state != stateStopped {
		l.cond.Wait()
	}
	if l.state == want {
		return nil
	}
	if l.err != nil {
		return l.err
	}
	return ErrTransportStopped
}
