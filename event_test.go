// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"errors"
	"testing"
	"time"
)

func TestEventFireWaitSuccess(t *testing.T) {
	e := newEvent()
	done := make(chan error, 1)
	go func() { done <- e.wait() }()

	time.Sleep(10 * time.Millisecond) // give the waiter a chance to block
	e.fire(nil)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait() did not unblock after fire")
	}
	if !e.isDone() {
		t.Fatal("isDone() = false after fire")
	}
}

func TestEventFireWithError(t *testing.T) {
	e := newEvent()
	want := errors.New("boom")
	e.fire(want)
	if err := e.wait(); err != want {
		t.Fatalf("wait() = %v, want %v", err, want)
	}
}

func TestEventFireIsIdempotent(t *testing.T) {
	e := newEvent()
	first := errors.New("first")
	second := errors.New("second")
	e.fire(first)
	e.fire(second) // must be a no-op; first writer wins
	if err := e.wait(); err != first {
		t.Fatalf("wait() = %v, want %v (first fire wins)", err, first)
	}
}

func TestLatchAwaitStateReachesTarget(t *testing.T) {
	l := newLatch(stateKex)
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.set(stateKexDone, nil)
	}()
	if err := l.awaitState(stateKexDone); err != nil {
		t.Fatalf("awaitState(stateKexDone) = %v, want nil", err)
	}
	got, _ := l.get()
	if got != stateKexDone {
		t.Fatalf("get() = %v, want stateKexDone", got)
	}
}

func TestLatchAwaitStateTerminalError(t *testing.T) {
	l := newLatch(stateKex)
	want := errors.New("handshake failed")
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.set(stateError, want)
	}()
	err := l.awaitState(stateService)
	if err != want {
		t.Fatalf("awaitState on terminal error = %v, want %v", err, want)
	}
}

func TestLatchAwaitStateStoppedWithoutError(t *testing.T) {
	l := newLatch(stateKex)
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.set(stateStopped, nil)
	}()
	if err := l.awaitState(stateService); err != ErrTransportStopped {
		t.Fatalf("awaitState on clean stop = %v, want ErrTransportStopped", err)
	}
}
