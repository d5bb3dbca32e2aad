// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"sync"
	"time"
)

// Source names the completion path that settled an attempt.
type Source string

const (
	SourceGate       Source = "gate"
	SourceCache      Source = "cache"
	SourcePermission Source = "permission"
	SourceLive       Source = "live"
	SourceTimeout    Source = "timeout"
	SourceCancel     Source = "cancel"
)

// Outcome is the settled result of an attempt. Fix is nil when there is no
// result; Err then carries the reason.
type Outcome struct {
	Fix       *Fix
	Source    Source
	Err       error
	SettledAt time.Time
}

// ResultArbiter is a single-assignment completion gate. The first Complete
// wins; later calls from any source are no-ops.
type ResultArbiter struct {
	mu       sync.Mutex
	settled  bool
	outcome  Outcome
	done     chan struct{}
	teardown func()
	deliver  func(Outcome)
	now      func() time.Time
}

// NewResultArbiter returns an unsettled arbiter. teardown and deliver run
// once each on settlement; either may be nil.
func NewResultArbiter(teardown func(), deliver func(Outcome)) *ResultArbiter {
	return &ResultArbiter{
		done:     make(chan struct{}),
		teardown: teardown,
		deliver:  deliver,
		now:      time.Now,
	}
}

// Complete settles the arbiter if it is still open and reports whether this
// call won. On the winning call teardown runs, then Done is closed, then the
// outcome is delivered, all before Complete returns.
func (a *ResultArbiter) Complete(src Source, fix *Fix, err error) bool {
	a.mu.Lock()
	if a.settled {
		a.mu.Unlock()
		return false
	}
	a.settled = true
	a.outcome = Outcome{Fix: fix, Source: src, Err: err, SettledAt: a.now()}
	out := a.outcome
	a.mu.Unlock()

	if a.teardown != nil {
		a.teardown()
	}
	close(a.done)
	if a.deliver != nil {
		a.deliver(out)
	}
	return true
}

// IsSettled reports whether some source has already completed.
func (a *ResultArbiter) IsSettled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settled
}

// Done is closed once the winning completion has torn the attempt down.
func (a *ResultArbiter) Done() <-chan struct{} {
	return a.done
}

// Outcome returns the settled outcome; the zero Outcome while open.
func (a *ResultArbiter) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}
