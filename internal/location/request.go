// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// State is the position of a Request in the acquisition state machine.
type State int32

const (
	StateStart State = iota
	StateCacheCheck
	StatePermissionCheck
	StateWaitPermission
	StateLiveRequest
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateCacheCheck:
		return "cache_check"
	case StatePermissionCheck:
		return "permission_check"
	case StateWaitPermission:
		return "wait_permission"
	case StateLiveRequest:
		return "live_request"
	case StateSettled:
		return "settled"
	}
	return "unknown"
}

type eventKind int

const (
	evCache eventKind = iota
	evPermission
	evLive
	evTimeout
)

type event struct {
	kind      eventKind
	fix       *Fix
	providers []Provider
	status    PermissionStatus
	live      LiveOutcome
}

// Request is one acquisition attempt. It owns at most one live listener,
// one permission watch and the attempt deadline, and releases all of them
// when it settles.
type Request struct {
	id      uint64
	acq     *Acquirer
	arbiter *ResultArbiter
	started time.Time

	events chan event
	exited chan struct{}
	state  atomic.Int32

	// touched only by the run loop
	providers []Provider

	mu      sync.Mutex
	outer   *TimerHandle
	attempt *LiveAttempt
	unwatch func()
}

// Start begins an attempt and returns immediately. onResult, if not nil, is
// called exactly once with the outcome; it must not block and must not call
// Cancel.
func (a *Acquirer) Start(ctx context.Context, onResult func(Outcome)) *Request {
	r := &Request{
		id:      a.seq.Add(1),
		acq:     a,
		started: a.opts.Clock.Now(),
		events:  make(chan event, 8),
		exited:  make(chan struct{}),
	}
	r.arbiter = NewResultArbiter(r.teardown, func(out Outcome) {
		r.logOutcome(out)
		if onResult != nil {
			onResult(out)
		}
	})
	r.arbiter.now = a.opts.Clock.Now

	if adm, status, err := a.gate.Admit(); adm == AdmitNone {
		log.Printf("locator: request %d refused at gate (permission %s)", r.id, status)
		close(r.exited)
		r.arbiter.Complete(SourceGate, nil, err)
		return r
	}

	r.mu.Lock()
	r.outer = a.sched.Arm(a.opts.AttemptTimeout, func() {
		r.post(event{kind: evTimeout})
	})
	r.mu.Unlock()

	r.setState(StateCacheCheck)
	go r.run()
	go r.checkCache()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				r.Cancel()
			case <-r.arbiter.Done():
			}
		}()
	}
	return r
}

// ID identifies the attempt in logs.
func (r *Request) ID() uint64 { return r.id }

// Done is closed once the attempt has settled and released its resources.
func (r *Request) Done() <-chan struct{} { return r.arbiter.Done() }

// Outcome returns the settled outcome, or the zero Outcome while running.
func (r *Request) Outcome() Outcome { return r.arbiter.Outcome() }

// State returns the current state.
func (r *Request) State() State { return State(r.state.Load()) }

// Cancel settles the attempt with no result. When it wins, every listener
// and timer is released and the run loop has exited before it returns.
func (r *Request) Cancel() {
	if r.arbiter.Complete(SourceCancel, nil, ErrCanceled) {
		<-r.exited
	}
}

func (r *Request) setState(s State) {
	r.state.Store(int32(s))
}

// post hands an event to the run loop, dropping it once settled.
func (r *Request) post(ev event) {
	select {
	case r.events <- ev:
	case <-r.arbiter.Done():
	}
}

func (r *Request) run() {
	defer close(r.exited)
	for {
		select {
		case <-r.arbiter.Done():
			return
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

func (r *Request) handle(ev event) {
	if r.arbiter.IsSettled() {
		return
	}
	switch ev.kind {
	case evCache:
		r.providers = ev.providers
		if ev.fix != nil {
			r.arbiter.Complete(SourceCache, ev.fix, nil)
			return
		}
		r.checkPermission()
	case evPermission:
		r.onPermission(ev.status)
	case evLive:
		r.arbiter.Complete(SourceLive, ev.live.Fix, ev.live.Err)
	case evTimeout:
		r.arbiter.Complete(SourceTimeout, nil, ErrTimeout)
	}
}

// checkCache runs off the loop so that a slow platform cannot delay the
// deadline.
func (r *Request) checkCache() {
	if r.arbiter.IsSettled() {
		return
	}
	providers := r.acq.platform.AvailableProviders()
	fix := r.acq.selector.SelectBestUntil(r.arbiter.Done(), providers, r.acq.opts.MaxFixAge)
	if r.arbiter.IsSettled() {
		return
	}
	r.post(event{kind: evCache, fix: fix, providers: providers})
}

func (r *Request) checkPermission() {
	r.setState(StatePermissionCheck)
	adm, _, err := r.acq.gate.Admit()
	switch adm {
	case AdmitLive:
		r.startLive()
	case AdmitAfterPrompt:
		r.waitPermission()
	default:
		r.arbiter.Complete(SourcePermission, nil, err)
	}
}

func (r *Request) waitPermission() {
	r.setState(StateWaitPermission)

	r.mu.Lock()
	if r.arbiter.IsSettled() {
		r.mu.Unlock()
		return
	}
	changes, unsubscribe := r.acq.platform.WatchPermission()
	r.unwatch = unsubscribe
	r.mu.Unlock()

	go r.forwardPermission(changes)
	r.acq.platform.RequestPermissionPrompt()

	// the answer may have landed between the gate read and the watch
	if s := r.acq.gate.Status(); s != NotDetermined {
		r.onPermission(s)
	}
}

func (r *Request) forwardPermission(changes <-chan PermissionStatus) {
	for {
		select {
		case <-r.arbiter.Done():
			return
		case s, ok := <-changes:
			if !ok {
				return
			}
			r.post(event{kind: evPermission, status: s})
		}
	}
}

func (r *Request) onPermission(s PermissionStatus) {
	switch r.State() {
	case StateWaitPermission:
		switch {
		case s.Granted():
			r.startLive()
		case s.Refused():
			r.arbiter.Complete(SourcePermission, nil, ErrPermissionDenied)
		}
	case StateLiveRequest:
		// revoked while the live request is open
		if s.Refused() {
			r.arbiter.Complete(SourcePermission, nil, ErrPermissionDenied)
		}
	}
}

func (r *Request) startLive() {
	r.setState(StateLiveRequest)

	r.mu.Lock()
	if r.arbiter.IsSettled() {
		r.mu.Unlock()
		return
	}
	attempt, err := r.acq.live.Request(ordered(r.providers), r.acq.opts.ProbeTimeout, func(out LiveOutcome) {
		r.post(event{kind: evLive, live: out})
	})
	r.attempt = attempt
	r.mu.Unlock()

	if err != nil {
		r.arbiter.Complete(SourceLive, nil, err)
	}
}

// teardown releases the attempt's resources. The arbiter runs it exactly
// once.
func (r *Request) teardown() {
	r.setState(StateSettled)

	r.mu.Lock()
	outer, attempt, unwatch := r.outer, r.attempt, r.unwatch
	r.outer, r.attempt, r.unwatch = nil, nil, nil
	r.mu.Unlock()

	outer.Disarm()
	if attempt != nil {
		attempt.Cancel()
	}
	if unwatch != nil {
		unwatch()
	}
}

func (r *Request) logOutcome(out Outcome) {
	elapsed := out.SettledAt.Sub(r.started)
	if out.Fix != nil {
		log.Printf("locator: request %d settled by %s after %s: lat=%.6f lon=%.6f acc=%.1fm provider=%s",
			r.id, out.Source, elapsed, out.Fix.Latitude, out.Fix.Longitude, out.Fix.Accuracy, out.Fix.Provider)
		return
	}
	log.Printf("locator: request %d settled by %s after %s with no result: %v", r.id, out.Source, elapsed, out.Err)
}
