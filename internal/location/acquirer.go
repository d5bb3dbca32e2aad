// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"sync/atomic"
	"time"
)

// Options tunes an Acquirer. Zero values take the defaults.
type Options struct {
	MaxFixAge      time.Duration // freshness ceiling for cached readings
	ProbeTimeout   time.Duration // live subscription budget
	AttemptTimeout time.Duration // whole acquisition budget, >= ProbeTimeout
	Clock          Clock
}

func (o Options) withDefaults() Options {
	if o.MaxFixAge <= 0 {
		o.MaxFixAge = DefaultMaxFixAge
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.AttemptTimeout < o.ProbeTimeout {
		o.AttemptTimeout = o.ProbeTimeout
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	return o
}

// Acquirer runs acquisition attempts against one platform. It is safe for
// concurrent use; concurrent attempts never share a provider listener.
type Acquirer struct {
	platform Platform
	opts     Options

	gate     *PermissionGate
	selector *CachedFixSelector
	sched    *TimeoutScheduler
	live     *LiveFixRequester

	seq atomic.Uint64
}

func NewAcquirer(p Platform, opts Options) *Acquirer {
	opts = opts.withDefaults()
	sched := NewTimeoutScheduler(opts.Clock)
	return &Acquirer{
		platform: p,
		opts:     opts,
		gate:     NewPermissionGate(p),
		selector: NewCachedFixSelector(p, opts.Clock.Now),
		sched:    sched,
		live:     NewLiveFixRequester(p, sched),
	}
}

// Acquire blocks until the attempt settles and returns the fix, or nil when
// there is no result for any reason. Canceling ctx settles the attempt with
// no result.
func (a *Acquirer) Acquire(ctx context.Context) *Fix {
	r := a.Start(ctx, nil)
	<-r.Done()
	return r.Outcome().Fix
}

// Gate returns the permission gate used by the attempts.
func (a *Acquirer) Gate() *PermissionGate {
	return a.gate
}

// Options returns the effective options.
func (a *Acquirer) Options() Options {
	return a.opts
}

// ArmedTimers returns the deadlines currently armed across all attempts.
func (a *Acquirer) ArmedTimers() int {
	return a.sched.Armed()
}

// LiveListeners returns the provider listeners currently held.
func (a *Acquirer) LiveListeners() int {
	return a.live.Listeners()
}

// Now returns the current time on the acquirer's clock.
func (a *Acquirer) Now() time.Time {
	return a.opts.Clock.Now()
}
