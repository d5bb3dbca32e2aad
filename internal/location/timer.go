// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"sync/atomic"
	"time"
)

// Default budgets. The attempt timeout bounds the whole acquisition and must
// never be shorter than the probe timeout of the live subscription.
const (
	DefaultProbeTimeout   = 8 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// Stopper is the part of a runtime timer the scheduler needs.
type Stopper interface {
	Stop() bool
}

// Clock is the time source of the orchestrator.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// TimeoutScheduler arms one-shot deadlines and keeps count of the armed ones.
type TimeoutScheduler struct {
	clock Clock
	armed atomic.Int64
}

func NewTimeoutScheduler(clock Clock) *TimeoutScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TimeoutScheduler{clock: clock}
}

const (
	timerArmed int32 = iota
	timerFired
	timerDisarmed
)

// TimerHandle is one armed deadline.
type TimerHandle struct {
	sched *TimeoutScheduler
	state atomic.Int32
	timer Stopper
}

// Arm schedules onExpire after d. onExpire runs at most once, and never
// after Disarm has returned true.
func (s *TimeoutScheduler) Arm(d time.Duration, onExpire func()) *TimerHandle {
	h := &TimerHandle{sched: s}
	s.armed.Add(1)
	h.timer = s.clock.AfterFunc(d, func() {
		if !h.state.CompareAndSwap(timerArmed, timerFired) {
			return
		}
		s.armed.Add(-1)
		onExpire()
	})
	return h
}

// Disarm cancels the deadline. It reports false if the handle already fired
// or was disarmed before; the call is then a no-op.
func (h *TimerHandle) Disarm() bool {
	if h == nil || !h.state.CompareAndSwap(timerArmed, timerDisarmed) {
		return false
	}
	h.timer.Stop()
	h.sched.armed.Add(-1)
	return true
}

// Armed returns the number of deadlines that have neither fired nor been
// disarmed.
func (s *TimeoutScheduler) Armed() int {
	return int(s.armed.Load())
}

// Now exposes the scheduler's clock.
func (s *TimeoutScheduler) Now() time.Time {
	return s.clock.Now()
}
