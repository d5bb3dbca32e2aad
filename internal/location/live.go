// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"fmt"
	"sync"
	"time"
)

// LiveOutcome is how a live attempt ended. Fix is nil unless a reading
// arrived; a delivered fix is attributed to ProviderLive while Provider
// names the platform provider that served it.
type LiveOutcome struct {
	Provider Provider
	Fix      *Fix
	Err      error
}

// LiveFixRequester issues single-shot live requests. It owns one listener
// handle per provider: while an attempt holds a provider, no other attempt
// may subscribe to it.
type LiveFixRequester struct {
	src   LiveSource
	sched *TimeoutScheduler

	mu   sync.Mutex
	held map[Provider]*LiveAttempt
}

func NewLiveFixRequester(src LiveSource, sched *TimeoutScheduler) *LiveFixRequester {
	return &LiveFixRequester{
		src:   src,
		sched: sched,
		held:  make(map[Provider]*LiveAttempt),
	}
}

// LiveAttempt is one open live request.
type LiveAttempt struct {
	owner    *LiveFixRequester
	provider Provider
	sub      Subscription
	timer    *TimerHandle

	once    sync.Once
	stopped chan struct{}
}

// Request subscribes to the first candidate whose handle is free and waits
// at most timeout for one event. deliver is called exactly once with the
// outcome unless the attempt is canceled first. With no candidates the
// network provider is used.
//
// A synchronous platform failure returns an error wrapping ErrPlatformCall
// and nothing is subscribed; when every candidate is held by another attempt
// the error wraps ErrProviderUnavailable.
func (l *LiveFixRequester) Request(candidates []Provider, timeout time.Duration, deliver func(LiveOutcome)) (*LiveAttempt, error) {
	if len(candidates) == 0 {
		candidates = []Provider{ProviderNetwork}
	}

	a, err := l.claim(candidates)
	if err != nil {
		return nil, err
	}

	sub, err := l.src.SubscribeLiveFix(a.provider)
	if err != nil {
		l.release(a)
		return nil, fmt.Errorf("subscribe %s: %w: %v", a.provider, ErrPlatformCall, err)
	}
	a.sub = sub

	a.timer = l.sched.Arm(timeout, func() {
		if a.stop(false) {
			deliver(LiveOutcome{Provider: a.provider, Err: ErrTimeout})
		}
	})

	go a.pump(deliver)
	return a, nil
}

func (l *LiveFixRequester) claim(candidates []Provider) (*LiveAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range candidates {
		if _, busy := l.held[p]; busy {
			continue
		}
		a := &LiveAttempt{owner: l, provider: p, stopped: make(chan struct{})}
		l.held[p] = a
		return a, nil
	}
	return nil, fmt.Errorf("live request on %v: %w", candidates, ErrProviderUnavailable)
}

func (l *LiveFixRequester) release(a *LiveAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[a.provider] == a {
		delete(l.held, a.provider)
	}
}

// Listeners returns the number of provider handles currently held.
func (l *LiveFixRequester) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Provider returns the provider the attempt subscribed to.
func (a *LiveAttempt) Provider() Provider {
	return a.provider
}

// Cancel unsubscribes and disarms the probe timeout. It is safe to call any
// number of times; deliver is not called after Cancel returns unless it was
// already running.
func (a *LiveAttempt) Cancel() {
	a.stop(true)
}

// stop releases everything the attempt holds. Only the first caller gets
// true. The probe timer's own callback passes disarm=false: the handle has
// already fired and may not be assigned yet.
func (a *LiveAttempt) stop(disarm bool) bool {
	first := false
	a.once.Do(func() {
		first = true
		if disarm {
			a.timer.Disarm()
		}
		if a.sub != nil {
			a.sub.Close()
		}
		a.owner.release(a)
		close(a.stopped)
	})
	return first
}

func (a *LiveAttempt) pump(deliver func(LiveOutcome)) {
	events := a.sub.Events()
	for {
		select {
		case <-a.stopped:
			return
		case ev, ok := <-events:
			if !ok {
				if a.stop(true) {
					deliver(LiveOutcome{Provider: a.provider, Err: ErrProviderUnavailable})
				}
				return
			}
			var out LiveOutcome
			switch ev.Kind {
			case EventFix:
				fix := ev.Fix.WithProvider(ProviderLive)
				out = LiveOutcome{Provider: a.provider, Fix: &fix}
			case EventProviderDisabled:
				out = LiveOutcome{Provider: a.provider, Err: fmt.Errorf("%s disabled: %w", a.provider, ErrProviderUnavailable)}
			default:
				out = LiveOutcome{Provider: a.provider, Err: fmt.Errorf("%s: %w: %v", a.provider, ErrPlatformCall, ev.Err)}
			}
			if a.stop(true) {
				deliver(out)
			}
			return
		}
	}
}
