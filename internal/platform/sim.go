// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package platform

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/store"
)

// Sim is a scripted in-memory platform. Scheduled answers run on the given
// clock, so tests drive it with a manual clock and the mock console with the
// wall clock.
type Sim struct {
	clock    location.Clock
	auth     *Authority
	services atomic.Bool
	feeds    feedSet

	mu           sync.Mutex
	prompts      int
	opened       int
	closedAt     []time.Time
	subscribeErr error
	lastKnownErr map[location.Provider]error
	answer       *scripted[location.PermissionStatus]
	responses    map[location.Provider]*scripted[location.Fix]
}

type scripted[T any] struct {
	value T
	after time.Duration
}

// NewSim returns a platform with services on, permission not determined,
// every provider enabled and no cached readings.
func NewSim(clock location.Clock) *Sim {
	if clock == nil {
		clock = location.SystemClock{}
	}
	s := &Sim{
		clock:        clock,
		auth:         NewAuthority(location.NotDetermined),
		feeds:        newFeedSet(store.NewMemory(), func(location.Provider) bool { return true }),
		lastKnownErr: make(map[location.Provider]error),
		responses:    make(map[location.Provider]*scripted[location.Fix]),
	}
	s.services.Store(true)
	return s
}

// --- location.Platform ---

func (s *Sim) PermissionStatus() location.PermissionStatus { return s.auth.Status() }

func (s *Sim) ServicesEnabled() bool { return s.services.Load() }

func (s *Sim) AvailableProviders() []location.Provider { return s.feeds.available() }

func (s *Sim) LastKnownFix(p location.Provider) (*location.Fix, error) {
	s.mu.Lock()
	err := s.lastKnownErr[p]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.feeds.lastKnown(p)
}

func (s *Sim) SubscribeLiveFix(p location.Provider) (location.Subscription, error) {
	s.mu.Lock()
	err := s.subscribeErr
	resp := s.responses[p]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sub, err := s.feeds.subscribe(p, s.auth.Status())
	if err != nil {
		return nil, err
	}

	if resp != nil {
		fix := resp.value
		s.clock.AfterFunc(resp.after, func() {
			if fix.Timestamp == 0 {
				fix.Timestamp = s.clock.Now().UnixMilli()
			}
			s.PushFix(p, fix)
		})
	}

	// counted last so that a caller seeing the count also sees the scripted
	// response armed
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	return &simSub{Subscription: sub, sim: s}, nil
}

func (s *Sim) RequestPermissionPrompt() {
	s.mu.Lock()
	answer := s.answer
	s.mu.Unlock()

	log.Println("sim: permission prompt shown")
	if answer != nil {
		s.clock.AfterFunc(answer.after, func() { s.auth.Set(answer.value) })
	}

	s.mu.Lock()
	s.prompts++
	s.mu.Unlock()
}

func (s *Sim) WatchPermission() (<-chan location.PermissionStatus, func()) {
	return s.auth.Watch()
}

// --- scripting ---

func (s *Sim) SetServicesEnabled(on bool) { s.services.Store(on) }

// SetPermission changes the authorization and notifies watchers.
func (s *Sim) SetPermission(st location.PermissionStatus) { s.auth.Set(st) }

func (s *Sim) SetProviderEnabled(p location.Provider, on bool) {
	if f, err := s.feeds.feed(p); err == nil {
		f.SetEnabled(on)
	}
}

// SetLastKnown stores fix as p's cached reading without notifying
// listeners.
func (s *Sim) SetLastKnown(p location.Provider, fix location.Fix) {
	fix.Provider = p
	f, err := s.feeds.feed(p)
	if err != nil {
		return
	}
	_ = f.store.Put(context.Background(), p, fix)
}

// SetLastKnownError makes p's cache lookup fail.
func (s *Sim) SetLastKnownError(p location.Provider, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnownErr[p] = err
}

// FailSubscribe makes every live subscription fail synchronously with err;
// nil restores normal behavior.
func (s *Sim) FailSubscribe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribeErr = err
}

// AnswerPrompt schedules st to be applied after d whenever a prompt is
// shown.
func (s *Sim) AnswerPrompt(st location.PermissionStatus, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = &scripted[location.PermissionStatus]{value: st, after: d}
}

// RespondWith schedules fix to be recorded on p at d after every
// subscription to p.
func (s *Sim) RespondWith(p location.Provider, fix location.Fix, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[p] = &scripted[location.Fix]{value: fix, after: d}
}

// PushFix records a live reading on p.
func (s *Sim) PushFix(p location.Provider, fix location.Fix) {
	f, err := s.feeds.feed(p)
	if err != nil {
		return
	}
	if err := f.Record(context.Background(), fix); err != nil {
		log.Printf("sim: record %s fix: %v", p, err)
	}
}

// FailProvider reports err to p's live listeners.
func (s *Sim) FailProvider(p location.Provider, err error) {
	if f, ferr := s.feeds.feed(p); ferr == nil {
		f.Fail(err)
	}
}

// --- counters ---

// Prompts returns how many permission prompts were requested.
func (s *Sim) Prompts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts
}

// Subscriptions returns how many live subscriptions were opened.
func (s *Sim) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// LiveListeners returns the subscriptions currently open.
func (s *Sim) LiveListeners() int {
	return s.feeds.listeners()
}

// PermissionWatchers returns the permission watches currently open.
func (s *Sim) PermissionWatchers() int {
	return s.auth.Watchers()
}

// Unsubscribed returns the clock time of every subscription close.
func (s *Sim) Unsubscribed() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.closedAt...)
}

type simSub struct {
	location.Subscription
	sim  *Sim
	once sync.Once
}

func (s *simSub) Close() {
	s.once.Do(func() {
		s.Subscription.Close()
		s.sim.mu.Lock()
		s.sim.closedAt = append(s.sim.closedAt, s.sim.clock.Now())
		s.sim.mu.Unlock()
	})
}
