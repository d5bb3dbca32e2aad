// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package platform

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/store"
)

// storeTimeout bounds a single last-known lookup.
const storeTimeout = 2 * time.Second

// Feed is one provider: its last-known reading and the live listeners
// currently subscribed to it.
type Feed struct {
	provider location.Provider
	store    store.Store

	mu      sync.Mutex
	enabled bool
	subs    map[*feedSub]struct{}
	forward []*Feed
}

func NewFeed(p location.Provider, st store.Store, enabled bool) *Feed {
	return &Feed{
		provider: p,
		store:    st,
		enabled:  enabled,
		subs:     make(map[*feedSub]struct{}),
	}
}

// Provider returns the provider this feed serves.
func (f *Feed) Provider() location.Provider {
	return f.provider
}

// ForwardTo makes every fix recorded here also recorded on dst. This is how
// the passive provider sees the readings of the others.
func (f *Feed) ForwardTo(dst *Feed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forward = append(f.forward, dst)
}

// Record stores fix as the last-known reading and hands it to every live
// listener.
func (f *Feed) Record(ctx context.Context, fix location.Fix) error {
	fix.Provider = f.provider
	if err := f.store.Put(ctx, f.provider, fix); err != nil {
		return fmt.Errorf("%s: store fix: %w", f.provider, err)
	}

	f.mu.Lock()
	f.emitLocked(location.LiveEvent{Kind: location.EventFix, Fix: fix})
	forward := append([]*Feed(nil), f.forward...)
	f.mu.Unlock()

	for _, dst := range forward {
		if err := dst.Record(ctx, fix); err != nil {
			log.Printf("platform: forward %s fix to %s: %v", f.provider, dst.provider, err)
		}
	}
	return nil
}

// Fail reports a provider error to the live listeners.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitLocked(location.LiveEvent{Kind: location.EventError, Err: err})
}

// SetEnabled switches the provider on or off. Disabling notifies every live
// listener.
func (f *Feed) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enabled == enabled {
		return
	}
	f.enabled = enabled
	if !enabled {
		f.emitLocked(location.LiveEvent{Kind: location.EventProviderDisabled})
	}
}

func (f *Feed) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// LastKnown returns the stored reading, or nil.
func (f *Feed) LastKnown() (*location.Fix, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return f.store.Get(ctx, f.provider)
}

// Subscribe opens a live listener. A disabled provider refuses it.
func (f *Feed) Subscribe() (location.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled {
		return nil, fmt.Errorf("%s: %w", f.provider, location.ErrProviderUnavailable)
	}
	s := &feedSub{feed: f, ch: make(chan location.LiveEvent, 4)}
	f.subs[s] = struct{}{}
	return s, nil
}

// Listeners returns the number of open subscriptions.
func (f *Feed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) emitLocked(ev location.LiveEvent) {
	for s := range f.subs {
		select {
		case s.ch <- ev:
		default:
			// single-shot listeners only ever read the first event
		}
	}
}

type feedSub struct {
	feed *Feed
	ch   chan location.LiveEvent
	once sync.Once
}

func (s *feedSub) Events() <-chan location.LiveEvent {
	return s.ch
}

func (s *feedSub) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.subs, s)
		close(s.ch)
	})
}
