// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package platform provides the location subsystems the orchestrator runs
// against: an MQTT-fed device and a scripted simulator.
package platform

import (
	"sync"

	"github.com/relabs-tech/locator/internal/location"
)

// Authority holds the current location authorization and notifies watchers
// of every change.
type Authority struct {
	mu       sync.Mutex
	auth     location.Authorization
	watchers map[int]chan location.PermissionStatus
	next     int
}

func NewAuthority(initial location.PermissionStatus) *Authority {
	return &Authority{
		auth:     location.AuthorizationFor(initial),
		watchers: make(map[int]chan location.PermissionStatus),
	}
}

// Status returns the classified authorization.
func (a *Authority) Status() location.PermissionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return location.Classify(a.auth)
}

// Authorization returns the raw capability flags.
func (a *Authority) Authorization() location.Authorization {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.auth
}

// Set changes the authorization and notifies watchers if the status changed.
func (a *Authority) Set(s location.PermissionStatus) {
	a.SetAuthorization(location.AuthorizationFor(s))
}

// SetAuthorization replaces the raw capability flags.
func (a *Authority) SetAuthorization(auth location.Authorization) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := location.Classify(a.auth)
	a.auth = auth
	after := location.Classify(auth)
	if before == after {
		return
	}
	for _, ch := range a.watchers {
		notifyLatest(ch, after)
	}
}

// notifyLatest sends s without blocking. A full buffer loses its oldest
// value so that the latest status always gets through. Callers hold a.mu,
// which makes them the only sender.
func notifyLatest(ch chan location.PermissionStatus, s location.PermissionStatus) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Watch subscribes to status changes.
func (a *Authority) Watch() (<-chan location.PermissionStatus, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.next
	a.next++
	ch := make(chan location.PermissionStatus, 4)
	a.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			delete(a.watchers, id)
			close(ch)
		})
	}
}

// Watchers returns the number of open watches.
func (a *Authority) Watchers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.watchers)
}
