// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

// PermissionSource reads the current authorization and the global services
// switch. Both calls must be cheap and side-effect free.
type PermissionSource interface {
	PermissionStatus() PermissionStatus
	ServicesEnabled() bool
}

// FixCache exposes the providers' last-known readings.
type FixCache interface {
	// AvailableProviders returns the providers currently enabled.
	AvailableProviders() []Provider
	// LastKnownFix returns nil when the provider holds no reading.
	LastKnownFix(p Provider) (*Fix, error)
}

// LiveEventKind tells what a live subscription reported.
type LiveEventKind int

const (
	EventFix LiveEventKind = iota
	EventError
	EventProviderDisabled
)

// LiveEvent is one message on a live subscription.
type LiveEvent struct {
	Kind LiveEventKind
	Fix  Fix
	Err  error
}

// Subscription is an open platform listener. Close unsubscribes it; Events
// is never written after Close returns.
type Subscription interface {
	Events() <-chan LiveEvent
	Close()
}

// LiveSource opens live listeners. SubscribeLiveFix fails synchronously when
// the platform refuses the call (e.g. authorization revoked).
type LiveSource interface {
	SubscribeLiveFix(p Provider) (Subscription, error)
}

// Prompter shows the permission prompt and reports its answers.
type Prompter interface {
	// RequestPermissionPrompt is fire and forget; the answer arrives on the
	// channel returned by WatchPermission.
	RequestPermissionPrompt()
	// WatchPermission delivers every later status change until unsubscribe
	// is called.
	WatchPermission() (changes <-chan PermissionStatus, unsubscribe func())
}

// Platform is everything the orchestrator needs from the OS location
// subsystem.
type Platform interface {
	PermissionSource
	FixCache
	LiveSource
	Prompter
}
