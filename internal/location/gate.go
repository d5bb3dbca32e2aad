// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

// Admission is what the gate allows an attempt to do next.
type Admission int

const (
	// AdmitLive means a live request may start right away.
	AdmitLive Admission = iota
	// AdmitAfterPrompt means the user has not answered yet.
	AdmitAfterPrompt
	// AdmitNone means the attempt settles with no result.
	AdmitNone
)

// PermissionGate classifies authorization and decides whether a live
// request may be attempted. It never asks for permission itself.
type PermissionGate struct {
	src PermissionSource
}

func NewPermissionGate(src PermissionSource) *PermissionGate {
	return &PermissionGate{src: src}
}

// Status returns the current permission tier.
func (g *PermissionGate) Status() PermissionStatus {
	return g.src.PermissionStatus()
}

// ServicesEnabled reports the global location switch.
func (g *PermissionGate) ServicesEnabled() bool {
	return g.src.ServicesEnabled()
}

// Admit returns the admission for the current state and, for AdmitNone, the
// reason.
func (g *PermissionGate) Admit() (Admission, PermissionStatus, error) {
	if !g.src.ServicesEnabled() {
		return AdmitNone, g.src.PermissionStatus(), ErrServicesDisabled
	}
	status := g.src.PermissionStatus()
	switch {
	case status.Granted():
		return AdmitLive, status, nil
	case status == NotDetermined:
		return AdmitAfterPrompt, status, nil
	default:
		return AdmitNone, status, ErrPermissionDenied
	}
}

// Requestable reports whether a permission prompt may still be shown: the
// user has not answered yet, or only approximate access was granted.
func (g *PermissionGate) Requestable() bool {
	switch g.src.PermissionStatus() {
	case NotDetermined, GrantedCoarse:
		return true
	default:
		return false
	}
}
