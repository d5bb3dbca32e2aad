// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import "fmt"

// PermissionStatus is the classified authorization tier.
type PermissionStatus int

const (
	NotDetermined PermissionStatus = iota
	Denied
	Restricted
	GrantedCoarse
	GrantedPrecise
)

func (s PermissionStatus) String() string {
	switch s {
	case NotDetermined:
		return "not_determined"
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	case GrantedCoarse:
		return "granted_approximate"
	case GrantedPrecise:
		return "granted_precise"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Granted reports whether a live request may be attempted at this tier.
func (s PermissionStatus) Granted() bool {
	return s == GrantedCoarse || s == GrantedPrecise
}

// Refused reports a terminal refusal: the platform will not serve requests
// and no prompt can change that.
func (s PermissionStatus) Refused() bool {
	return s == Denied || s == Restricted
}

// ParsePermissionStatus accepts the String form plus the short aliases used
// in config files ("coarse", "precise", "fine").
func ParsePermissionStatus(s string) (PermissionStatus, error) {
	switch s {
	case "not_determined", "":
		return NotDetermined, nil
	case "denied":
		return Denied, nil
	case "restricted":
		return Restricted, nil
	case "granted_approximate", "granted_coarse", "coarse":
		return GrantedCoarse, nil
	case "granted_precise", "precise", "fine":
		return GrantedPrecise, nil
	}
	return NotDetermined, fmt.Errorf("unknown permission status %q", s)
}

// Authorization is the raw capability set a platform reports.
type Authorization struct {
	Coarse     bool // approximate location granted
	Fine       bool // precise location granted
	Prompted   bool // the user has answered a prompt at least once
	Restricted bool // policy forbids location access
}

// Classify derives the status from raw capabilities. Fine implies coarse
// level access; a grant wins over a restriction flag.
func Classify(a Authorization) PermissionStatus {
	switch {
	case a.Fine:
		return GrantedPrecise
	case a.Coarse:
		return GrantedCoarse
	case a.Restricted:
		return Restricted
	case !a.Prompted:
		return NotDetermined
	default:
		return Denied
	}
}

// AuthorizationFor is the inverse of Classify.
func AuthorizationFor(s PermissionStatus) Authorization {
	switch s {
	case GrantedPrecise:
		return Authorization{Coarse: true, Fine: true, Prompted: true}
	case GrantedCoarse:
		return Authorization{Coarse: true, Prompted: true}
	case Restricted:
		return Authorization{Restricted: true, Prompted: true}
	case Denied:
		return Authorization{Prompted: true}
	default:
		return Authorization{}
	}
}
