// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package location resolves a single best-effort geographic fix.
//
// An acquisition first consults the permission gate, then the cached
// last-known readings of every available provider, and only if none is fresh
// enough runs one bounded live request. Exactly one result reaches the
// caller; every listener and timer an attempt holds is released when it
// settles.
package location

import (
	"math"
	"time"
)

// Provider is a platform-level source of location data.
type Provider string

const (
	ProviderGPS     Provider = "gps"
	ProviderNetwork Provider = "network"
	ProviderPassive Provider = "passive"
	ProviderLive    Provider = "live"
)

// PriorityOrder is the order in which cached readings are considered and the
// order used to pick the provider for a live request.
var PriorityOrder = []Provider{ProviderGPS, ProviderNetwork, ProviderPassive}

// ParseProvider maps a provider name to a Provider.
func ParseProvider(s string) (Provider, bool) {
	switch Provider(s) {
	case ProviderGPS, ProviderNetwork, ProviderPassive, ProviderLive:
		return Provider(s), true
	}
	return "", false
}

// Unknown marks a speed or bearing the provider did not report.
const Unknown = -1.0

// Fix is a single location reading. Values are passed by copy and never
// mutated after construction.
type Fix struct {
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Accuracy  float64  `json:"accuracy_m"`         // horizontal, meters
	Altitude  *float64 `json:"altitude,omitempty"` // meters, nil if unknown
	Speed     float64  `json:"speed_mps"`          // m/s, Unknown if not reported
	Bearing   float64  `json:"bearing_deg"`        // 0-360, Unknown if not reported
	Provider  Provider `json:"provider"`
	Timestamp int64    `json:"timestamp"` // epoch millis, 0 if none
}

// Age returns how old the fix is at now. A fix without a timestamp is
// infinitely old; a timestamp in the future counts as age zero.
func (f Fix) Age(now time.Time) time.Duration {
	if f.Timestamp <= 0 {
		return time.Duration(math.MaxInt64)
	}
	age := now.Sub(time.UnixMilli(f.Timestamp))
	if age < 0 {
		return 0
	}
	return age
}

// WithProvider returns a copy of f attributed to p.
func (f Fix) WithProvider(p Provider) Fix {
	f.Provider = p
	return f
}

// Map renders the fix in the shape delivered to the command layer.
func (f Fix) Map(now time.Time) map[string]any {
	var alt any
	if f.Altitude != nil {
		alt = *f.Altitude
	}
	var ageSeconds int64
	if f.Timestamp > 0 {
		ageSeconds = int64(f.Age(now) / time.Second)
	}
	return map[string]any{
		"latitude":    f.Latitude,
		"longitude":   f.Longitude,
		"accuracy":    f.Accuracy,
		"altitude":    alt,
		"speed":       orZero(f.Speed),
		"bearing":     orZero(f.Bearing),
		"provider":    string(f.Provider),
		"timestamp":   f.Timestamp,
		"age_seconds": ageSeconds,
	}
}

func orZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
