// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"log"
	"time"
)

// DefaultMaxFixAge is the freshness ceiling for cached readings.
const DefaultMaxFixAge = 5 * time.Minute

// CachedFixSelector picks the best last-known reading among the available
// providers.
type CachedFixSelector struct {
	cache FixCache
	now   func() time.Time
}

func NewCachedFixSelector(cache FixCache, now func() time.Time) *CachedFixSelector {
	if now == nil {
		now = time.Now
	}
	return &CachedFixSelector{cache: cache, now: now}
}

// SelectBest scans providers in PriorityOrder and returns the best reading
// younger than maxAge, or nil. A candidate replaces the running best when
// there is no best yet, when it is within the ceiling and strictly fresher,
// or when it is within the ceiling and strictly more accurate while the
// current best is within the ceiling too. Ties keep the earlier provider.
func (s *CachedFixSelector) SelectBest(providers []Provider, maxAge time.Duration) *Fix {
	return s.SelectBestUntil(nil, providers, maxAge)
}

// SelectBestUntil is SelectBest that stops reading the platform and returns
// nil once done is closed.
func (s *CachedFixSelector) SelectBestUntil(done <-chan struct{}, providers []Provider, maxAge time.Duration) *Fix {
	now := s.now()

	var (
		best    *Fix
		bestAge time.Duration
	)
	for _, p := range ordered(providers) {
		select {
		case <-done:
			return nil
		default:
		}
		fix, err := s.cache.LastKnownFix(p)
		if err != nil {
			// provider unavailable or platform failure; try the next one
			log.Printf("locator: last known fix from %s: %v", p, err)
			continue
		}
		if fix == nil {
			continue
		}
		age := fix.Age(now)

		switch {
		case best == nil,
			age < maxAge && age < bestAge,
			age < maxAge && bestAge < maxAge && fix.Accuracy < best.Accuracy:
			f := fix.WithProvider(p)
			best, bestAge = &f, age
		}
	}

	if best == nil || bestAge >= maxAge {
		return nil
	}
	return best
}

// ordered filters PriorityOrder down to the given providers so that the
// caller's slice order never influences the result.
func ordered(providers []Provider) []Provider {
	out := make([]Provider, 0, len(PriorityOrder))
	for _, p := range PriorityOrder {
		for _, q := range providers {
			if p == q {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
