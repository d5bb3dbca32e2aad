// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store keeps the last-known fix of every provider.
package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/locator/internal/location"
)

// Store holds one last-known fix per provider.
type Store interface {
	Put(ctx context.Context, p location.Provider, fix location.Fix) error
	// Get returns nil, nil when the provider has no reading.
	Get(ctx context.Context, p location.Provider) (*location.Fix, error)
}

// Open returns a Redis store when redisURL is set and reachable, otherwise an
// in-memory one.
func Open(redisURL string, ttl time.Duration) Store {
	if redisURL == "" {
		log.Println("store: Redis URL not provided, keeping fixes in memory")
		return NewMemory()
	}
	r, err := NewRedis(redisURL, ttl)
	if err != nil {
		log.Printf("store: %v, keeping fixes in memory", err)
		return NewMemory()
	}
	log.Println("store: Redis fix store initialized")
	return r
}

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	fixes map[location.Provider]location.Fix
}

func NewMemory() *Memory {
	return &Memory{fixes: make(map[location.Provider]location.Fix)}
}

func (m *Memory) Put(_ context.Context, p location.Provider, fix location.Fix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixes[p] = fix
	return nil
}

func (m *Memory) Get(_ context.Context, p location.Provider) (*location.Fix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fix, ok := m.fixes[p]
	if !ok {
		return nil, nil
	}
	return &fix, nil
}
