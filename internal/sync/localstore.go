// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package sync is the client-side engine that keeps a legacy page's local
// store looking realtime: a key-value LocalStore standing in for the page's
// storage, a Mirror holding the canonical map and per-status bucket lists, a
// debounced Pusher shipping merged snapshots to the server, and a Session
// tying them to the HTTP client and the websocket event feed.
package sync

import (
	stdsync "sync"
)

// Storage keys for the two mirror shapes.
const (
	KeyTrips   = "tripstream:trips"
	KeyBuckets = "tripstream:buckets"
)

// WriteHook observes a completed write. Hooks run synchronously inside Write,
// in registration order, matching the storage-event timing the legacy pages
// rely on.
type WriteHook func(key string)

// LocalStore is an in-process key-value store with synchronous write
// notification. Values are JSON documents kept as strings.
type LocalStore struct {
	mu     stdsync.Mutex
	values map[string]string
	hooks  []WriteHook
}

// NewLocalStore creates an empty store.
func NewLocalStore() *LocalStore {
	return &LocalStore{values: make(map[string]string)}
}

// Write stores value under key and notifies every hook before returning.
func (s *LocalStore) Write(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	hooks := make([]WriteHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(key)
	}
}

// Read returns the value under key and whether it exists.
func (s *LocalStore) Read(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Subscribe registers a hook for all future writes.
func (s *LocalStore) Subscribe(hook WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}
