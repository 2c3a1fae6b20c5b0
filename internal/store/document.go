// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package store

import "github.com/relaywire/tripstream/internal/trip"

// Account is a registered demo account, keyed by email in the durable
// document. It sits beside the trips map but is otherwise outside the sync
// core's contract.
type Account struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	PasswordHash string `json:"passwordHash,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

// Document is the single durable unit: the full canonical state, rewritten in
// full on every mutation.
type Document struct {
	Trips map[string]trip.Record `json:"trips"`
	Users map[string]Account     `json:"users"`
}

// NewDocument returns an empty document with both maps allocated.
func NewDocument() Document {
	return Document{
		Trips: make(map[string]trip.Record),
		Users: make(map[string]Account),
	}
}

// Persister writes and reads the durable document. Save must complete before
// the caller emits any event derived from the mutation it records.
type Persister interface {
	Save(doc Document) error
	Load() (Document, error)
}
