// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/relaywire/tripstream/internal/trip"
)

// snapshotKey is the single key the full document lives under.
const snapshotKey = "state:snapshot"

// BadgerPersister implements Persister on BadgerDB. The whole document is one
// value: the write volume of this system is a handful of trips per workflow,
// not a dataset, and a single key keeps the snapshot atomic.
type BadgerPersister struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the BadgerDB at path and returns a persister
// backed by it.
func OpenBadger(path string) (*BadgerPersister, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerPersister{db: db}, nil
}

// NewBadgerPersister wraps an already-open BadgerDB handle.
func NewBadgerPersister(db *badger.DB) *BadgerPersister {
	return &BadgerPersister{db: db}
}

// Save rewrites the full document synchronously.
func (p *BadgerPersister) Save(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return p.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(snapshotKey), data); err != nil {
			return fmt.Errorf("set snapshot: %w", err)
		}
		return nil
	})
}

// Load reads the document back; a missing snapshot yields an empty document,
// not an error, so a fresh data directory starts clean.
func (p *BadgerPersister) Load() (Document, error) {
	doc := NewDocument()

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return Document{}, err
	}

	if doc.Trips == nil {
		doc.Trips = make(map[string]trip.Record)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]Account)
	}
	return doc, nil
}

// Close releases the underlying BadgerDB.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}
