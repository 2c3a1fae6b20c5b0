// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package store holds the authoritative trip repository: an in-memory
// canonical map with merge-on-write normalization, synchronous durable
// persistence of the full document, and a broadcast hook that fires only
// after the snapshot is durably recorded.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/metrics"
	"github.com/relaywire/tripstream/internal/trip"
)

// Realtime event names carried on the websocket channel.
const (
	EventTripCreated = "trip:created"
	EventTripUpdated = "trip:updated"
	EventTripBulk    = "trip:bulk"
)

// EventSink receives one event per mutation after it has been persisted.
// The websocket hub implements it; tests substitute a recorder.
type EventSink interface {
	Publish(event string, data any)
}

// Repository is the sole writer of canonical truth. Every write runs
// normalize → store → persist → broadcast under one mutex, so mutations apply
// atomically in arrival order. No timestamp-based conflict resolution exists:
// the later arrival wins.
type Repository struct {
	mu      sync.Mutex
	trips   map[string]trip.Record
	users   map[string]Account
	persist Persister // optional; nil means in-memory only
	sink    EventSink // optional
	now     func() time.Time
}

// NewRepository creates a repository. Both persist and sink may be nil.
func NewRepository(persist Persister, sink EventSink) *Repository {
	return &Repository{
		trips:   make(map[string]trip.Record),
		users:   make(map[string]Account),
		persist: persist,
		sink:    sink,
		now:     time.Now,
	}
}

// SetClock overrides the repository clock. Test hook.
func (r *Repository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Restore loads the durable document into memory. Called once at startup,
// before the repository is shared.
func (r *Repository) Restore() error {
	if r.persist == nil {
		return nil
	}
	doc, err := r.persist.Load()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips = doc.Trips
	r.users = doc.Users
	logging.Info().Int("trips", len(r.trips)).Int("users", len(r.users)).Msg("repository restored from snapshot")
	return nil
}

// Upsert creates or replaces a single record. An absent id field is generated;
// a present-but-blank id is rejected with ErrInvalidID. The returned flag
// reports whether the id existed before, which also types the emitted event.
func (r *Repository) Upsert(rec trip.Record) (trip.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	input := rec.Clone()
	if input == nil {
		input = trip.Record{}
	}
	if _, present := input[trip.FieldID]; !present {
		input[trip.FieldID] = uuid.NewString()
	}

	id := input.TrimmedID()
	if id == "" {
		return nil, false, ErrInvalidID
	}

	prev, existed := r.trips[id]
	normalized, ok := trip.Normalize(prev, input, r.now())
	if !ok {
		return nil, false, ErrInvalidID
	}

	r.trips[id] = normalized
	metrics.StoreMutations.WithLabelValues("upsert").Inc()
	r.persistLocked()
	r.emitLocked(eventForExisted(existed), normalized)
	return normalized, !existed, nil
}

// Patch applies a partial update to the record with the given id. A blank id
// is ErrInvalidID; an unknown id still creates the record, consistent with
// upsert semantics, and types the event accordingly.
func (r *Repository) Patch(id string, fields trip.Record) (trip.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	input := fields.Clone()
	if input == nil {
		input = trip.Record{}
	}
	input[trip.FieldID] = id

	if input.TrimmedID() == "" {
		return nil, ErrInvalidID
	}

	prev, existed := r.trips[input.TrimmedID()]
	normalized, ok := trip.Normalize(prev, input, r.now())
	if !ok {
		return nil, ErrInvalidID
	}

	r.trips[normalized.ID()] = normalized
	metrics.StoreMutations.WithLabelValues("patch").Inc()
	r.persistLocked()
	r.emitLocked(eventForExisted(existed), normalized)
	return normalized, nil
}

// BulkUpsert applies a batch of records as one mutation. Entries without a
// resolvable id are skipped silently. One snapshot write and exactly one
// trip:bulk event cover the whole batch, whatever the create/update mix.
func (r *Repository) BulkUpsert(recs []trip.Record) []trip.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]trip.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.TrimmedID() == "" {
			continue
		}
		prev := r.trips[rec.TrimmedID()]
		normalized, ok := trip.Normalize(prev, rec, r.now())
		if !ok {
			continue
		}
		r.trips[normalized.ID()] = normalized
		results = append(results, normalized)
	}

	if len(results) == 0 {
		return results
	}

	metrics.StoreMutations.WithLabelValues("bulk").Inc()
	r.persistLocked()
	r.emitLocked(EventTripBulk, results)
	return results
}

// Get returns the record for id, ErrInvalidID on a blank id and ErrNotFound
// for unknown ids.
func (r *Repository) Get(id string) (trip.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	rec, ok := r.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns all records, newest createdAt first. Ties break on id so the
// order is stable.
func (r *Repository) List() []trip.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]trip.Record, 0, len(r.trips))
	for _, rec := range r.trips {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].CreatedTime(), out[j].CreatedTime()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// RegisterAccount upserts a demo account into the users sibling map and
// persists the document. Accounts never broadcast.
func (r *Repository) RegisterAccount(email, role, passwordHash string) Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.users[email]
	if !ok {
		acct = Account{
			Email:     email,
			CreatedAt: r.now().UTC().Format(trip.TimeFormat),
		}
	}
	acct.Role = role
	acct.PasswordHash = passwordHash
	r.users[email] = acct

	metrics.StoreMutations.WithLabelValues("account").Inc()
	r.persistLocked()
	return acct
}

// persistLocked writes the full document synchronously. A failed write is
// logged and swallowed: in-memory state stays correct for the life of the
// process, and a crash before the next successful write loses the gap. Known
// durability trade-off, not masked.
func (r *Repository) persistLocked() {
	if r.persist == nil {
		return
	}

	doc := Document{
		Trips: make(map[string]trip.Record, len(r.trips)),
		Users: make(map[string]Account, len(r.users)),
	}
	for id, rec := range r.trips {
		doc.Trips[id] = rec.Clone()
	}
	for email, acct := range r.users {
		doc.Users[email] = acct
	}

	start := time.Now()
	if err := r.persist.Save(doc); err != nil {
		metrics.StorePersistFailures.Inc()
		logging.Error().Err(err).Msg("durable snapshot write failed; continuing on in-memory state")
		return
	}
	metrics.StorePersistDuration.Observe(time.Since(start).Seconds())
}

func (r *Repository) emitLocked(event string, data any) {
	if r.sink == nil {
		return
	}
	r.sink.Publish(event, data)
}

func eventForExisted(existed bool) string {
	if existed {
		return EventTripUpdated
	}
	return EventTripCreated
}
