// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/tripstream/internal/trip"
)

// recordingSink captures emitted events in order.
type recordingSink struct {
	events []sinkEvent
}

type sinkEvent struct {
	name string
	data any
}

func (s *recordingSink) Publish(event string, data any) {
	s.events = append(s.events, sinkEvent{name: event, data: data})
}

// orderedPersister records whether Save ran before the sink saw the event.
type orderedPersister struct {
	saves     int
	saveOrder []string
	fail      bool
}

func (p *orderedPersister) Save(Document) error {
	p.saves++
	p.saveOrder = append(p.saveOrder, "persist")
	if p.fail {
		return errors.New("disk full")
	}
	return nil
}

func (p *orderedPersister) Load() (Document, error) {
	return NewDocument(), nil
}

// orderedSink shares the persister's order log.
type orderedSink struct {
	p *orderedPersister
}

func (s *orderedSink) Publish(string, any) {
	s.p.saveOrder = append(s.p.saveOrder, "broadcast")
}

func TestRepository_UpsertCreate(t *testing.T) {
	sink := &recordingSink{}
	repo := NewRepository(nil, sink)

	rec, created, err := repo.Upsert(trip.Record{"id": "t1", "status": "Pending"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "t1", rec.ID())
	assert.Equal(t, rec.CreatedAt(), rec.UpdatedAt())

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventTripCreated, sink.events[0].name)
}

func TestRepository_UpsertReplaceKeepsCreatedAt(t *testing.T) {
	sink := &recordingSink{}
	repo := NewRepository(nil, sink)

	first, _, err := repo.Upsert(trip.Record{"id": "t1", "status": "Pending", "note": "x"})
	require.NoError(t, err)

	second, created, err := repo.Upsert(trip.Record{"id": "t1", "status": "Approved"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.CreatedAt(), second.CreatedAt())
	assert.True(t, second.UpdatedTime().After(first.UpdatedTime()))
	// Merge is a shallow union: untouched fields survive.
	assert.Equal(t, "x", second["note"])

	require.Len(t, sink.events, 2)
	assert.Equal(t, EventTripUpdated, sink.events[1].name)
}

func TestRepository_UpsertGeneratesID(t *testing.T) {
	repo := NewRepository(nil, nil)

	rec, created, err := repo.Upsert(trip.Record{"status": "Pending"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, rec.ID())
}

func TestRepository_UpsertRejectsBlankID(t *testing.T) {
	repo := NewRepository(nil, nil)

	_, _, err := repo.Upsert(trip.Record{"id": "   "})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRepository_PatchUnknownIDCreates(t *testing.T) {
	sink := &recordingSink{}
	repo := NewRepository(nil, sink)

	rec, err := repo.Patch("t9", trip.Record{"status": "Pending"})
	require.NoError(t, err)
	assert.Equal(t, "t9", rec.ID())

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventTripCreated, sink.events[0].name)
}

func TestRepository_PatchBlankID(t *testing.T) {
	repo := NewRepository(nil, nil)

	_, err := repo.Patch("  ", trip.Record{"status": "Pending"})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRepository_PatchAdvancesUpdatedAtOnly(t *testing.T) {
	repo := NewRepository(nil, nil)

	created, _, err := repo.Upsert(trip.Record{"id": "t1", "status": "Pending"})
	require.NoError(t, err)

	patched, err := repo.Patch("t1", trip.Record{"status": "Approved"})
	require.NoError(t, err)

	assert.Equal(t, created.CreatedAt(), patched.CreatedAt())
	assert.True(t, patched.UpdatedTime().After(created.UpdatedTime()))
	assert.Equal(t, "Approved", patched.Status())
}

func TestRepository_BulkUpsertSkipsInvalid(t *testing.T) {
	sink := &recordingSink{}
	repo := NewRepository(nil, sink)

	results := repo.BulkUpsert([]trip.Record{
		{"id": "a", "status": "Pending"},
		{"id": "b", "status": "Approved"},
		{"status": "no id here"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID())
	assert.Equal(t, "b", results[1].ID())

	// Exactly one batched event carrying exactly the valid results.
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventTripBulk, sink.events[0].name)
	payload, ok := sink.events[0].data.([]trip.Record)
	require.True(t, ok)
	assert.Len(t, payload, 2)
}

func TestRepository_BulkUpsertEmptyBatchEmitsNothing(t *testing.T) {
	sink := &recordingSink{}
	p := &orderedPersister{}
	repo := NewRepository(p, sink)

	results := repo.BulkUpsert([]trip.Record{{"status": "no id"}, nil})
	assert.Empty(t, results)
	assert.Empty(t, sink.events)
	assert.Zero(t, p.saves)
}

func TestRepository_PersistBeforeBroadcast(t *testing.T) {
	p := &orderedPersister{}
	repo := NewRepository(p, &orderedSink{p: p})

	_, _, err := repo.Upsert(trip.Record{"id": "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"persist", "broadcast"}, p.saveOrder)
}

func TestRepository_PersistFailureIsSwallowed(t *testing.T) {
	p := &orderedPersister{fail: true}
	sink := &recordingSink{}
	repo := NewRepository(p, sink)

	rec, _, err := repo.Upsert(trip.Record{"id": "t1", "status": "Pending"})
	require.NoError(t, err)
	assert.Equal(t, "t1", rec.ID())

	// In-memory state stays authoritative and the event still goes out.
	got, err := repo.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "Pending", got.Status())
	assert.Len(t, sink.events, 1)
}

func TestRepository_GetErrors(t *testing.T) {
	repo := NewRepository(nil, nil)

	_, err := repo.Get("")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = repo.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_ListNewestFirst(t *testing.T) {
	repo := NewRepository(nil, nil)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	repo.SetClock(func() time.Time { return clock })

	_, _, err := repo.Upsert(trip.Record{"id": "old"})
	require.NoError(t, err)

	clock = base.Add(time.Minute)
	_, _, err = repo.Upsert(trip.Record{"id": "new"})
	require.NoError(t, err)

	list := repo.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID())
	assert.Equal(t, "old", list[1].ID())
}

func TestRepository_RegisterAccountPersists(t *testing.T) {
	p := &orderedPersister{}
	repo := NewRepository(p, nil)

	acct := repo.RegisterAccount("ada@example.com", "manager", "hash")
	assert.Equal(t, "ada@example.com", acct.Email)
	assert.Equal(t, "manager", acct.Role)
	assert.NotEmpty(t, acct.CreatedAt)
	assert.Equal(t, 1, p.saves)

	// Re-registering keeps the original createdAt.
	again := repo.RegisterAccount("ada@example.com", "traveler", "hash2")
	assert.Equal(t, acct.CreatedAt, again.CreatedAt)
	assert.Equal(t, "traveler", again.Role)
}
