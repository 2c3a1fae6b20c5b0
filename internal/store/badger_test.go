// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/tripstream/internal/trip"
)

func newTestPersister(t *testing.T) *BadgerPersister {
	t.Helper()
	p, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestBadgerPersister_LoadEmpty(t *testing.T) {
	p := newTestPersister(t)

	doc, err := p.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Trips)
	assert.Empty(t, doc.Users)
}

func TestBadgerPersister_SaveLoadRoundTrip(t *testing.T) {
	p := newTestPersister(t)

	doc := NewDocument()
	doc.Trips["t1"] = trip.Record{"id": "t1", "status": "Approved", "note": "x"}
	doc.Users["ada@example.com"] = Account{Email: "ada@example.com", Role: "manager"}
	require.NoError(t, p.Save(doc))

	got, err := p.Load()
	require.NoError(t, err)
	require.Contains(t, got.Trips, "t1")
	assert.Equal(t, "Approved", got.Trips["t1"].Status())
	assert.Equal(t, "x", got.Trips["t1"]["note"])
	assert.Equal(t, "manager", got.Users["ada@example.com"].Role)
}

func TestBadgerPersister_SaveRewritesFullDocument(t *testing.T) {
	p := newTestPersister(t)

	doc := NewDocument()
	doc.Trips["t1"] = trip.Record{"id": "t1"}
	doc.Trips["t2"] = trip.Record{"id": "t2"}
	require.NoError(t, p.Save(doc))

	// The second save carries only t1; t2 must not survive it.
	doc2 := NewDocument()
	doc2.Trips["t1"] = trip.Record{"id": "t1"}
	require.NoError(t, p.Save(doc2))

	got, err := p.Load()
	require.NoError(t, err)
	assert.Contains(t, got.Trips, "t1")
	assert.NotContains(t, got.Trips, "t2")
}

func TestRepository_RestoreFromBadger(t *testing.T) {
	dir := t.TempDir()

	p, err := OpenBadger(dir)
	require.NoError(t, err)

	repo := NewRepository(p, nil)
	require.NoError(t, repo.Restore())
	_, _, err = repo.Upsert(trip.Record{"id": "t1", "status": "Pending"})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// A fresh process over the same directory sees the snapshot.
	p2, err := OpenBadger(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p2.Close() })

	repo2 := NewRepository(p2, nil)
	require.NoError(t, repo2.Restore())
	rec, err := repo2.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "Pending", rec.Status())
}
