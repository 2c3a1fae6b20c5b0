// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package sync

import (
	"io"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/trip"
)

//nolint:gochecknoinits // init keeps test output quiet
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// manualTick collects deferred functions so tests control when the
// suppression flag lowers.
type manualTick struct {
	pending []func()
}

func (m *manualTick) schedule(fn func()) {
	m.pending = append(m.pending, fn)
}

func (m *manualTick) fire() {
	for _, fn := range m.pending {
		fn()
	}
	m.pending = nil
}

func newTestMirror() (*Mirror, *LocalStore, *manualTick) {
	store := NewLocalStore()
	tick := &manualTick{}
	return NewMirror(store, WithTick(tick.schedule)), store, tick
}

func rec(id, status string, extra ...string) trip.Record {
	r := trip.Record{trip.FieldID: id, trip.FieldStatus: status}
	for i := 0; i+1 < len(extra); i += 2 {
		r[extra[i]] = extra[i+1]
	}
	return r
}

func bucketIDs(m *Mirror, b trip.Bucket) []string {
	list := m.Bucket(b)
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID()
	}
	return ids
}

func TestMirror_MergeInsertsAtFront(t *testing.T) {
	m, _, _ := newTestMirror()

	m.Apply([]trip.Record{rec("t1", "Pending")}, ModeMerge)
	m.Apply([]trip.Record{rec("t2", "Pending")}, ModeMerge)

	assert.Equal(t, []string{"t2", "t1"}, bucketIDs(m, trip.BucketPending))
}

func TestMirror_MergeMovesBetweenBuckets(t *testing.T) {
	m, _, _ := newTestMirror()

	m.Apply([]trip.Record{rec("t1", "Pending Manager Approval")}, ModeMerge)
	require.Equal(t, []string{"t1"}, bucketIDs(m, trip.BucketPendingManager))

	m.Apply([]trip.Record{rec("t1", "Approved")}, ModeMerge)

	assert.Empty(t, bucketIDs(m, trip.BucketPendingManager))
	assert.Equal(t, []string{"t1"}, bucketIDs(m, trip.BucketApproved))
}

func TestMirror_ExactlyOneBucket(t *testing.T) {
	m, _, _ := newTestMirror()

	statuses := []string{"Pending", "Approved", "Rejected", "Policy Violation", "Completed", "Pending Manager Approval"}
	for _, status := range statuses {
		m.Apply([]trip.Record{rec("t1", status)}, ModeMerge)

		found := 0
		for _, b := range trip.Buckets() {
			for _, r := range m.Bucket(b) {
				if r.ID() == "t1" {
					found++
					assert.Equal(t, trip.Classify(status), b)
				}
			}
		}
		assert.Equal(t, 1, found, "status %q", status)
	}
}

func TestMirror_MergePreservesUntouchedFields(t *testing.T) {
	m, _, _ := newTestMirror()

	m.Apply([]trip.Record{rec("t1", "Pending", "destination", "Lisbon")}, ModeMerge)
	m.Apply([]trip.Record{rec("t1", "Approved")}, ModeMerge)

	canonical := m.Canonical()
	require.Contains(t, canonical, "t1")
	assert.Equal(t, "Approved", canonical["t1"].Status())
	assert.Equal(t, "Lisbon", canonical["t1"]["destination"])
}

func TestMirror_MergeSkipsBlankIDs(t *testing.T) {
	m, _, _ := newTestMirror()

	m.Apply([]trip.Record{rec("  ", "Pending"), rec("t1", "Pending")}, ModeMerge)

	assert.Len(t, m.Canonical(), 1)
}

func TestMirror_RebuildIsFunctionOfCanonicalMap(t *testing.T) {
	m, _, _ := newTestMirror()

	// Accumulate some incremental state first.
	m.Apply([]trip.Record{rec("t1", "Pending"), rec("t2", "Approved")}, ModeMerge)

	// Rebuild with a changed status classifies from scratch.
	m.Apply([]trip.Record{rec("t1", "Approved")}, ModeRebuild)

	assert.Empty(t, bucketIDs(m, trip.BucketPending))
	ids := bucketIDs(m, trip.BucketApproved)
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids)
}

func TestMirror_FlushWritesBothShapes(t *testing.T) {
	m, store, _ := newTestMirror()

	m.Apply([]trip.Record{rec("t1", "Approved")}, ModeMerge)

	rawTrips, ok := store.Read(KeyTrips)
	require.True(t, ok)
	canonical := make(map[string]trip.Record)
	require.NoError(t, json.Unmarshal([]byte(rawTrips), &canonical))
	assert.Contains(t, canonical, "t1")

	rawBuckets, ok := store.Read(KeyBuckets)
	require.True(t, ok)
	buckets := make(map[trip.Bucket][]trip.Record)
	require.NoError(t, json.Unmarshal([]byte(rawBuckets), &buckets))
	require.Len(t, buckets[trip.BucketApproved], 1)
}

func TestMirror_SuppressionLowersOnTickNotSynchronously(t *testing.T) {
	m, store, tick := newTestMirror()

	var suppressedDuringWrite []bool
	store.Subscribe(func(key string) {
		suppressedDuringWrite = append(suppressedDuringWrite, m.Suppressed())
	})

	m.Apply([]trip.Record{rec("t1", "Pending")}, ModeMerge)

	require.Len(t, suppressedDuringWrite, 2, "both shapes written")
	assert.Equal(t, []bool{true, true}, suppressedDuringWrite)
	assert.True(t, m.Suppressed(), "still raised until the tick runs")

	tick.fire()
	assert.False(t, m.Suppressed())
}

func TestMirror_RefreshCanonicalWritesTripsOnly(t *testing.T) {
	m, store, tick := newTestMirror()

	m.Apply([]trip.Record{rec("t1", "Pending")}, ModeMerge)
	tick.fire()

	var keys []string
	store.Subscribe(func(key string) { keys = append(keys, key) })

	m.RefreshCanonical(map[string]trip.Record{"t2": rec("t2", "Approved")})

	assert.Equal(t, []string{KeyTrips}, keys)
	canonical := m.Canonical()
	assert.NotContains(t, canonical, "t1", "refresh replaces, not merges")
	assert.Contains(t, canonical, "t2")
}

func TestMirror_LoadRestoresMirroredState(t *testing.T) {
	store := NewLocalStore()
	first := NewMirror(store)
	first.Apply([]trip.Record{rec("t1", "Approved")}, ModeMerge)

	second := NewMirror(store)
	second.Load()

	assert.Contains(t, second.Canonical(), "t1")
	assert.Equal(t, []string{"t1"}, bucketIDs(second, trip.BucketApproved))
}
