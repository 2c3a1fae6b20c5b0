// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package sync

import (
	"sort"
	stdsync "sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/trip"
)

// Mode selects how Apply updates the bucket lists.
type Mode int

const (
	// ModeMerge upserts each record and moves it to its target bucket.
	ModeMerge Mode = iota
	// ModeRebuild recomputes every bucket from the canonical map. Used only
	// for a full initial sync, so bucket state is an exact function of the
	// canonical map rather than an accumulation of incremental edits.
	ModeRebuild
)

// Mirror holds the two client-side views of the trip data: the canonical map
// (id to record) and the bucket lists (bucket to most-recent-first records).
// A record appears in exactly one bucket, the one its current status
// classifies to. Both shapes are written back to the LocalStore after every
// change, with the suppression flag raised so the write does not re-trigger
// the push pipeline.
type Mirror struct {
	store *LocalStore

	mu        stdsync.Mutex
	canonical map[string]trip.Record
	buckets   map[trip.Bucket][]trip.Record

	suppressed atomic.Bool
	tick       func(func())
}

// MirrorOption adjusts mirror construction.
type MirrorOption func(*Mirror)

// WithTick replaces the scheduler used to lower the suppression flag. The
// default defers to the next timer tick; tests inject a manual scheduler.
func WithTick(tick func(func())) MirrorOption {
	return func(m *Mirror) { m.tick = tick }
}

// NewMirror creates an empty mirror writing through to store.
func NewMirror(store *LocalStore, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		store:     store,
		canonical: make(map[string]trip.Record),
		buckets:   make(map[trip.Bucket][]trip.Record),
		tick: func(fn func()) {
			time.AfterFunc(0, fn)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Suppressed reports whether the mirror is currently writing its own state
// back to the store. The change detector skips writes made under this flag.
func (m *Mirror) Suppressed() bool {
	return m.suppressed.Load()
}

// Apply integrates incoming records. In merge mode each record is upserted
// into the canonical map (shallow merge over the existing entry), removed
// from every bucket list and inserted at the front of its target bucket. In
// rebuild mode all bucket lists are recomputed from the canonical map.
func (m *Mirror) Apply(records []trip.Record, mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		id := rec.TrimmedID()
		if id == "" {
			continue
		}
		merged := trip.MergeOver(m.canonical[id], rec)
		m.canonical[id] = merged

		if mode == ModeMerge {
			m.moveToBucketLocked(merged)
		}
	}

	if mode == ModeRebuild {
		m.rebuildBucketsLocked()
	}

	m.flushLocked(true)
}

// RefreshCanonical replaces the canonical map and writes it back through the
// suppressed path. The pusher uses this to settle the canonical shape on the
// merged snapshot it is about to ship; bucket lists are left untouched.
func (m *Mirror) RefreshCanonical(records map[string]trip.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	canonical := make(map[string]trip.Record, len(records))
	for id, rec := range records {
		canonical[id] = rec.Clone()
	}
	m.canonical = canonical

	m.flushLocked(false)
}

// Load restores both shapes from the store, for offline startup when the
// server cannot be reached. Missing or malformed state leaves the mirror
// empty.
func (m *Mirror) Load() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if raw, ok := m.store.Read(KeyTrips); ok {
		canonical := make(map[string]trip.Record)
		if err := json.Unmarshal([]byte(raw), &canonical); err == nil {
			m.canonical = canonical
		} else {
			logging.Warn().Err(err).Msg("Discarding unreadable mirrored trips")
		}
	}

	if raw, ok := m.store.Read(KeyBuckets); ok {
		buckets := make(map[trip.Bucket][]trip.Record)
		if err := json.Unmarshal([]byte(raw), &buckets); err == nil {
			m.buckets = buckets
		} else {
			logging.Warn().Err(err).Msg("Discarding unreadable mirrored buckets")
		}
	}
}

// Canonical returns a copy of the canonical map.
func (m *Mirror) Canonical() map[string]trip.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]trip.Record, len(m.canonical))
	for id, rec := range m.canonical {
		out[id] = rec.Clone()
	}
	return out
}

// Bucket returns a copy of one bucket list, most recent first.
func (m *Mirror) Bucket(b trip.Bucket) []trip.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.buckets[b]
	out := make([]trip.Record, len(list))
	for i, rec := range list {
		out[i] = rec.Clone()
	}
	return out
}

// moveToBucketLocked removes rec's id from every bucket list and inserts the
// record at the front of the bucket its status classifies to.
func (m *Mirror) moveToBucketLocked(rec trip.Record) {
	id := rec.TrimmedID()
	for bucket, list := range m.buckets {
		filtered := list[:0]
		for _, existing := range list {
			if existing.TrimmedID() != id {
				filtered = append(filtered, existing)
			}
		}
		m.buckets[bucket] = filtered
	}

	target := trip.Classify(rec.Status())
	m.buckets[target] = append([]trip.Record{rec}, m.buckets[target]...)
}

// rebuildBucketsLocked recomputes every bucket from the canonical map,
// newest updatedAt first.
func (m *Mirror) rebuildBucketsLocked() {
	records := make([]trip.Record, 0, len(m.canonical))
	for _, rec := range m.canonical {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		ti, tj := records[i].UpdatedTime(), records[j].UpdatedTime()
		if ti.Equal(tj) {
			return records[i].TrimmedID() < records[j].TrimmedID()
		}
		return ti.After(tj)
	})

	m.buckets = make(map[trip.Bucket][]trip.Record)
	for _, rec := range records {
		target := trip.Classify(rec.Status())
		m.buckets[target] = append(m.buckets[target], rec)
	}
}

// flushLocked writes the mirror state back to the store under suppression.
// The flag is lowered on the next scheduling tick, not synchronously, so any
// synchronous reaction to the write completes while it is still raised.
func (m *Mirror) flushLocked(includeBuckets bool) {
	trips, err := json.Marshal(m.canonical)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode mirrored trips")
		return
	}

	var buckets []byte
	if includeBuckets {
		if buckets, err = json.Marshal(m.buckets); err != nil {
			logging.Error().Err(err).Msg("Failed to encode mirrored buckets")
			return
		}
	}

	m.suppressed.Store(true)
	m.store.Write(KeyTrips, string(trips))
	if includeBuckets {
		m.store.Write(KeyBuckets, string(buckets))
	}
	m.tick(func() {
		m.suppressed.Store(false)
	})
}
