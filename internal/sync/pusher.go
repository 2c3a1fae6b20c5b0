// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package sync

import (
	stdsync "sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/trip"
)

// Pusher watches the local store for mirror-key writes and ships a merged
// snapshot to the server after a quiet period. Each qualifying write resets
// the pending timer, so a burst of writes produces exactly one push, timed
// from the last write in the burst.
type Pusher struct {
	store  *LocalStore
	mirror *Mirror
	client *Client
	window time.Duration

	mu    stdsync.Mutex
	timer *time.Timer
}

// NewPusher wires a pusher to the store it observes and the client it pushes
// through. Call Start to begin observing.
func NewPusher(store *LocalStore, mirror *Mirror, client *Client, window time.Duration) *Pusher {
	return &Pusher{store: store, mirror: mirror, client: client, window: window}
}

// Start subscribes to store writes.
func (p *Pusher) Start() {
	p.store.Subscribe(p.onWrite)
}

// Stop cancels any pending push. Writes after Stop still reschedule; the
// session closes the store's writers before calling it.
func (p *Pusher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// onWrite is the change detector: mirror keys only, and never while the
// mirror is writing its own state back.
func (p *Pusher) onWrite(key string) {
	if key != KeyTrips && key != KeyBuckets {
		return
	}
	if p.mirror.Suppressed() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.window, p.push)
}

// push merges both mirror shapes into one snapshot, settles the canonical
// map on it, then ships it as a bulk upsert. A validation failure is logged;
// an unreachable server is swallowed entirely, leaving the client in a
// locally-consistent offline state until the next qualifying write.
func (p *Pusher) push() {
	p.mu.Lock()
	p.timer = nil
	p.mu.Unlock()

	merged := p.snapshot()
	if len(merged) == 0 {
		return
	}

	p.mirror.RefreshCanonical(merged)

	records := make([]trip.Record, 0, len(merged))
	for _, rec := range merged {
		records = append(records, rec)
	}

	result := p.client.BulkUpsert(records)
	switch result.Status {
	case StatusOK:
		logging.Debug().Int("upserted", result.Upserted).Msg("Pushed snapshot")
	case StatusValidationError:
		logging.Warn().Err(result.Err).Msg("Server rejected pushed snapshot")
	case StatusUnreachable:
		logging.Debug().Err(result.Err).Msg("Server unreachable, staying offline")
	}
}

// snapshot reads both mirror shapes from the store and merges them into one
// id-to-record map. Bucket entries shallow-merge over canonical entries for
// the same id: the bucket lists carry the page's latest edits.
func (p *Pusher) snapshot() map[string]trip.Record {
	merged := make(map[string]trip.Record)

	if raw, ok := p.store.Read(KeyTrips); ok {
		canonical := make(map[string]trip.Record)
		if err := json.Unmarshal([]byte(raw), &canonical); err != nil {
			logging.Warn().Err(err).Msg("Skipping unreadable canonical shape")
		} else {
			for id, rec := range canonical {
				merged[id] = rec
			}
		}
	}

	if raw, ok := p.store.Read(KeyBuckets); ok {
		buckets := make(map[trip.Bucket][]trip.Record)
		if err := json.Unmarshal([]byte(raw), &buckets); err != nil {
			logging.Warn().Err(err).Msg("Skipping unreadable bucket shape")
		} else {
			for _, list := range buckets {
				for _, rec := range list {
					id := rec.TrimmedID()
					if id == "" {
						continue
					}
					merged[id] = trip.MergeOver(merged[id], rec)
				}
			}
		}
	}

	return merged
}
