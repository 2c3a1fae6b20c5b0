// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package trip

import "time"

// Normalize canonicalizes a raw record against the previously stored version.
//
// The result is the shallow merge of prev and input (input wins on conflict)
// with the bookkeeping fields forced:
//   - id is the trimmed input id (prev's id when the input carries none),
//   - createdAt is prev's createdAt, falling back to the input's, falling back
//     to now — set once, never rewritten,
//   - updatedAt is always refreshed, even when no other field changed.
//
// updatedAt strictly advances per record: when now does not move past the
// previous updatedAt (same-instant normalization passes), the previous value
// is bumped by one nanosecond instead.
//
// Normalize reports false when no non-blank id can be resolved; the record is
// rejected and the returned Record is nil.
func Normalize(prev, input Record, now time.Time) (Record, bool) {
	id := input.TrimmedID()
	if id == "" {
		id = prev.TrimmedID()
	}
	if id == "" {
		return nil, false
	}

	out := MergeOver(prev, input)
	out[FieldID] = id

	createdAt := prev.CreatedAt()
	if createdAt == "" {
		createdAt = input.CreatedAt()
	}
	if createdAt == "" {
		createdAt = now.UTC().Format(TimeFormat)
	}
	out[FieldCreatedAt] = createdAt

	updatedAt := now.UTC()
	if last := prev.UpdatedTime(); !last.Before(updatedAt) {
		updatedAt = last.Add(time.Nanosecond)
	}
	out[FieldUpdatedAt] = updatedAt.Format(TimeFormat)

	return out, true
}
