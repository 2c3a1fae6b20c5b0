// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package trip defines the trip record shared by client and server: the record
// shape itself, the normalizer that canonicalizes raw records, and the status
// classifier that maps a free-text status string onto one of six buckets.
package trip

import (
	"strings"
	"time"
)

// Well-known record fields. Everything else a record carries is workflow data
// (quotation content, selected options, ...) and flows through merges opaquely.
const (
	FieldID        = "id"
	FieldStatus    = "status"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimeFormat is the wire format for record timestamps.
const TimeFormat = time.RFC3339Nano

// Record is a trip record: an open set of JSON-compatible fields keyed by
// string. The core interprets only id, status, createdAt and updatedAt.
type Record map[string]any

// ID returns the record's id field, or "" when absent or not a string.
func (r Record) ID() string {
	s, _ := r[FieldID].(string)
	return s
}

// Status returns the record's status field, or "" when absent.
func (r Record) Status() string {
	s, _ := r[FieldStatus].(string)
	return s
}

// CreatedAt returns the record's createdAt timestamp string, or "".
func (r Record) CreatedAt() string {
	s, _ := r[FieldCreatedAt].(string)
	return s
}

// UpdatedAt returns the record's updatedAt timestamp string, or "".
func (r Record) UpdatedAt() string {
	s, _ := r[FieldUpdatedAt].(string)
	return s
}

// CreatedTime parses createdAt; the zero time is returned for absent or
// malformed values so callers can sort without error plumbing.
func (r Record) CreatedTime() time.Time {
	t, err := time.Parse(TimeFormat, r.CreatedAt())
	if err != nil {
		return time.Time{}
	}
	return t
}

// UpdatedTime parses updatedAt, zero time on absent or malformed values.
func (r Record) UpdatedTime() time.Time {
	t, err := time.Parse(TimeFormat, r.UpdatedAt())
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MergeOver returns a new record that is the shallow union of base and over,
// with over's fields winning on conflict. Fields present in base and absent in
// over are preserved; merges never delete.
func MergeOver(base, over Record) Record {
	out := make(Record, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// TrimmedID returns the record's id with surrounding whitespace removed.
func (r Record) TrimmedID() string {
	return strings.TrimSpace(r.ID())
}
