// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package store

import "errors"

var (
	// ErrInvalidID is returned when a mutation names a blank or unusable id.
	ErrInvalidID = errors.New("trip id is missing or blank")

	// ErrNotFound is returned by direct single-record lookups for unknown ids.
	// Writes never return it: unknown ids upsert.
	ErrNotFound = errors.New("trip not found")
)
