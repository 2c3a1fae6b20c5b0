// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package trip

import "strings"

// Bucket is one of the six mutually exclusive classification categories the
// legacy pages group trips by.
type Bucket string

const (
	BucketCompleted       Bucket = "completed"
	BucketApproved        Bucket = "approved"
	BucketRejected        Bucket = "rejected"
	BucketPolicyViolation Bucket = "policy_violation"
	BucketPendingManager  Bucket = "pending_manager"
	BucketPending         Bucket = "pending"
)

// Buckets lists every bucket in classification priority order.
func Buckets() []Bucket {
	return []Bucket{
		BucketCompleted,
		BucketApproved,
		BucketRejected,
		BucketPolicyViolation,
		BucketPendingManager,
		BucketPending,
	}
}

// Classify maps a free-text status string onto its bucket. The status is
// lower-cased and tested for substring containment in fixed priority order;
// the first match wins and anything unmatched lands in pending.
//
// The order is a policy decision the page logic depends on: a status carrying
// both "manager" and "rejected" resolves to rejected because rejected's rule
// is checked first, not because either keyword is more specific.
func Classify(status string) Bucket {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "completed") || strings.Contains(s, "final"):
		return BucketCompleted
	case strings.Contains(s, "approved"):
		return BucketApproved
	case strings.Contains(s, "rejected"):
		return BucketRejected
	case strings.Contains(s, "policy"):
		return BucketPolicyViolation
	case strings.Contains(s, "manager"):
		return BucketPendingManager
	default:
		return BucketPending
	}
}
