// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package trip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status string
		want   Bucket
	}{
		{"Completed", BucketCompleted},
		{"Trip Finalized", BucketCompleted},
		{"FINAL review done", BucketCompleted},
		{"Approved", BucketApproved},
		{"approved by finance", BucketApproved},
		{"Rejected", BucketRejected},
		{"Policy Violation", BucketPolicyViolation},
		{"Waiting for Manager", BucketPendingManager},
		{"Pending", BucketPending},
		{"", BucketPending},
		{"draft", BucketPending},
		{"something unknown", BucketPending},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status))
		})
	}
}

// The rule order is load-bearing: a status matching several keywords resolves
// by position in the fixed list, not by keyword specificity.
func TestClassify_PriorityOrder(t *testing.T) {
	tests := []struct {
		status string
		want   Bucket
	}{
		{"Pending Manager Approval - Rejected", BucketRejected},
		{"Manager Approved", BucketApproved},
		{"Approved but Completed", BucketCompleted},
		{"policy review by manager", BucketPolicyViolation},
		{"rejected for policy violation", BucketRejected},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	statuses := []string{"Pending Manager Approval - Rejected", "Approved", "", "Completed"}
	for _, s := range statuses {
		first := Classify(s)
		for i := 0; i < 100; i++ {
			assert.Equal(t, first, Classify(s))
		}
	}
}

func TestBuckets_Disjoint(t *testing.T) {
	seen := map[Bucket]bool{}
	for _, b := range Buckets() {
		assert.False(t, seen[b], "bucket %s listed twice", b)
		seen[b] = true
	}
	assert.Len(t, seen, 6)
}
