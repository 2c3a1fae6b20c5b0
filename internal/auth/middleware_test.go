// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireToken(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "valid bearer token", authHeader: "Bearer session-token-1", wantStatus: http.StatusOK},
		{name: "any non-empty token accepted", authHeader: "Bearer x", wantStatus: http.StatusOK},
		{name: "lowercase scheme accepted", authHeader: "bearer session-token-1", wantStatus: http.StatusOK},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "empty token", authHeader: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "whitespace token", authHeader: "Bearer    ", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", authHeader: "Basic YWxpY2U6cHc=", wantStatus: http.StatusUnauthorized},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			RequireToken(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), "AUTH_REQUIRED")
			}
		})
	}
}
