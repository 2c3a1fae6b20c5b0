// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package auth

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/relaywire/tripstream/internal/logging"
)

// RequireToken gates a handler behind a bearer token. Any non-empty token is
// accepted; the check is presence, not validity. Requests without one get 401.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			logging.Debug().
				Str("path", r.URL.Path).
				Msg("Rejected request without bearer token")
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
// Returns "" when the header is missing or not bearer-shaped.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "AUTH_REQUIRED",
			"message": "Authorization required",
		},
	})
}
