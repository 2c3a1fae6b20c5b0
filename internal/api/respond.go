// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/relaywire/tripstream/internal/logging"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes v as the JSON response body with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes a structured error response. A non-nil err is logged
// but never exposed to the client.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}

	respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
