// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package api provides the HTTP surface: demo login, trip CRUD, bulk upsert,
// health and the realtime websocket endpoint, routed with chi.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/relaywire/tripstream/internal/auth"
	"github.com/relaywire/tripstream/internal/config"
	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/store"
	"github.com/relaywire/tripstream/internal/trip"
	"github.com/relaywire/tripstream/internal/validation"
	ws "github.com/relaywire/tripstream/internal/websocket"
)

// defaultRole is assigned when a login request carries no role.
const defaultRole = "traveler"

// Handler owns the HTTP endpoints. All trip state flows through the
// repository; the hub only receives what the repository broadcasts.
type Handler struct {
	cfg  *config.Config
	repo *store.Repository
	hub  *ws.Hub
	jwt  *auth.JWTManager
}

// NewHandler wires the endpoint dependencies together.
func NewHandler(cfg *config.Config, repo *store.Repository, hub *ws.Hub, jwt *auth.JWTManager) *Handler {
	return &Handler{cfg: cfg, repo: repo, hub: hub, jwt: jwt}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// loginRequest is the demo login body. Role is optional.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// loginResponse carries the signed token and the account it identifies.
type loginResponse struct {
	Token string       `json:"token"`
	User  loginAccount `json:"user"`
}

type loginAccount struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login authenticates a demo account. Any password is accepted once present;
// the account is registered (or refreshed) with its bcrypt hash so the
// durable document never stores the plaintext.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", err)
		return
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), nil)
		return
	}

	if req.Password == "" {
		respondError(w, http.StatusUnauthorized, "MISSING_PASSWORD", "Password is required", nil)
		return
	}

	role := req.Role
	if role == "" {
		role = defaultRole
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process credentials", err)
		return
	}
	acct := h.repo.RegisterAccount(req.Email, role, hash)

	token, err := h.jwt.GenerateToken(acct.Email, acct.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", err)
		return
	}

	logging.Info().Str("email", acct.Email).Str("role", acct.Role).Msg("Demo login")
	respondJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  loginAccount{Email: acct.Email, Role: acct.Role},
	})
}

// ListTrips returns all records, newest createdAt first.
func (h *Handler) ListTrips(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.repo.List())
}

// GetTrip returns a single record by id.
func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	rec, err := h.repo.Get(chi.URLParam(r, "id"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, rec)
	case errors.Is(err, store.ErrInvalidID):
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Trip id is required", nil)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Trip not found", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch trip", err)
	}
}

// CreateTrip creates or replaces a record. An absent id is generated; a
// present-but-blank one is rejected.
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var rec trip.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", err)
		return
	}

	normalized, _, err := h.repo.Upsert(rec)
	if err != nil {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Trip id must not be blank", nil)
		return
	}

	respondJSON(w, http.StatusOK, normalized)
}

// PatchTrip applies a partial update. An unknown id creates the record.
func (h *Handler) PatchTrip(w http.ResponseWriter, r *http.Request) {
	var fields trip.Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", err)
		return
	}

	normalized, err := h.repo.Patch(chi.URLParam(r, "id"), fields)
	if err != nil {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Trip id is required", nil)
		return
	}

	respondJSON(w, http.StatusOK, normalized)
}

// bulkRequest is the batch upsert body.
type bulkRequest struct {
	Trips []trip.Record `json:"trips"`
}

// BulkUpsert applies a batch in one mutation. Invalid entries are skipped
// silently; the response reports how many were applied.
func (h *Handler) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", err)
		return
	}

	applied := h.repo.BulkUpsert(req.Trips)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "upserted": len(applied)})
}

// WebSocket upgrades the connection and registers the client with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Realtime channel unavailable", nil)
		return
	}

	upgrader := gws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkWebSocketOrigin validates browser origins against the CORS allowlist.
// Requests without an Origin header are non-browser clients (the sync agent)
// and are allowed through; the bearer gate already covered them.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.cfg == nil {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
