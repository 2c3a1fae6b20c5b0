// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package sync

import (
	"context"
	"net/url"
	"strings"
	stdsync "sync"

	json "github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/relaywire/tripstream/internal/config"
	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/trip"
)

// wire event names, matching what the server broadcasts.
const (
	eventTripCreated = "trip:created"
	eventTripUpdated = "trip:updated"
	eventTripBulk    = "trip:bulk"
)

// Session owns one client's sync machinery: the local store the pages write
// to, the mirror, the debounced pusher and the websocket subscription.
// Construction is explicit and teardown is Close; there is no ambient state.
type Session struct {
	cfg    config.SyncConfig
	store  *LocalStore
	mirror *Mirror
	pusher *Pusher
	client *Client

	mu   stdsync.Mutex
	conn *gws.Conn
}

// NewSession builds an idle session from configuration. Start connects it.
func NewSession(cfg config.SyncConfig) *Session {
	store := NewLocalStore()
	mirror := NewMirror(store)
	client := NewClient(cfg.ServerURL)
	pusher := NewPusher(store, mirror, client, cfg.DebounceWindow)

	return &Session{
		cfg:    cfg,
		store:  store,
		mirror: mirror,
		pusher: pusher,
		client: client,
	}
}

// Store returns the local store the legacy pages read and write.
func (s *Session) Store() *LocalStore { return s.store }

// Mirror returns the reconciler holding both data shapes.
func (s *Session) Mirror() *Mirror { return s.mirror }

// Client returns the HTTP sync client.
func (s *Session) Client() *Client { return s.client }

// Start brings the session online: demo login, one full pull applied in
// rebuild mode, the change detector, and the websocket event feed. Every
// network failure degrades to offline operation on the last mirrored state;
// none of them is fatal.
func (s *Session) Start(ctx context.Context) {
	if s.cfg.Email != "" {
		if err := s.client.Login(s.cfg.Email, s.cfg.Password, ""); err != nil {
			logging.Warn().Err(err).Msg("Demo login failed, continuing without token")
		}
	}

	if records, err := s.client.FetchAll(); err != nil {
		logging.Warn().Err(err).Msg("Initial sync failed, starting offline from mirrored state")
		s.mirror.Load()
	} else {
		s.mirror.Apply(records, ModeRebuild)
	}

	s.pusher.Start()
	s.subscribe(ctx)
}

// Close tears the session down: the event feed first, then any pending push.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.pusher.Stop()
}

// subscribe dials the websocket endpoint and starts the event loop. The
// token rides a query parameter because the browser clients this mirrors
// cannot set headers on an upgrade request.
func (s *Session) subscribe(ctx context.Context) {
	wsURL, err := websocketURL(s.cfg.ServerURL, s.client.Token())
	if err != nil {
		logging.Warn().Err(err).Msg("Invalid server URL, running without event feed")
		return
	}

	conn, _, err := gws.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("Event feed unavailable, running offline")
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readEvents(conn)
}

// readEvents applies broadcast events to the mirror in merge mode until the
// connection drops.
func (s *Session) readEvents(conn *gws.Conn) {
	for {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			logging.Debug().Err(err).Msg("Event feed closed")
			return
		}

		switch msg.Type {
		case eventTripCreated, eventTripUpdated:
			var rec trip.Record
			if err := json.Unmarshal(msg.Data, &rec); err != nil {
				logging.Warn().Err(err).Str("event", msg.Type).Msg("Discarding undecodable event")
				continue
			}
			s.mirror.Apply([]trip.Record{rec}, ModeMerge)

		case eventTripBulk:
			var recs []trip.Record
			if err := json.Unmarshal(msg.Data, &recs); err != nil {
				logging.Warn().Err(err).Msg("Discarding undecodable bulk event")
				continue
			}
			s.mirror.Apply(recs, ModeMerge)
		}
	}
}

// websocketURL converts the HTTP base URL into the ws endpoint with the
// token attached.
func websocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	switch {
	case u.Scheme == "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
