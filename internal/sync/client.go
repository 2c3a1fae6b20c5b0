// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package sync

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	stdsync "sync"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/metrics"
	"github.com/relaywire/tripstream/internal/trip"
)

// PushStatus classifies the outcome of a push so the caller can stay silent
// on network failure while the distinction remains testable.
type PushStatus string

const (
	StatusOK              PushStatus = "ok"
	StatusValidationError PushStatus = "validationError"
	StatusUnreachable     PushStatus = "unreachable"
)

// PushResult is the outcome of a bulk upsert attempt.
type PushResult struct {
	Status   PushStatus
	Upserted int
	Err      error
}

// ErrUnreachable wraps any transport-level failure, including an open
// circuit breaker.
var ErrUnreachable = errors.New("server unreachable")

// Client is the thin HTTP wrapper: bearer attachment, error normalization
// and a circuit breaker so a dead server is not hammered on every debounce
// window.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]

	mu    stdsync.Mutex
	token string
}

// NewClient creates a sync client for the given server base URL.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "sync-client",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A 4xx means the server was reachable and answered; only transport
		// failures should open the circuit.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var verr *validationError
			return errors.As(err, &verr)
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.SyncBreakerState.Set(breakerStateValue(to))
			logging.Info().Str("state", to.String()).Msg("Sync circuit breaker state change")
		},
	})

	return c
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// SetToken installs the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Login authenticates against the demo login endpoint and installs the
// returned token.
func (c *Client) Login(email, password, role string) error {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
		"role":     role,
	})
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.SetToken(out.Token)
	return nil
}

// FetchAll pulls the complete record list for the initial full sync.
func (c *Client) FetchAll() ([]trip.Record, error) {
	data, err := c.do(http.MethodGet, "/api/trips", nil)
	if err != nil {
		return nil, err
	}

	var records []trip.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode trip list: %w", err)
	}
	return records, nil
}

// BulkUpsert ships a snapshot to the server and normalizes the outcome into
// the push taxonomy. Transport failures and an open breaker both map to
// unreachable; a 4xx response maps to validationError.
func (c *Client) BulkUpsert(records []trip.Record) PushResult {
	body, err := json.Marshal(map[string]any{"trips": records})
	if err != nil {
		metrics.SyncPushes.WithLabelValues(string(StatusValidationError)).Inc()
		return PushResult{Status: StatusValidationError, Err: err}
	}

	data, err := c.do(http.MethodPost, "/api/trips/bulk", body)
	if err != nil {
		var verr *validationError
		if errors.As(err, &verr) {
			metrics.SyncPushes.WithLabelValues(string(StatusValidationError)).Inc()
			return PushResult{Status: StatusValidationError, Err: verr}
		}
		metrics.SyncPushes.WithLabelValues(string(StatusUnreachable)).Inc()
		return PushResult{Status: StatusUnreachable, Err: err}
	}

	var out struct {
		Upserted int `json:"upserted"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		metrics.SyncPushes.WithLabelValues(string(StatusValidationError)).Inc()
		return PushResult{Status: StatusValidationError, Err: err}
	}

	metrics.SyncPushes.WithLabelValues(string(StatusOK)).Inc()
	return PushResult{Status: StatusOK, Upserted: out.Upserted}
}

// validationError marks a 4xx response so BulkUpsert can distinguish it from
// transport failure.
type validationError struct {
	status int
	body   string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("server rejected request with status %d: %s", e.status, e.body)
}

// do runs one request through the circuit breaker and returns the response
// body. 4xx responses surface as *validationError and count as breaker
// successes; the server was reachable and answered.
func (c *Client) do(method, path string, body []byte) ([]byte, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequest(method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
		}

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: server returned status %d", ErrUnreachable, resp.StatusCode)
		}
		return data, checkClientError(resp.StatusCode, data)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		return nil, err
	}
	return data, nil
}

func checkClientError(status int, body []byte) error {
	if status >= 400 && status < 500 {
		return &validationError{status: status, body: string(body)}
	}
	return nil
}
