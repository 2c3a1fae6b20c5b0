// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// httpServer matches the *http.Server lifecycle methods the service needs,
// so tests can substitute a fake.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// ServerService adapts an HTTP server's blocking ListenAndServe to a
// context-aware Serve so it can run under a supervisor.
type ServerService struct {
	server          httpServer
	shutdownTimeout time.Duration
}

// NewServerService wraps an HTTP server for supervision. shutdownTimeout
// bounds graceful shutdown; zero or negative selects 10s.
func NewServerService(server httpServer, shutdownTimeout time.Duration) *ServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &ServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. It runs until the server fails or the
// context is cancelled, then shuts down gracefully. http.ErrServerClosed is
// expected on shutdown and not treated as a failure.
func (s *ServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The request context is already cancelled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *ServerService) String() string {
	return "http-server"
}
