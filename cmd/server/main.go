// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package main is the Tripstream server entry point.
//
// The server owns the authoritative trip map: every mutation runs through
// normalize, store, synchronous persist and broadcast, in that order, and the
// websocket hub fans the resulting events out to every connected client.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, optional YAML file, environment)
//  2. Logging (zerolog)
//  3. Durable document store (badger)
//  4. Repository restore from the last snapshot
//  5. Supervisor tree: websocket hub, then the HTTP server
//
// Shutdown is graceful on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/relaywire/tripstream/internal/api"
	"github.com/relaywire/tripstream/internal/auth"
	"github.com/relaywire/tripstream/internal/config"
	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/store"
	ws "github.com/relaywire/tripstream/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("addr", listenAddr(cfg)).Msg("Starting Tripstream server")

	persister, err := store.OpenBadger(cfg.Storage.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open document store")
	}
	defer func() {
		if err := persister.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close document store")
		}
	}()

	hub := ws.NewHub()
	repo := store.NewRepository(persister, hub)
	if err := repo.Restore(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to restore document snapshot")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	handler := api.NewHandler(cfg, repo, hub, jwtManager)
	server := &http.Server{
		Addr:         listenAddr(cfg),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	// The hub runs beside the HTTP server under one supervisor; a crash in
	// either is restarted without taking the other down.
	hook := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("tripstream", suture.Spec{
		EventHook: hook.MustHook(),
		Timeout:   shutdownTimeout,
	})
	root.Add(hub)
	root.Add(api.NewServerService(server, shutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := root.ServeBackground(ctx)
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor error")
	}

	logging.Info().Msg("Server stopped gracefully")
}

func listenAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
