// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package main runs a headless sync agent: one client session holding a
// local mirror of the trip data, pushing local writes to the server and
// applying broadcast events. Useful for smoke-testing a deployment and as a
// reference embedding of the sync session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaywire/tripstream/internal/config"
	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/sync"
)

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
	logging.Info().Str("server", cfg.Sync.ServerURL).Msg("Starting sync agent")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := sync.NewSession(cfg.Sync)
	session.Start(ctx)
	defer session.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logging.Info().Str("signal", sig.String()).Msg("Shutting down sync agent")
}
