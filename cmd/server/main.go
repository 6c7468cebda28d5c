// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Command server runs the Meet Tracker service: the presence session
// controller, the embedded BadgerDB store, and the HTTP/WebSocket API,
// all under a Suture supervisor tree.
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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/aggregate"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/api"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/auth"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/config"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/events"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/logging"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/store"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/supervisor"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/tracker"
	ws "github.com/sarmadmakhdoom/meet-tracker-sub000/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Dur("recovery_window", cfg.Tracker.RecoveryWindow).
		Msg("Configuration loaded")

	// Open the store. A storage failure degrades the service instead of
	// killing it: sessions keep tracking in memory and the guardian
	// retries persistence once the store recovers.
	st, err := store.Open(cfg.Database.Path, store.Options{
		RetryAttempts: cfg.Database.RetryAttempts,
		RetryDelay:    cfg.Database.RetryDelay,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open store, continuing without persistence")
		st = store.Unavailable()
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// In-process pub/sub for session lifecycle events.
	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewStdLogger(false, false))
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	registry := tracker.NewRegistry()
	controller := tracker.NewController(registry, st, bus, tracker.Config{
		RecoveryWindow:  cfg.Tracker.RecoveryWindow,
		FailedSaveGrace: cfg.Tracker.FailedSaveGrace,
	})

	// Recover persisted open sessions before any inbound event can create
	// new ones, so a presence report after restart resumes the old session
	// instead of forking a duplicate.
	recoverCtx, recoverCancel := context.WithTimeout(context.Background(), 30*time.Second)
	report, err := controller.Recover(recoverCtx)
	recoverCancel()
	if err != nil {
		logging.Warn().Err(err).Msg("Session recovery incomplete")
	}
	logging.Info().
		Int("restored", report.Restored).
		Int("cleaned", report.Cleaned).
		Msg("Session recovery finished")

	engine := aggregate.NewEngine(st)
	dispatcher := events.NewDispatcher(controller, engine)
	authMgr := auth.New(auth.Config{
		Mode:              cfg.Security.AuthMode,
		JWTSecret:         cfg.Security.JWTSecret,
		AdminUsername:     cfg.Security.AdminUsername,
		AdminPasswordHash: cfg.Security.AdminPasswordHash,
		SessionTimeout:    cfg.Security.SessionTimeout,
	})

	hub := ws.NewHub()
	relay := ws.NewRelay(hub, bus)
	guardian := tracker.NewGuardian(controller, tracker.GuardianConfig{
		AutosaveInterval:  cfg.Tracker.AutosaveInterval,
		HeartbeatInterval: cfg.Tracker.HeartbeatInterval,
		AutosaveRate:      cfg.Tracker.AutosaveRate,
	})

	router := api.NewRouter(dispatcher, controller, engine, authMgr, hub, st, api.Options{
		RateLimitReqs:   cfg.Security.RateLimitReqs,
		RateLimitWindow: cfg.Security.RateLimitWindow,
		CORSOrigins:     cfg.Security.CORSOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	// Build the supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if st.Available() {
		tree.AddDataService(supervisor.NewStoreGCService(st, cfg.Database.GCInterval, cfg.Database.GCDiscardRatio))
	}
	tree.AddTrackerService(guardian)
	tree.AddTrackerService(hub)
	tree.AddTrackerService(relay)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stopped gracefully")
}
