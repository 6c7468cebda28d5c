// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches *http.Server's lifecycle methods so the wrapper can
// be tested with a mock.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService wraps an HTTP server as a supervised service. It
// translates http.Server's blocking ListenAndServe into suture's
// context-aware Serve: the server runs in a goroutine and a context
// cancellation triggers a graceful Shutdown.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService creates an HTTP server service wrapper.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. http.ErrServerClosed is converted to
// nil since it is expected on shutdown.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		// The original context is canceled, use a fresh one for shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (h *HTTPServerService) String() string {
	return h.name
}

// GarbageCollector matches the store's value-log GC method.
type GarbageCollector interface {
	RunGC(discardRatio float64) error
}

// StoreGCService periodically runs value-log garbage collection on the
// underlying key-value store.
type StoreGCService struct {
	gc           GarbageCollector
	interval     time.Duration
	discardRatio float64
	name         string
}

// NewStoreGCService creates a GC service. A zero interval defaults to
// 10 minutes and a zero ratio to 0.5.
func NewStoreGCService(gc GarbageCollector, interval time.Duration, discardRatio float64) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if discardRatio <= 0 {
		discardRatio = 0.5
	}
	return &StoreGCService{
		gc:           gc,
		interval:     interval,
		discardRatio: discardRatio,
		name:         "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// ErrNoRewrite is normal when there is nothing to collect.
			// RunGC filters it out, any other error is worth a restart.
			if err := s.gc.RunGC(s.discardRatio); err != nil {
				return fmt.Errorf("store gc failed: %w", err)
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *StoreGCService) String() string {
	return s.name
}
