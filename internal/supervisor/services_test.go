// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockHTTPServer implements HTTPServer for testing.
type mockHTTPServer struct {
	listenErr     error
	shutdownErr   error
	shutdownN     atomic.Int32
	listenStarted chan struct{}
	release       chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		listenStarted: make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	close(m.listenStarted)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.release
	return nil
}

func (m *mockHTTPServer) Shutdown(ctx context.Context) error {
	m.shutdownN.Add(1)
	close(m.release)
	return m.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.listenStarted
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if srv.shutdownN.Load() != 1 {
		t.Errorf("Shutdown called %d times, want 1", srv.shutdownN.Load())
	}
}

func TestHTTPServerServiceStartupFailure(t *testing.T) {
	srv := newMockHTTPServer()
	srv.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() error = nil, want startup failure")
	}
	if !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve() error = %v, want wrapped %v", err, srv.listenErr)
	}
}

// mockGC implements GarbageCollector.
type mockGC struct {
	runs atomic.Int32
	err  error
}

func (m *mockGC) RunGC(discardRatio float64) error {
	m.runs.Add(1)
	return m.err
}

func TestStoreGCServiceRunsPeriodically(t *testing.T) {
	gc := &mockGC{}
	svc := NewStoreGCService(gc, 10*time.Millisecond, 0.5)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want deadline exceeded", err)
	}
	if gc.runs.Load() == 0 {
		t.Error("RunGC was never invoked")
	}
}

func TestStoreGCServiceReturnsOnFailure(t *testing.T) {
	gc := &mockGC{err: errors.New("disk gone")}
	svc := NewStoreGCService(gc, 5*time.Millisecond, 0.5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := svc.Serve(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want gc failure", err)
	}
}

func TestTreeBuildsAndStops(t *testing.T) {
	tree := NewTree(testSlogLogger(), DefaultTreeConfig())
	if tree.Root() == nil {
		t.Fatal("Root() = nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor tree did not stop after cancel")
	}
}
