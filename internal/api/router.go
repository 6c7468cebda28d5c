// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package api exposes the inbound event protocol and the reporting reads
// over HTTP using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/aggregate"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/auth"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/events"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/tracker"
	ws "github.com/sarmadmakhdoom/meet-tracker-sub000/internal/websocket"
)

// StoreStatus reports whether the durable layer can serve writes.
// *store.Store satisfies it.
type StoreStatus interface {
	Available() bool
}

// Options configures the router.
type Options struct {
	RateLimitReqs   int
	RateLimitWindow time.Duration
	CORSOrigins     []string
}

func (o *Options) applyDefaults() {
	if o.RateLimitReqs <= 0 {
		o.RateLimitReqs = 100
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Minute
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
}

// Router holds the HTTP surface's collaborators.
type Router struct {
	dispatcher *events.Dispatcher
	controller *tracker.Controller
	engine     *aggregate.Engine
	authMgr    *auth.Manager
	hub        *ws.Hub
	status     StoreStatus
	opts       Options
}

// NewRouter wires the HTTP surface.
func NewRouter(dispatcher *events.Dispatcher, controller *tracker.Controller, engine *aggregate.Engine, authMgr *auth.Manager, hub *ws.Hub, status StoreStatus, opts Options) *Router {
	opts.applyDefaults()
	return &Router{
		dispatcher: dispatcher,
		controller: controller,
		engine:     engine,
		authMgr:    authMgr,
		hub:        hub,
		status:     status,
		opts:       opts,
	}
}

// Setup builds the route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints get a permissive limit so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", rt.handleHealthLive)
		r.Get("/ready", rt.handleHealthReady)
		r.Get("/", rt.handleHealth)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Login is rate limited hard to slow brute forcing.
	r.With(httprate.LimitByIP(5, 5*time.Minute)).
		Post("/api/v1/auth/login", rt.handleLogin)

	// Event protocol and reads.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.opts.RateLimitReqs, rt.opts.RateLimitWindow))
		r.Use(rt.authMgr.Middleware)

		r.Post("/events", rt.handleEvent)
		r.Get("/sessions/active", rt.handleActiveSessions)
		r.Get("/meetings/aggregated", rt.handleAggregatedMeetings)
		r.Get("/ws", rt.hub.ServeHTTP)

		// Administrative operations.
		r.Post("/admin/end-all", rt.handleForceEndAll)
		r.Delete("/meetings/{meetingID}", rt.handleDeleteMeeting)
		r.Delete("/sessions/{sessionID}", rt.handleDeleteSession)
	})

	return r
}
