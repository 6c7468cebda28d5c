// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package metrics exposes Prometheus collectors for the tracker core:
// session lifecycle, store health, guardian cycles, and the liveness
// heartbeat.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meettracker_sessions_started_total",
			Help: "Total number of presence sessions created",
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meettracker_sessions_ended_total",
			Help: "Total number of presence sessions finalized",
		},
		[]string{"reason"},
	)

	SessionsRestored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meettracker_sessions_restored_total",
			Help: "Open sessions rehydrated into the registry at startup",
		},
	)

	OpenSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meettracker_open_sessions",
			Help: "Current number of open sessions in the registry",
		},
	)

	PresenceReports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meettracker_presence_reports_total",
			Help: "Total presence reports processed",
		},
	)

	MinuteLogsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meettracker_minute_logs_total",
			Help: "Total minute-log snapshots recorded",
		},
	)

	// Store health
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meettracker_store_writes_total",
			Help: "Store write attempts by record type and outcome",
		},
		[]string{"record", "outcome"}, // outcome: "ok", "error"
	)

	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meettracker_store_write_duration_seconds",
			Help:    "Duration of store writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"record"},
	)

	StoreDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meettracker_store_degraded",
			Help: "1 when the store circuit breaker is open and the service runs registry-only",
		},
	)

	FailedSaves = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meettracker_failed_save_sessions",
			Help: "Sessions held in the registry because their finalization write failed",
		},
	)

	// Guardian
	AutosaveRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meettracker_autosave_runs_total",
			Help: "Guardian auto-save cycles by outcome",
		},
		[]string{"outcome"},
	)

	AutosaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meettracker_autosave_duration_seconds",
			Help:    "Duration of one guardian auto-save cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HeartbeatTimestamp proves the process is still scheduled. The
	// heartbeat carries no business logic and must never block on I/O.
	HeartbeatTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meettracker_heartbeat_timestamp_seconds",
			Help: "Unix time of the last liveness heartbeat",
		},
	)

	// WebSocket hub
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meettracker_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)
)

// Beat records a liveness heartbeat.
func Beat(now time.Time) {
	HeartbeatTimestamp.Set(float64(now.Unix()))
}

// ObserveStoreWrite records one store write attempt.
func ObserveStoreWrite(record string, start time.Time, err error) {
	StoreWriteDuration.WithLabelValues(record).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreWrites.WithLabelValues(record, outcome).Inc()
}
