// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package tracker

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/metrics"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

// GuardianConfig tunes the periodic guardian.
type GuardianConfig struct {
	// AutosaveInterval is how often open sessions are checkpointed to the
	// store. This caps the data-loss window from an ungraceful
	// termination to one interval. Default 30s.
	AutosaveInterval time.Duration

	// HeartbeatInterval is how often the liveness heartbeat fires.
	// Default 20s.
	HeartbeatInterval time.Duration

	// AutosaveRate caps session writes per second during a flush so a
	// large registry cannot burst the store. Default 20.
	AutosaveRate float64
}

func (c *GuardianConfig) applyDefaults() {
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = 30 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 20 * time.Second
	}
	if c.AutosaveRate <= 0 {
		c.AutosaveRate = 20
	}
}

// Guardian runs the two time-driven compensating controls: periodic
// auto-save of open sessions and a liveness heartbeat. It implements
// suture.Service and is restarted by the supervisor on failure.
type Guardian struct {
	controller *Controller
	cfg        GuardianConfig
	limiter    *rate.Limiter
}

// NewGuardian creates a guardian over the controller.
func NewGuardian(controller *Controller, cfg GuardianConfig) *Guardian {
	cfg.applyDefaults()
	return &Guardian{
		controller: controller,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.AutosaveRate), 1),
	}
}

// Serve implements suture.Service. It runs both tickers until the context
// is canceled. The heartbeat path touches a gauge and nothing else; it
// must never block on I/O, so it shares no code with the autosave path.
func (g *Guardian) Serve(ctx context.Context) error {
	autosave := time.NewTicker(g.cfg.AutosaveInterval)
	defer autosave.Stop()
	heartbeat := time.NewTicker(g.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			// One final checkpoint bounds loss on graceful shutdown too.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			g.controller.Flush(flushCtx, nil)
			cancel()
			return ctx.Err()
		case <-heartbeat.C:
			metrics.Beat(time.Now())
		case <-autosave.C:
			start := time.Now()
			report := g.controller.Flush(ctx, g.limiter)
			metrics.AutosaveDuration.Observe(time.Since(start).Seconds())
			outcome := "ok"
			if report.Failed > 0 {
				outcome = "partial"
			}
			metrics.AutosaveRuns.WithLabelValues(outcome).Inc()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (g *Guardian) String() string {
	return "periodic-guardian"
}

// FlushReport summarizes one auto-save cycle.
type FlushReport struct {
	Saved  int
	Failed int
}

// Flush checkpoints every registered session through the same write path
// finalization uses: open sessions are persisted without clearing their
// end state, and finalized sessions held back by an earlier write failure
// are retried and released on success. limiter, when non-nil, paces the
// per-session writes.
func (c *Controller) Flush(ctx context.Context, limiter *rate.Limiter) FlushReport {
	var report FlushReport

	c.regMu.RLock()
	type target struct{ sessionID, meetingID string }
	targets := make([]target, 0, c.registry.Len())
	for _, s := range c.registry.AllActive() {
		targets = append(targets, target{s.ID, s.MeetingID})
	}
	c.regMu.RUnlock()

	for _, t := range targets {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return report
			}
		}

		unlock := c.locks.lock(t.meetingID)
		c.regMu.RLock()
		session := c.registry.Lookup(t.sessionID)
		c.regMu.RUnlock()
		if session == nil {
			unlock() // ended between snapshot and lock
			continue
		}

		var err error
		if session.IsOpen() {
			err = c.checkpoint(ctx, session)
		} else {
			err = c.persistFinal(ctx, session)
		}
		if err != nil {
			report.Failed++
		} else {
			report.Saved++
		}
		unlock()
	}

	c.updateGauges()
	return report
}

// checkpoint persists an open session's current state without finalizing
// it. Must be called with the meeting lock held.
func (c *Controller) checkpoint(ctx context.Context, session *models.Session) error {
	err := c.gateway.PutSession(ctx, session.Clone())
	if err == nil {
		err = c.gateway.PutMinuteLogs(ctx, session.ID, session.MinuteLogs)
	}
	if err != nil {
		c.regMu.Lock()
		session.FailedToSave = true
		if session.FailedAt == 0 {
			session.FailedAt = c.now().UnixMilli()
		}
		c.regMu.Unlock()
		c.log.Warn().Err(err).
			Str("session_id", session.ID).
			Msg("session checkpoint failed")
		return err
	}
	c.regMu.Lock()
	session.FailedToSave = false
	session.FailedAt = 0
	c.regMu.Unlock()
	return nil
}
