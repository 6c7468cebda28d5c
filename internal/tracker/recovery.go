// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package tracker

import (
	"context"
	"errors"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/metrics"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/store"
)

// RecoveryReport summarizes one recovery pass.
type RecoveryReport struct {
	Restored int `json:"restored"`
	Cleaned  int `json:"cleaned"`
}

// Recover reconciles persisted open sessions with the registry. It runs
// once at startup, before the controller is exposed to events, and is
// idempotent if re-invoked: sessions already registered are skipped.
//
// Open sessions younger than the recovery window are rehydrated as active
// so the next presence report updates them instead of duplicating them.
// Older ones are orphans from a previous process life and are finalized
// as stale; their end time is the last recorded update when available,
// which is a closer approximation of the true leave time than the
// recovery moment.
func (c *Controller) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	open, err := c.gateway.OpenSessions(ctx)
	if errors.Is(err, store.ErrStoreUnavailable) {
		c.log.Warn().Msg("store unavailable, skipping recovery")
		return report, nil
	}
	if err != nil {
		return report, err
	}

	nowMillis := c.now().UnixMilli()
	windowMillis := c.cfg.RecoveryWindow.Milliseconds()

	for _, session := range open {
		unlock := c.locks.lock(session.MeetingID)

		c.regMu.RLock()
		already := c.registry.LookupActive(session.MeetingID)
		c.regMu.RUnlock()
		if already != nil {
			unlock()
			continue
		}

		if nowMillis-session.StartTime < windowMillis {
			session.RestoredFromStorage = true
			if logs, err := c.gateway.MinuteLogs(ctx, session.ID); err == nil {
				session.MinuteLogs = logs
			}
			c.regMu.Lock()
			c.registry.Insert(session)
			c.regMu.Unlock()
			metrics.SessionsRestored.Inc()
			report.Restored++
			c.log.Info().
				Str("meeting_id", session.MeetingID).
				Str("session_id", session.ID).
				Msg("restored open session from storage")
			unlock()
			continue
		}

		endMillis := session.LastUpdated
		if endMillis <= session.StartTime {
			endMillis = nowMillis
		}
		session.Finalize(endMillis, models.EndReasonStaleCleanup)
		// Register transiently so persistFinal's bookkeeping sees it like
		// any other finalization; on write failure it stays for retry.
		c.regMu.Lock()
		c.registry.Insert(session)
		c.regMu.Unlock()
		if err := c.persistFinal(ctx, session); err != nil {
			c.log.Warn().Err(err).
				Str("session_id", session.ID).
				Msg("stale session cleanup write failed, retained for retry")
		} else {
			report.Cleaned++
		}
		unlock()
	}

	c.updateGauges()
	c.log.Info().
		Int("restored", report.Restored).
		Int("cleaned", report.Cleaned).
		Msg("recovery complete")
	return report, nil
}
