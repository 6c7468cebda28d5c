// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package tracker implements the session lifecycle core: the volatile
// registry of open sessions, the create/update/end controller, startup
// crash recovery, and the periodic guardian that bounds data loss from
// ungraceful termination.
//
// Persistence policy: a session is written immediately on creation (a
// crash right after a join still leaves a recoverable record), updated in
// memory only while open (write volume is O(sessions), not O(updates)),
// and flushed in full on finalization and at guardian checkpoints.
//
// Events for different meetings are independent; events for the same
// meeting are serialized by a per-meeting mutex held across the whole
// operation, including store calls, which closes the check-then-act race
// where two concurrent first reports would create two sessions.
package tracker
