// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package store is the persistence gateway: a BadgerDB-backed key/value
// layer with secondary indexes over the four record collections (meetings,
// sessions, minute logs, participant aggregates). It owns no business
// logic.
//
// Key layout:
//
//	meeting:<meetingId>                      Meeting record
//	session:<sessionId>                      Session record (minute logs excluded)
//	session_meeting:<meetingId>:<sessionId>  secondary index -> sessionId
//	session_open:<sessionId>                 open-session marker -> sessionId
//	session_date:<YYYY-MM-DD>:<sessionId>    date index -> sessionId
//	minute:<sessionId>:<minute %06d>         MinuteLog record
//	participant:<identity>                   ParticipantStats record
//
// All writes go through a single path that retries transient failures and
// trips a circuit breaker when the store is genuinely unhealthy; callers
// see ErrStoreUnavailable while the breaker is open and never carry their
// own retry logic. Distinct records never conflict because every write
// path writes by unique key, so concurrent use by the controller, the
// guardian, and the aggregation engine is safe.
package store
