// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package models defines the data structures used throughout Meet Tracker:
// meetings, presence sessions, minute logs, participant aggregates, and the
// aggregated rows served to reporting clients.
//
// All timestamps are epoch milliseconds. The derived Date fields are
// YYYY-MM-DD strings computed in the process's local time zone and exist
// solely to make date-range queries cheap in the key/value store.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EndReason enumerates why a session was terminated. The set is closed
// except for navigation reasons, which carry the destination suffix.
type EndReason string

const (
	// EndReasonMeetingEnded is the explicit end signal from a presence observer.
	EndReasonMeetingEnded EndReason = "meeting_ended"

	// EndReasonAllTabsClosed means the last observing tab went away.
	EndReasonAllTabsClosed EndReason = "all_tabs_closed"

	// EndReasonStaleCleanup is applied by recovery to orphaned open sessions
	// older than the recovery window.
	EndReasonStaleCleanup EndReason = "stale_session_cleanup"

	// EndReasonManualCleanup is applied by the administrative end-all operation.
	EndReasonManualCleanup EndReason = "manual_cleanup"

	// endReasonNavigationPrefix prefixes reasons generated by NavigationReason.
	endReasonNavigationPrefix = "navigation_"
)

// NavigationReason builds an end reason for a room left by URL change.
// The suffix identifies where the tab navigated to (e.g. "home", "new_room").
func NavigationReason(destination string) EndReason {
	return EndReason(endReasonNavigationPrefix + destination)
}

// IsNavigation reports whether the reason was produced by NavigationReason.
func (r EndReason) IsNavigation() bool {
	return len(r) > len(endReasonNavigationPrefix) &&
		string(r[:len(endReasonNavigationPrefix)]) == endReasonNavigationPrefix
}

// Session is one contiguous presence interval for a meeting, bounded by a
// join and a leave. Open sessions live in the tracker registry and are
// mutated in place; once EndTime is set the record is immutable and the
// durable copy is the sole source of truth.
type Session struct {
	ID        string `json:"session_id" validate:"required"`
	MeetingID string `json:"meeting_id" validate:"required"`
	Title     string `json:"title,omitempty"`

	StartTime int64  `json:"start_time" validate:"required,gt=0"`
	EndTime   *int64 `json:"end_time,omitempty"`
	// Date is the YYYY-MM-DD of StartTime, stored for range queries.
	Date string `json:"date"`

	EndReason    EndReason     `json:"end_reason,omitempty"`
	Participants []Participant `json:"participants,omitempty"`

	// MinuteLogs is the in-memory log of the open session. It is persisted
	// as separate records keyed by (session, minute) when the session is
	// checkpointed or finalized, and is not stored inside the session record.
	MinuteLogs []MinuteLog `json:"-"`

	// DataSource is the provenance tag of the detection channel(s) that
	// contributed to this session (e.g. "tab:dom", "bot").
	DataSource string `json:"data_source,omitempty"`

	LastUpdated int64 `json:"last_updated"`

	// RestoredFromStorage marks sessions rehydrated by crash recovery.
	RestoredFromStorage bool `json:"restored_from_storage,omitempty"`

	// FailedToSave marks a session whose finalization write failed. The
	// registry keeps it past its normal removal point so the guardian (or
	// an operator) can retry instead of silently dropping history.
	FailedToSave bool  `json:"failed_to_save,omitempty"`
	FailedAt     int64 `json:"failed_at,omitempty"`
}

// NewSessionID generates a globally unique session identifier. The leading
// timestamp keeps IDs roughly sortable by creation time; the UUID suffix
// makes collisions between concurrent processes a non-issue.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("s%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// NewSession constructs an open session starting now.
func NewSession(meetingID, title string, participants []Participant, source string, now time.Time) *Session {
	s := &Session{
		ID:          NewSessionID(now),
		MeetingID:   meetingID,
		Title:       title,
		StartTime:   now.UnixMilli(),
		Date:        DateOf(now.UnixMilli()),
		DataSource:  source,
		LastUpdated: now.UnixMilli(),
	}
	s.MergeParticipants(participants, now.UnixMilli())
	return s
}

// IsOpen reports whether the session has not been finalized yet.
func (s *Session) IsOpen() bool {
	return s.EndTime == nil
}

// DurationMillis returns the session duration. Open sessions count as
// running until now.
func (s *Session) DurationMillis(nowMillis int64) int64 {
	end := nowMillis
	if s.EndTime != nil {
		end = *s.EndTime
	}
	if end < s.StartTime {
		return 0
	}
	return end - s.StartTime
}

// Finalize sets the end of the session exactly once. Calling it on an
// already finalized session is a no-op.
func (s *Session) Finalize(endMillis int64, reason EndReason) {
	if s.EndTime != nil {
		return
	}
	s.EndTime = &endMillis
	s.EndReason = reason
	s.LastUpdated = endMillis
}

// MergeParticipants folds a fresh participant snapshot into the session.
// Participants are deduplicated by identity; existing entries keep their
// display fields but move to the end so the list stays ordered by last
// update, matching what the reporting side expects.
func (s *Session) MergeParticipants(incoming []Participant, nowMillis int64) {
	if len(incoming) == 0 {
		return
	}

	byIdentity := make(map[string]Participant, len(s.Participants))
	for _, p := range s.Participants {
		byIdentity[p.Identity()] = p
	}

	for _, p := range incoming {
		id := p.Identity()
		if id == "" {
			continue
		}
		existing, ok := byIdentity[id]
		if ok {
			// Keep first-seen display fields, refresh the rest.
			if existing.Name != "" {
				p.Name = existing.Name
			}
			if existing.AvatarURL != "" && p.AvatarURL == "" {
				p.AvatarURL = existing.AvatarURL
			}
			s.removeParticipant(id)
		}
		p.LastSeen = nowMillis
		s.Participants = append(s.Participants, p)
		byIdentity[id] = p
	}
	s.LastUpdated = nowMillis
}

func (s *Session) removeParticipant(identity string) {
	for i, p := range s.Participants {
		if p.Identity() == identity {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			return
		}
	}
}

// RecordMinute appends or overwrites the minute log for the given index.
// Re-delivery of the same minute replaces the earlier snapshot so flaky
// observers cannot duplicate analytics rows.
func (s *Session) RecordMinute(minute int, participants []Participant, timestampMillis int64) {
	entry := MinuteLog{
		SessionID:    s.ID,
		Minute:       minute,
		Timestamp:    timestampMillis,
		Participants: participants,
	}
	for i := range s.MinuteLogs {
		if s.MinuteLogs[i].Minute == minute {
			s.MinuteLogs[i] = entry
			s.LastUpdated = timestampMillis
			return
		}
	}
	s.MinuteLogs = append(s.MinuteLogs, entry)
	s.LastUpdated = timestampMillis
}

// Clone returns a deep copy. The controller hands clones to the store so a
// write suspended mid-flight never observes later in-memory mutations.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Participants = append([]Participant(nil), s.Participants...)
	out.MinuteLogs = make([]MinuteLog, len(s.MinuteLogs))
	for i, m := range s.MinuteLogs {
		out.MinuteLogs[i] = m
		out.MinuteLogs[i].Participants = append([]Participant(nil), m.Participants...)
	}
	return &out
}

// MinuteLog is a timestamped participant snapshot inside one session,
// keyed by (sessionId, minute). Immutable once written; re-delivery of a
// minute overwrites rather than duplicates.
type MinuteLog struct {
	SessionID    string        `json:"session_id" validate:"required"`
	Minute       int           `json:"minute" validate:"gte=0"`
	Timestamp    int64         `json:"timestamp"`
	Participants []Participant `json:"participants,omitempty"`
}

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// DateOf derives the YYYY-MM-DD string for an epoch-millisecond timestamp
// in the process's local time zone.
func DateOf(millis int64) string {
	return time.UnixMilli(millis).Format("2006-01-02")
}
