// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package models

// TopicSessionLifecycle is the in-process pub/sub topic the tracker
// publishes session lifecycle events on. The websocket hub subscribes to
// it so the controller never blocks on slow dashboard clients.
const TopicSessionLifecycle = "sessions.lifecycle"

// Session lifecycle event kinds.
const (
	SessionEventCreated = "session_created"
	SessionEventUpdated = "session_updated"
	SessionEventEnded   = "session_ended"
)

// SessionEvent is one lifecycle notification published by the tracker.
type SessionEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	SessionID string `json:"session_id"`
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title,omitempty"`

	StartTime        int64     `json:"start_time"`
	EndTime          *int64    `json:"end_time,omitempty"`
	EndReason        EndReason `json:"end_reason,omitempty"`
	ParticipantCount int       `json:"participant_count"`

	Participants []Participant `json:"participants,omitempty"`
}

// NewSessionEvent builds a lifecycle event from a session snapshot.
func NewSessionEvent(kind string, s *Session, nowMillis int64) SessionEvent {
	return SessionEvent{
		Type:             kind,
		Timestamp:        nowMillis,
		SessionID:        s.ID,
		MeetingID:        s.MeetingID,
		Title:            s.Title,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		EndReason:        s.EndReason,
		ParticipantCount: len(s.Participants),
		Participants:     s.Participants,
	}
}
