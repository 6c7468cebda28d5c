// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package models

// MeetingStatus is derived from whether any session for the meeting is open.
type MeetingStatus string

const (
	MeetingStatusActive    MeetingStatus = "active"
	MeetingStatusCompleted MeetingStatus = "completed"
)

// Meeting is a recurring virtual-room identity, independent of any single
// occurrence. Created lazily on the first session for its room code and
// never deleted except by explicit purge.
//
// TotalDuration and SessionCount are cached rollups recomputed from
// sessions at finalization time; they are a convenience for reporting, not
// authoritative state.
type Meeting struct {
	ID    string `json:"meeting_id" validate:"required"`
	Title string `json:"title,omitempty"`

	Status MeetingStatus `json:"status"`

	TotalDuration int64 `json:"total_duration"`
	SessionCount  int   `json:"session_count"`

	CreatedAt  int64 `json:"created_at"`
	LastSeenAt int64 `json:"last_seen_at"`
}

// NewMeeting constructs a meeting first seen now.
func NewMeeting(id, title string, nowMillis int64) *Meeting {
	return &Meeting{
		ID:         id,
		Title:      title,
		Status:     MeetingStatusActive,
		CreatedAt:  nowMillis,
		LastSeenAt: nowMillis,
	}
}

// AggregatedMeeting is one reporting row: all sessions of a meeting that
// started on the same calendar date, rolled up. A daily-recurring meeting
// therefore produces one row per day instead of one ever-growing row.
type AggregatedMeeting struct {
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title,omitempty"`
	Date      string `json:"date"`

	Duration      int64 `json:"duration"`
	SessionCount  int   `json:"session_count"`
	EarliestStart int64 `json:"earliest_start"`
	LatestEnd     int64 `json:"latest_end"`
	IsActive      bool  `json:"is_active"`

	Participants []Participant `json:"participants,omitempty"`
	SessionIDs   []string      `json:"session_ids,omitempty"`
}
