// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package models

// Participant is one detected attendee inside a presence snapshot.
// Detection sources do not always provide a stable ID, so identity falls
// back to the display name.
type Participant struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	LastSeen  int64  `json:"last_seen,omitempty"`
}

// Identity returns the deduplication key for this participant: the stable
// ID when present, otherwise the display name. Empty means the entry is
// unusable and is dropped on merge.
func (p Participant) Identity() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}

// UnionParticipants merges participant lists deduplicated by identity.
// First occurrence wins for display fields, matching the aggregation rule
// used by the reporting rows.
func UnionParticipants(lists ...[]Participant) []Participant {
	var out []Participant
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, p := range list {
			id := p.Identity()
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// ParticipantStats is the analytics rollup for one distinct identity.
// Recomputed incrementally whenever a session finalizes; purely derived,
// never authoritative for session content.
type ParticipantStats struct {
	Identity string `json:"identity" validate:"required"`
	Name     string `json:"name,omitempty"`

	MeetingCount int   `json:"meeting_count"`
	TotalTime    int64 `json:"total_time"`

	SessionIDs []string `json:"session_ids,omitempty"`
	// MeetingIDs tracks which meetings contributed to MeetingCount so the
	// incremental update stays idempotent per meeting.
	MeetingIDs []string `json:"meeting_ids,omitempty"`

	LastSeen int64 `json:"last_seen,omitempty"`
}

// AddSession folds one finalized session into the rollup.
func (ps *ParticipantStats) AddSession(s *Session, durationMillis int64) {
	for _, id := range ps.SessionIDs {
		if id == s.ID {
			return // already counted, e.g. a guardian retry
		}
	}
	ps.SessionIDs = append(ps.SessionIDs, s.ID)
	ps.TotalTime += durationMillis
	ps.LastSeen = s.LastUpdated

	for _, mid := range ps.MeetingIDs {
		if mid == s.MeetingID {
			return
		}
	}
	ps.MeetingIDs = append(ps.MeetingIDs, s.MeetingID)
	ps.MeetingCount = len(ps.MeetingIDs)
}
