// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package tracker

import (
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

// Registry is the volatile, process-lifetime map of currently open
// sessions: meetingId -> sessionId and sessionId -> Session. It is a pure
// data structure with no persistence logic and no internal locking; the
// controller serializes all access. It exclusively owns open sessions;
// once a session is finalized and persisted the entry is removed and the
// durable copy becomes the sole source of truth.
type Registry struct {
	byMeeting map[string]string
	bySession map[string]*models.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byMeeting: make(map[string]string),
		bySession: make(map[string]*models.Session),
	}
}

// LookupActive returns the session currently registered for a meeting,
// or nil. The entry may be a finalized-but-unsaved session awaiting
// retry; callers that need a live session must check IsOpen.
func (r *Registry) LookupActive(meetingID string) *models.Session {
	sessionID, ok := r.byMeeting[meetingID]
	if !ok {
		return nil
	}
	return r.bySession[sessionID]
}

// Lookup returns the registered session with the given id, or nil.
func (r *Registry) Lookup(sessionID string) *models.Session {
	return r.bySession[sessionID]
}

// Insert registers a session. A previous entry for the same meeting is
// replaced; the at-most-one-open-session invariant is the controller's to
// uphold before calling Insert.
func (r *Registry) Insert(s *models.Session) {
	r.byMeeting[s.MeetingID] = s.ID
	r.bySession[s.ID] = s
}

// Remove drops a session from both maps. Removing an unknown id is a no-op.
func (r *Registry) Remove(sessionID string) {
	s, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	delete(r.bySession, sessionID)
	if r.byMeeting[s.MeetingID] == sessionID {
		delete(r.byMeeting, s.MeetingID)
	}
}

// AllActive returns every registered session. Order is unspecified.
func (r *Registry) AllActive() []*models.Session {
	out := make([]*models.Session, 0, len(r.bySession))
	for _, s := range r.bySession {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	return len(r.bySession)
}
