// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package events defines the inbound event protocol as a closed set of
// typed variants. Observers send JSON envelopes {type, payload}; decoding
// produces exactly one variant and the dispatcher matches exhaustively,
// so a new event kind is a compile-time-checked addition instead of a
// string-keyed switch over arbitrary payloads.
package events

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/aggregate"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

// ErrUnknownEvent rejects an envelope whose type matches no variant.
// Unknown events are never silently ignored.
var ErrUnknownEvent = errors.New("unknown event type")

// Wire names of the event variants.
const (
	TypeReportPresence        = "report_presence"
	TypeLogMinute             = "log_minute"
	TypeEndSession            = "end_session"
	TypeGetActiveSession      = "get_active_session"
	TypeGetAggregatedMeetings = "get_aggregated_meetings"
	TypeForceEndAll           = "force_end_all"
	TypeDeleteMeeting         = "delete_meeting"
	TypeDeleteSession         = "delete_session"
)

// Event is the closed interface over the inbound variants. Only types in
// this package implement it.
type Event interface {
	isEvent()
}

// ReportPresence carries one participant snapshot for a meeting.
type ReportPresence struct {
	MeetingID    string               `json:"meeting_id"`
	Title        string               `json:"title,omitempty"`
	Participants []models.Participant `json:"participants,omitempty"`
	Source       string               `json:"source,omitempty"`
}

// LogMinute carries one per-minute analytics snapshot.
type LogMinute struct {
	MeetingID    string               `json:"meeting_id"`
	Minute       int                  `json:"minute"`
	Participants []models.Participant `json:"participants,omitempty"`
	Timestamp    int64                `json:"timestamp,omitempty"`
}

// EndSession terminates the open session for a meeting.
type EndSession struct {
	MeetingID string           `json:"meeting_id"`
	Reason    models.EndReason `json:"reason"`
}

// GetActiveSession queries the current active state.
type GetActiveSession struct{}

// GetAggregatedMeetings queries the aggregated reporting rows.
type GetAggregatedMeetings struct {
	Filter aggregate.Filter `json:"filter,omitempty"`
}

// ForceEndAll administratively ends every open session.
type ForceEndAll struct{}

// DeleteMeeting purges a meeting and everything under it.
type DeleteMeeting struct {
	MeetingID string `json:"meeting_id"`
}

// DeleteSession purges a single session and its minute logs.
type DeleteSession struct {
	SessionID string `json:"session_id"`
}

func (ReportPresence) isEvent()        {}
func (LogMinute) isEvent()             {}
func (EndSession) isEvent()            {}
func (GetActiveSession) isEvent()      {}
func (GetAggregatedMeetings) isEvent() {}
func (ForceEndAll) isEvent()           {}
func (DeleteMeeting) isEvent()         {}
func (DeleteSession) isEvent()         {}

// Envelope is the wire form of an inbound event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode turns an envelope into its typed variant.
func Decode(env Envelope) (Event, error) {
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	decodeInto := func(evt Event) (Event, error) {
		if err := json.Unmarshal(payload, evt); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return evt, nil
	}

	switch env.Type {
	case TypeReportPresence:
		return decodeInto(&ReportPresence{})
	case TypeLogMinute:
		return decodeInto(&LogMinute{})
	case TypeEndSession:
		return decodeInto(&EndSession{})
	case TypeGetActiveSession:
		return &GetActiveSession{}, nil
	case TypeGetAggregatedMeetings:
		return decodeInto(&GetAggregatedMeetings{})
	case TypeForceEndAll:
		return &ForceEndAll{}, nil
	case TypeDeleteMeeting:
		return decodeInto(&DeleteMeeting{})
	case TypeDeleteSession:
		return decodeInto(&DeleteSession{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}
