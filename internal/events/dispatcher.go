// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package events

import (
	"context"
	"fmt"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/aggregate"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/tracker"
)

// Result payloads for operations without a richer return type.
type (
	// LogMinuteResult reports whether the minute was recorded.
	LogMinuteResult struct {
		Success bool `json:"success"`
	}

	// EndSessionResult carries the finalized session, or nil when the
	// end was an idempotent no-op.
	EndSessionResult struct {
		EndedSession *models.Session `json:"ended_session,omitempty"`
	}

	// ForceEndAllResult reports how many sessions were finalized.
	ForceEndAllResult struct {
		Ended int `json:"ended"`
	}

	// DeleteResult acknowledges an administrative deletion.
	DeleteResult struct {
		Success bool `json:"success"`
	}
)

// Dispatcher routes decoded events to the controller and the aggregation
// engine. The type switch is exhaustive over the closed Event set; an
// unhandled variant is a programming error and reported as such.
type Dispatcher struct {
	controller *tracker.Controller
	engine     *aggregate.Engine
}

// NewDispatcher wires a dispatcher to its collaborators.
func NewDispatcher(controller *tracker.Controller, engine *aggregate.Engine) *Dispatcher {
	return &Dispatcher{controller: controller, engine: engine}
}

// Dispatch executes one event and returns its typed result.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) (interface{}, error) {
	switch e := evt.(type) {
	case *ReportPresence:
		return d.controller.ReportPresence(ctx, e.MeetingID, e.Title, e.Participants, e.Source)

	case *LogMinute:
		ok, err := d.controller.LogMinute(ctx, e.MeetingID, e.Minute, e.Participants, e.Timestamp)
		if err != nil {
			return nil, err
		}
		return LogMinuteResult{Success: ok}, nil

	case *EndSession:
		reason := e.Reason
		if reason == "" {
			reason = models.EndReasonMeetingEnded
		}
		ended, err := d.controller.EndSession(ctx, e.MeetingID, reason)
		if err != nil {
			return nil, err
		}
		return EndSessionResult{EndedSession: ended}, nil

	case *GetActiveSession:
		return d.controller.ActiveState(), nil

	case *GetAggregatedMeetings:
		return d.engine.AggregatedMeetings(ctx, e.Filter)

	case *ForceEndAll:
		ended, err := d.controller.ForceEndAll(ctx)
		if err != nil {
			return nil, err
		}
		return ForceEndAllResult{Ended: ended}, nil

	case *DeleteMeeting:
		if err := d.controller.DeleteMeeting(ctx, e.MeetingID); err != nil {
			return nil, err
		}
		return DeleteResult{Success: true}, nil

	case *DeleteSession:
		if err := d.controller.DeleteSession(ctx, e.SessionID); err != nil {
			return nil, err
		}
		return DeleteResult{Success: true}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, evt)
	}
}

// DispatchEnvelope decodes and executes one wire envelope.
func (d *Dispatcher) DispatchEnvelope(ctx context.Context, env Envelope) (interface{}, error) {
	evt, err := Decode(env)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, evt)
}
