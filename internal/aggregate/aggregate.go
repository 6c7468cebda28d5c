// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package aggregate derives meeting-level reporting rows from persisted
// sessions. The engine reads only the store, never the registry, so
// reporting always reflects durable truth and is safe to run concurrently
// with the lifecycle controller.
package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

// Source is the read-only slice of the store the engine needs.
// *store.Store satisfies it.
type Source interface {
	AllSessions(ctx context.Context) ([]*models.Session, error)
	SessionsByMeeting(ctx context.Context, meetingID string) ([]*models.Session, error)
	SessionsByDateRange(ctx context.Context, from, to string) ([]*models.Session, error)
}

// Filter narrows an aggregation query. Zero values mean unfiltered.
type Filter struct {
	MeetingID  string `json:"meeting_id,omitempty"`
	FromDate   string `json:"from_date,omitempty"` // YYYY-MM-DD inclusive
	ToDate     string `json:"to_date,omitempty"`   // YYYY-MM-DD inclusive
	ActiveOnly bool   `json:"active_only,omitempty"`
}

// Engine rolls raw sessions up into per-meeting, per-day rows.
type Engine struct {
	source Source
	now    func() time.Time
}

// NewEngine creates an aggregation engine over the given source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source, now: time.Now}
}

// SetClock replaces the engine's clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// AggregatedMeetings groups sessions by (meetingId, calendar date of
// startTime) — deliberately not by meetingId alone, so a daily-recurring
// meeting produces one row per day instead of one ever-growing row. Rows
// are sorted by earliest start descending for presentation.
func (e *Engine) AggregatedMeetings(ctx context.Context, filter Filter) ([]models.AggregatedMeeting, error) {
	sessions, err := e.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	nowMillis := e.now().UnixMilli()
	type groupKey struct{ meetingID, date string }

	groups := make(map[groupKey]*models.AggregatedMeeting)
	participantLists := make(map[groupKey][][]models.Participant)
	var order []groupKey

	for _, s := range sessions {
		if filter.MeetingID != "" && s.MeetingID != filter.MeetingID {
			continue
		}
		date := s.Date
		if date == "" {
			date = models.DateOf(s.StartTime)
		}
		if filter.FromDate != "" && date < filter.FromDate {
			continue
		}
		if filter.ToDate != "" && date > filter.ToDate {
			continue
		}

		key := groupKey{s.MeetingID, date}
		row, ok := groups[key]
		if !ok {
			row = &models.AggregatedMeeting{
				MeetingID:     s.MeetingID,
				Title:         s.Title,
				Date:          date,
				EarliestStart: s.StartTime,
				LatestEnd:     s.StartTime,
			}
			groups[key] = row
			order = append(order, key)
		}

		row.Duration += s.DurationMillis(nowMillis)
		row.SessionCount++
		row.SessionIDs = append(row.SessionIDs, s.ID)
		if row.Title == "" {
			row.Title = s.Title
		}
		if s.StartTime < row.EarliestStart {
			row.EarliestStart = s.StartTime
		}
		end := nowMillis
		if s.EndTime != nil {
			end = *s.EndTime
		}
		if end > row.LatestEnd {
			row.LatestEnd = end
		}
		if s.IsOpen() {
			row.IsActive = true
		}
		participantLists[key] = append(participantLists[key], s.Participants)
	}

	rows := make([]models.AggregatedMeeting, 0, len(order))
	for _, key := range order {
		row := groups[key]
		row.Participants = models.UnionParticipants(participantLists[key]...)
		if filter.ActiveOnly && !row.IsActive {
			continue
		}
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EarliestStart != rows[j].EarliestStart {
			return rows[i].EarliestStart > rows[j].EarliestStart
		}
		return rows[i].MeetingID < rows[j].MeetingID
	})
	return rows, nil
}

// load picks the cheapest store query the filter allows.
func (e *Engine) load(ctx context.Context, filter Filter) ([]*models.Session, error) {
	switch {
	case filter.MeetingID != "":
		return e.source.SessionsByMeeting(ctx, filter.MeetingID)
	case filter.FromDate != "" || filter.ToDate != "":
		return e.source.SessionsByDateRange(ctx, filter.FromDate, filter.ToDate)
	default:
		return e.source.AllSessions(ctx)
	}
}
