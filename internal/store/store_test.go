// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

// createTestStore opens a Store over a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func testSession(meetingID string, start time.Time) *models.Session {
	return models.NewSession(meetingID, "Daily Standup", []models.Participant{
		{ID: "u1", Name: "Alice"},
	}, "tab:dom", start)
}

func TestStorePutGetSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session := testSession("room-a", time.Now())
	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}

	got, err := s.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.MeetingID != "room-a" {
		t.Errorf("MeetingID = %s, want room-a", got.MeetingID)
	}
	if got.Title != "Daily Standup" {
		t.Errorf("Title = %s, want Daily Standup", got.Title)
	}
	if !got.IsOpen() {
		t.Error("expected session to round-trip as open")
	}
	if len(got.Participants) != 1 || got.Participants[0].Name != "Alice" {
		t.Errorf("Participants = %+v, want one entry Alice", got.Participants)
	}
}

func TestStoreGetSessionNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSession() error = %v, want ErrNotFound", err)
	}
}

func TestStorePutSessionInvalid(t *testing.T) {
	s := createTestStore(t)

	err := s.PutSession(context.Background(), &models.Session{ID: "s1"})
	if !errors.Is(err, models.ErrInvalidRecord) {
		t.Fatalf("PutSession() error = %v, want ErrInvalidRecord", err)
	}
}

func TestStoreOpenSessionsIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	open := testSession("room-a", time.Now())
	closed := testSession("room-b", time.Now())
	closed.Finalize(time.Now().UnixMilli(), models.EndReasonMeetingEnded)

	for _, sess := range []*models.Session{open, closed} {
		if err := s.PutSession(ctx, sess); err != nil {
			t.Fatalf("PutSession() error = %v", err)
		}
	}

	got, err := s.OpenSessions(ctx)
	if err != nil {
		t.Fatalf("OpenSessions() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("OpenSessions() returned %d sessions, want 1", len(got))
	}
	if got[0].ID != open.ID {
		t.Errorf("OpenSessions()[0].ID = %s, want %s", got[0].ID, open.ID)
	}
}

func TestStoreOpenMarkerClearedOnFinalize(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session := testSession("room-a", time.Now())
	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}

	session.Finalize(time.Now().UnixMilli(), models.EndReasonAllTabsClosed)
	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession() after finalize error = %v", err)
	}

	got, err := s.OpenSessions(ctx)
	if err != nil {
		t.Fatalf("OpenSessions() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("OpenSessions() returned %d sessions after finalize, want 0", len(got))
	}
}

func TestStoreSessionsByMeeting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess := testSession("room-a", time.Now().Add(time.Duration(i)*time.Minute))
		if err := s.PutSession(ctx, sess); err != nil {
			t.Fatalf("PutSession() error = %v", err)
		}
	}
	other := testSession("room-b", time.Now())
	if err := s.PutSession(ctx, other); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}

	got, err := s.SessionsByMeeting(ctx, "room-a")
	if err != nil {
		t.Fatalf("SessionsByMeeting() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("SessionsByMeeting() returned %d, want 3", len(got))
	}
	for _, sess := range got {
		if sess.MeetingID != "room-a" {
			t.Errorf("MeetingID = %s, want room-a", sess.MeetingID)
		}
	}
}

func TestStoreSessionsByDateRange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	today := testSession("room-a", time.Now())
	yesterday := testSession("room-a", time.Now().AddDate(0, 0, -1))
	lastWeek := testSession("room-a", time.Now().AddDate(0, 0, -7))

	for _, sess := range []*models.Session{today, yesterday, lastWeek} {
		if err := s.PutSession(ctx, sess); err != nil {
			t.Fatalf("PutSession() error = %v", err)
		}
	}

	from := models.DateOf(time.Now().AddDate(0, 0, -2).UnixMilli())
	to := models.DateOf(time.Now().UnixMilli())
	got, err := s.SessionsByDateRange(ctx, from, to)
	if err != nil {
		t.Fatalf("SessionsByDateRange() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SessionsByDateRange(%s, %s) returned %d, want 2", from, to, len(got))
	}
}

func TestStoreDeleteSessionCascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session := testSession("room-a", time.Now())
	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}
	logs := []models.MinuteLog{
		{SessionID: session.ID, Minute: 0, Timestamp: time.Now().UnixMilli()},
		{SessionID: session.ID, Minute: 1, Timestamp: time.Now().UnixMilli()},
	}
	if err := s.PutMinuteLogs(ctx, session.ID, logs); err != nil {
		t.Fatalf("PutMinuteLogs() error = %v", err)
	}

	if err := s.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	if _, err := s.GetSession(ctx, session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrNotFound", err)
	}
	remaining, err := s.MinuteLogs(ctx, session.ID)
	if err != nil {
		t.Fatalf("MinuteLogs() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("MinuteLogs() after delete returned %d, want 0", len(remaining))
	}
	open, err := s.OpenSessions(ctx)
	if err != nil {
		t.Fatalf("OpenSessions() error = %v", err)
	}
	if len(open) != 0 {
		t.Errorf("OpenSessions() after delete returned %d, want 0", len(open))
	}
}

func TestStoreDeleteMeetingCascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	meeting := models.NewMeeting("room-a", "Standup", time.Now().UnixMilli())
	if err := s.PutMeeting(ctx, meeting); err != nil {
		t.Fatalf("PutMeeting() error = %v", err)
	}
	var ids []string
	for i := 0; i < 2; i++ {
		sess := testSession("room-a", time.Now())
		if err := s.PutSession(ctx, sess); err != nil {
			t.Fatalf("PutSession() error = %v", err)
		}
		ids = append(ids, sess.ID)
	}
	keep := testSession("room-b", time.Now())
	if err := s.PutSession(ctx, keep); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}

	if err := s.DeleteMeeting(ctx, "room-a"); err != nil {
		t.Fatalf("DeleteMeeting() error = %v", err)
	}

	if _, err := s.GetMeeting(ctx, "room-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMeeting() after delete error = %v, want ErrNotFound", err)
	}
	for _, id := range ids {
		if _, err := s.GetSession(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSession(%s) after meeting delete error = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := s.GetSession(ctx, keep.ID); err != nil {
		t.Errorf("GetSession() for unrelated meeting error = %v", err)
	}
}

func TestStoreMinuteLogsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	session := testSession("room-a", time.Now())
	logs := make([]models.MinuteLog, 0, 5)
	for i := 0; i < 5; i++ {
		logs = append(logs, models.MinuteLog{
			SessionID: session.ID,
			Minute:    i,
			Timestamp: time.Now().UnixMilli(),
			Participants: []models.Participant{
				{ID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("User %d", i)},
			},
		})
	}
	if err := s.PutMinuteLogs(ctx, session.ID, logs); err != nil {
		t.Fatalf("PutMinuteLogs() error = %v", err)
	}

	got, err := s.MinuteLogs(ctx, session.ID)
	if err != nil {
		t.Fatalf("MinuteLogs() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("MinuteLogs() returned %d, want 5", len(got))
	}
	// The zero-padded key keeps minutes in order.
	for i, l := range got {
		if l.Minute != i {
			t.Errorf("MinuteLogs()[%d].Minute = %d, want %d", i, l.Minute, i)
		}
	}
}

func TestStoreParticipantStatsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stats := &models.ParticipantStats{
		Identity:     "u1",
		Name:         "Alice",
		MeetingCount: 2,
		TotalTime:    90 * 60 * 1000,
		SessionIDs:   []string{"s1", "s2"},
		MeetingIDs:   []string{"room-a"},
	}
	if err := s.PutParticipantStats(ctx, stats); err != nil {
		t.Fatalf("PutParticipantStats() error = %v", err)
	}

	got, err := s.GetParticipantStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetParticipantStats() error = %v", err)
	}
	if got.MeetingCount != 2 || got.TotalTime != stats.TotalTime {
		t.Errorf("GetParticipantStats() = %+v, want %+v", got, stats)
	}

	all, err := s.AllParticipantStats(ctx)
	if err != nil {
		t.Fatalf("AllParticipantStats() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("AllParticipantStats() returned %d, want 1", len(all))
	}
}

func TestStoreUnavailable(t *testing.T) {
	s := Unavailable()
	ctx := context.Background()

	if s.Available() {
		t.Error("Available() = true for unavailable store")
	}
	err := s.PutSession(ctx, testSession("room-a", time.Now()))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("PutSession() error = %v, want ErrStoreUnavailable", err)
	}
	_, err = s.OpenSessions(ctx)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("OpenSessions() error = %v, want ErrStoreUnavailable", err)
	}
}
