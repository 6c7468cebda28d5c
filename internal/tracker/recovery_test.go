// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

func seedOpenSession(gw *fakeGateway, meetingID string, start time.Time) *models.Session {
	s := models.NewSession(meetingID, "Standup", []models.Participant{{ID: "u1", Name: "Alice"}}, "tab:dom", start)
	gw.sessions[s.ID] = s
	return s
}

func TestRecoverRestoresYoungSessions(t *testing.T) {
	gw := newFakeGateway()
	young := seedOpenSession(gw, "room-a", time.Now().Add(-2*time.Hour))
	gw.minuteLogs[young.ID] = []models.MinuteLog{
		{SessionID: young.ID, Minute: 0, Timestamp: young.StartTime},
	}

	c := NewController(NewRegistry(), gw, nil, Config{RecoveryWindow: 8 * time.Hour})
	report, err := c.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if report.Restored != 1 || report.Cleaned != 0 {
		t.Fatalf("Recover() = %+v, want 1 restored, 0 cleaned", report)
	}

	active := c.ActiveSnapshot()
	if len(active) != 1 {
		t.Fatalf("ActiveSnapshot() = %d sessions, want 1", len(active))
	}
	restored := active[0]
	if restored.ID != young.ID {
		t.Errorf("restored ID = %s, want %s", restored.ID, young.ID)
	}
	if !restored.RestoredFromStorage {
		t.Error("restored session is not marked restoredFromStorage")
	}

	// The next presence report must update the restored session, not fork
	// a duplicate.
	res, err := c.ReportPresence(context.Background(), "room-a", "", []models.Participant{{ID: "u2", Name: "Bob"}}, "tab:dom")
	if err != nil {
		t.Fatalf("ReportPresence() error = %v", err)
	}
	if res.Created {
		t.Error("Created = true after recovery, want continuation of restored session")
	}
	if res.SessionID != young.ID {
		t.Errorf("SessionID = %s, want %s", res.SessionID, young.ID)
	}
}

func TestRecoverFinalizesStaleSessions(t *testing.T) {
	gw := newFakeGateway()
	stale := seedOpenSession(gw, "room-a", time.Now().Add(-20*time.Hour))
	lastSeen := time.Now().Add(-19 * time.Hour).UnixMilli()
	stale.LastUpdated = lastSeen

	c := NewController(NewRegistry(), gw, nil, Config{RecoveryWindow: 8 * time.Hour})
	report, err := c.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if report.Restored != 0 || report.Cleaned != 1 {
		t.Fatalf("Recover() = %+v, want 0 restored, 1 cleaned", report)
	}

	if len(c.ActiveSnapshot()) != 0 {
		t.Error("stale session still active after recovery")
	}

	cleaned := gw.storedSession(stale.ID)
	if cleaned == nil || cleaned.IsOpen() {
		t.Fatal("stale session was not finalized in storage")
	}
	if cleaned.EndReason != models.EndReasonStaleCleanup {
		t.Errorf("EndReason = %s, want stale_session_cleanup", cleaned.EndReason)
	}
	// The end time approximates the true leave time via the last update,
	// not the recovery moment.
	if *cleaned.EndTime != lastSeen {
		t.Errorf("EndTime = %d, want last update %d", *cleaned.EndTime, lastSeen)
	}
}

func TestRecoverMixedWindow(t *testing.T) {
	gw := newFakeGateway()
	seedOpenSession(gw, "room-a", time.Now().Add(-1*time.Hour))
	seedOpenSession(gw, "room-b", time.Now().Add(-30*time.Hour))
	seedOpenSession(gw, "room-c", time.Now().Add(-10*time.Minute))

	c := NewController(NewRegistry(), gw, nil, Config{RecoveryWindow: 8 * time.Hour})
	report, err := c.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if report.Restored != 2 || report.Cleaned != 1 {
		t.Errorf("Recover() = %+v, want 2 restored, 1 cleaned", report)
	}
}

func TestRecoverIsIdempotent(t *testing.T) {
	gw := newFakeGateway()
	seedOpenSession(gw, "room-a", time.Now().Add(-1*time.Hour))

	c := NewController(NewRegistry(), gw, nil, Config{})
	if _, err := c.Recover(context.Background()); err != nil {
		t.Fatalf("first Recover() error = %v", err)
	}
	report, err := c.Recover(context.Background())
	if err != nil {
		t.Fatalf("second Recover() error = %v", err)
	}
	if report.Restored != 0 {
		t.Errorf("second Recover() restored %d, want 0", report.Restored)
	}
	if len(c.ActiveSnapshot()) != 1 {
		t.Errorf("ActiveSnapshot() = %d, want exactly 1 after double recovery", len(c.ActiveSnapshot()))
	}
}
