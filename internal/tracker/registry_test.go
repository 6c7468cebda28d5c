// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package tracker

import (
	"testing"
	"time"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

func TestRegistryInsertLookupRemove(t *testing.T) {
	r := NewRegistry()
	s := models.NewSession("room-a", "Standup", nil, "tab:dom", time.Now())

	if got := r.LookupActive("room-a"); got != nil {
		t.Fatalf("LookupActive() on empty registry = %+v, want nil", got)
	}

	r.Insert(s)
	if got := r.LookupActive("room-a"); got == nil || got.ID != s.ID {
		t.Fatalf("LookupActive() = %+v, want %s", got, s.ID)
	}
	if got := r.Lookup(s.ID); got != s {
		t.Errorf("Lookup() = %+v, want same session", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	r.Remove(s.ID)
	if got := r.LookupActive("room-a"); got != nil {
		t.Errorf("LookupActive() after remove = %+v, want nil", got)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after remove = %d, want 0", r.Len())
	}
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Remove("missing")
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryReplaceKeepsMeetingMapping(t *testing.T) {
	r := NewRegistry()
	first := models.NewSession("room-a", "", nil, "tab:dom", time.Now())
	second := models.NewSession("room-a", "", nil, "tab:dom", time.Now())

	r.Insert(first)
	r.Insert(second)

	if got := r.LookupActive("room-a"); got == nil || got.ID != second.ID {
		t.Fatalf("LookupActive() = %+v, want replacement %s", got, second.ID)
	}

	// Removing the stale first session must not clear the meeting mapping
	// that now points at the second.
	r.Remove(first.ID)
	if got := r.LookupActive("room-a"); got == nil || got.ID != second.ID {
		t.Errorf("LookupActive() after stale remove = %+v, want %s", got, second.ID)
	}
}
