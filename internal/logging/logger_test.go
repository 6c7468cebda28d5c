// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"bogus":    zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("meeting_id", "room-a").Msg("session started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["meeting_id"] != "room-a" {
		t.Errorf("meeting_id = %v, want room-a", entry["meeting_id"])
	}
	if entry["message"] != "session started" {
		t.Errorf("message = %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("time field missing")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("hidden")
	Info().Msg("hidden too")
	Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("suppressed levels leaked: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestWithChildLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	child := With().Str("component", "tracker").Logger()
	child.Info().Msg("ready")

	if !strings.Contains(buf.String(), `"component":"tracker"`) {
		t.Errorf("child logger field missing: %s", buf.String())
	}
}

func TestSlogHandlerBridgesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	logger := slog.New(handler)

	logger.Info("supervisor started", slog.String("supervisor", "meet-tracker"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("bridged log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "supervisor started" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["supervisor"] != "meet-tracker" {
		t.Errorf("supervisor attr = %v", entry["supervisor"])
	}
}

func TestSlogHandlerEnabledRespectsLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf).Level(zerolog.WarnLevel)
	handler := NewSlogHandlerWithLogger(logger)

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(error) = false at warn level")
	}
}
