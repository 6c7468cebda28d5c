// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package tracker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/logging"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/metrics"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/store"
)

// Gateway is the slice of the persistence layer the tracker needs.
// *store.Store satisfies it; tests substitute failing fakes.
type Gateway interface {
	PutMeeting(ctx context.Context, m *models.Meeting) error
	GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error)
	PutSession(ctx context.Context, s *models.Session) error
	PutMinuteLogs(ctx context.Context, sessionID string, logs []models.MinuteLog) error
	MinuteLogs(ctx context.Context, sessionID string) ([]models.MinuteLog, error)
	OpenSessions(ctx context.Context) ([]*models.Session, error)
	GetParticipantStats(ctx context.Context, identity string) (*models.ParticipantStats, error)
	PutParticipantStats(ctx context.Context, ps *models.ParticipantStats) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteMeeting(ctx context.Context, meetingID string) error
}

// Config holds the tracker policy constants.
type Config struct {
	// RecoveryWindow is the maximum age of a persisted open session that
	// is restored as active after a restart; older ones are force-closed
	// as stale. Tunable because the right threshold is deployment policy,
	// not a law of the domain. Default 8h.
	RecoveryWindow time.Duration

	// FailedSaveGrace is how long a session flagged failedToSave still
	// counts as "currently active" in views. Default 5m.
	FailedSaveGrace time.Duration
}

func (c *Config) applyDefaults() {
	if c.RecoveryWindow <= 0 {
		c.RecoveryWindow = 8 * time.Hour
	}
	if c.FailedSaveGrace <= 0 {
		c.FailedSaveGrace = 5 * time.Minute
	}
}

// ReportResult is returned from ReportPresence so callers can cache the
// session identity.
type ReportResult struct {
	SessionID        string `json:"session_id"`
	SessionStartTime int64  `json:"session_start_time"`
	Created          bool   `json:"created"`
}

// ActiveState answers a get_active_session query.
type ActiveState struct {
	State          string               `json:"state"` // "active" or "none"
	Participants   []models.Participant `json:"participants,omitempty"`
	CurrentMeeting *models.Session      `json:"current_meeting,omitempty"`
}

// Controller implements the session lifecycle state machine over the
// registry. Per meeting the states are NONE -> ACTIVE -> NONE; sessions
// are never reopened, a re-join always creates a new session so the
// join/leave interval model stays exact.
//
// Locking: the per-meeting keyed mutex serializes lifecycle transitions
// and is held across store writes; regMu guards the registry maps and the
// contents of registered sessions. In-place session mutations take the
// meeting lock first, then regMu for the memory update only, so read-side
// views never observe a half-merged session and never block on store I/O.
type Controller struct {
	cfg      Config
	gateway  Gateway
	pub      message.Publisher // optional lifecycle bus
	log      zerolog.Logger
	now      func() time.Time
	locks    *keyedMutex
	regMu    sync.RWMutex
	registry *Registry
}

// NewController creates a controller over the given registry and gateway.
// pub may be nil when no lifecycle bus is wired (tests, tooling).
func NewController(registry *Registry, gateway Gateway, pub message.Publisher, cfg Config) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:      cfg,
		gateway:  gateway,
		pub:      pub,
		log:      logging.With().Str("component", "tracker").Logger(),
		now:      time.Now,
		locks:    newKeyedMutex(),
		registry: registry,
	}
}

// SetClock replaces the controller's clock. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// ReportPresence handles one participant snapshot for a meeting. With no
// active session a new one is created and immediately persisted; otherwise
// the snapshot is merged into the open session in memory only, so write
// volume stays proportional to sessions rather than updates.
func (c *Controller) ReportPresence(ctx context.Context, meetingID, title string, participants []models.Participant, source string) (*ReportResult, error) {
	if meetingID == "" {
		return nil, models.ErrInvalidRecord
	}
	unlock := c.locks.lock(meetingID)
	defer unlock()

	metrics.PresenceReports.Inc()
	nowMillis := c.now().UnixMilli()

	c.regMu.Lock()
	active := c.registry.LookupActive(meetingID)
	if active != nil && active.IsOpen() {
		active.MergeParticipants(participants, nowMillis)
		if title != "" {
			active.Title = title
		}
		c.regMu.Unlock()
		c.publish(models.SessionEventUpdated, active)
		return &ReportResult{SessionID: active.ID, SessionStartTime: active.StartTime}, nil
	}
	c.regMu.Unlock()

	return c.createSession(ctx, meetingID, title, participants, source)
}

// createSession builds a fresh session, registers it, and persists it
// immediately so a crash right after a join still leaves a recoverable
// record. Must be called with the meeting lock held.
func (c *Controller) createSession(ctx context.Context, meetingID, title string, participants []models.Participant, source string) (*ReportResult, error) {
	session := models.NewSession(meetingID, title, participants, source, c.now())

	c.upsertMeeting(ctx, meetingID, title, models.MeetingStatusActive)

	if err := c.gateway.PutSession(ctx, session.Clone()); err != nil {
		if errors.Is(err, models.ErrInvalidRecord) {
			return nil, err
		}
		// Degraded or failing store: keep tracking in memory, flag the
		// session so the guardian retries the initial write.
		session.FailedToSave = true
		session.FailedAt = session.StartTime
		c.log.Warn().Err(err).
			Str("meeting_id", meetingID).
			Str("session_id", session.ID).
			Msg("initial session write failed, tracking volatile")
	}

	c.regMu.Lock()
	c.registry.Insert(session)
	c.regMu.Unlock()
	c.updateGauges()

	metrics.SessionsStarted.Inc()
	c.log.Info().
		Str("meeting_id", meetingID).
		Str("session_id", session.ID).
		Int("participants", len(session.Participants)).
		Msg("session started")
	c.publish(models.SessionEventCreated, session)

	return &ReportResult{SessionID: session.ID, SessionStartTime: session.StartTime, Created: true}, nil
}

// LogMinute appends or overwrites a minute snapshot in the open session's
// in-memory log. Not persisted until the session ends or the guardian
// flushes it. Returns false when the meeting has no open session.
func (c *Controller) LogMinute(ctx context.Context, meetingID string, minute int, participants []models.Participant, timestampMillis int64) (bool, error) {
	if meetingID == "" || minute < 0 {
		return false, models.ErrInvalidRecord
	}
	unlock := c.locks.lock(meetingID)
	defer unlock()

	c.regMu.Lock()
	active := c.registry.LookupActive(meetingID)
	if active == nil || !active.IsOpen() {
		c.regMu.Unlock()
		return false, nil
	}
	if timestampMillis <= 0 {
		timestampMillis = c.now().UnixMilli()
	}
	active.RecordMinute(minute, participants, timestampMillis)
	c.regMu.Unlock()
	metrics.MinuteLogsRecorded.Inc()
	return true, nil
}

// EndSession finalizes the open session for a meeting. Idempotent: with
// no active session it is a no-op returning nil. On persistence failure
// the session stays in the registry flagged failedToSave for retry; it is
// never silently dropped.
func (c *Controller) EndSession(ctx context.Context, meetingID string, reason models.EndReason) (*models.Session, error) {
	unlock := c.locks.lock(meetingID)
	defer unlock()

	c.regMu.Lock()
	active := c.registry.LookupActive(meetingID)
	if active == nil || !active.IsOpen() {
		c.regMu.Unlock()
		return nil, nil
	}
	active.Finalize(c.now().UnixMilli(), reason)
	c.regMu.Unlock()

	if err := c.persistFinal(ctx, active); err != nil {
		return nil, err
	}
	return active.Clone(), nil
}

// persistFinal writes a finalized session (record plus minute logs), then
// applies derived rollups and releases the registry entry. Must be called
// with the meeting lock held and the session already finalized.
func (c *Controller) persistFinal(ctx context.Context, session *models.Session) error {
	err := c.gateway.PutSession(ctx, session.Clone())
	if err == nil {
		err = c.gateway.PutMinuteLogs(ctx, session.ID, session.MinuteLogs)
	}
	if err != nil {
		nowMillis := c.now().UnixMilli()
		c.regMu.Lock()
		session.FailedToSave = true
		if session.FailedAt == 0 {
			session.FailedAt = nowMillis
		}
		c.regMu.Unlock()
		c.updateGauges()
		c.log.Error().Err(err).
			Str("meeting_id", session.MeetingID).
			Str("session_id", session.ID).
			Msg("session finalization write failed, retained for retry")
		return err
	}

	c.regMu.Lock()
	session.FailedToSave = false
	session.FailedAt = 0
	c.regMu.Unlock()

	// Rollups are derived data; failures are logged, never fatal, and the
	// ordering (only after a successful session write) keeps them applied
	// exactly once across guardian retries.
	c.applyMeetingRollup(ctx, session)
	c.applyParticipantRollups(ctx, session)

	c.regMu.Lock()
	c.registry.Remove(session.ID)
	c.regMu.Unlock()
	c.updateGauges()

	metrics.SessionsEnded.WithLabelValues(string(session.EndReason)).Inc()
	c.log.Info().
		Str("meeting_id", session.MeetingID).
		Str("session_id", session.ID).
		Str("reason", string(session.EndReason)).
		Int64("duration_ms", session.DurationMillis(c.now().UnixMilli())).
		Msg("session ended")
	c.publish(models.SessionEventEnded, session)
	return nil
}

// ForceEndAll ends every open session with reason manual_cleanup and
// returns how many were finalized successfully.
func (c *Controller) ForceEndAll(ctx context.Context) (int, error) {
	c.regMu.RLock()
	meetings := make([]string, 0, c.registry.Len())
	for _, s := range c.registry.AllActive() {
		if s.IsOpen() {
			meetings = append(meetings, s.MeetingID)
		}
	}
	c.regMu.RUnlock()

	ended := 0
	var lastErr error
	for _, meetingID := range meetings {
		s, err := c.EndSession(ctx, meetingID, models.EndReasonManualCleanup)
		if err != nil {
			lastErr = err
			continue
		}
		if s != nil {
			ended++
		}
	}
	return ended, lastErr
}

// DeleteSession removes a session from durable storage, cascading to its
// minute logs. If the session is still registered it is dropped from the
// registry first without a finalization write.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	c.regMu.Lock()
	if s := c.registry.Lookup(sessionID); s != nil {
		c.registry.Remove(sessionID)
	}
	c.regMu.Unlock()
	c.updateGauges()
	return c.gateway.DeleteSession(ctx, sessionID)
}

// DeleteMeeting purges a meeting and all of its sessions and minute logs.
func (c *Controller) DeleteMeeting(ctx context.Context, meetingID string) error {
	unlock := c.locks.lock(meetingID)
	defer unlock()

	c.regMu.Lock()
	if s := c.registry.LookupActive(meetingID); s != nil {
		c.registry.Remove(s.ID)
	}
	c.regMu.Unlock()
	c.updateGauges()
	return c.gateway.DeleteMeeting(ctx, meetingID)
}

// ActiveSnapshot returns clones of the sessions that currently count as
// active: open, and not flagged failedToSave for longer than the grace
// period. Ordered by start time descending.
func (c *Controller) ActiveSnapshot() []*models.Session {
	nowMillis := c.now().UnixMilli()
	graceMillis := c.cfg.FailedSaveGrace.Milliseconds()

	c.regMu.RLock()
	var out []*models.Session
	for _, s := range c.registry.AllActive() {
		if !s.IsOpen() {
			continue
		}
		if s.FailedToSave && s.FailedAt > 0 && nowMillis-s.FailedAt > graceMillis {
			continue
		}
		out = append(out, s.Clone())
	}
	c.regMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime > out[j].StartTime })
	return out
}

// ActiveState answers a get_active_session query. With several meetings
// active the most recently updated one is reported as current.
func (c *Controller) ActiveState() ActiveState {
	active := c.ActiveSnapshot()
	if len(active) == 0 {
		return ActiveState{State: "none"}
	}
	current := active[0]
	for _, s := range active[1:] {
		if s.LastUpdated > current.LastUpdated {
			current = s
		}
	}
	return ActiveState{
		State:          "active",
		Participants:   current.Participants,
		CurrentMeeting: current,
	}
}

// upsertMeeting lazily creates the meeting record or refreshes its title,
// status, and last-seen time. Meeting records are derived bookkeeping;
// store failures here are logged and absorbed.
func (c *Controller) upsertMeeting(ctx context.Context, meetingID, title string, status models.MeetingStatus) {
	nowMillis := c.now().UnixMilli()
	meeting, err := c.gateway.GetMeeting(ctx, meetingID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		meeting = models.NewMeeting(meetingID, title, nowMillis)
	case err != nil:
		c.log.Warn().Err(err).Str("meeting_id", meetingID).Msg("meeting lookup failed")
		return
	default:
		if title != "" {
			meeting.Title = title
		}
		meeting.LastSeenAt = nowMillis
	}
	meeting.Status = status
	if err := c.gateway.PutMeeting(ctx, meeting); err != nil {
		c.log.Warn().Err(err).Str("meeting_id", meetingID).Msg("meeting upsert failed")
	}
}

// applyMeetingRollup folds a finalized session into its meeting's cached
// totals.
func (c *Controller) applyMeetingRollup(ctx context.Context, session *models.Session) {
	nowMillis := c.now().UnixMilli()
	meeting, err := c.gateway.GetMeeting(ctx, session.MeetingID)
	if errors.Is(err, store.ErrNotFound) {
		meeting = models.NewMeeting(session.MeetingID, session.Title, session.StartTime)
	} else if err != nil {
		c.log.Warn().Err(err).Str("meeting_id", session.MeetingID).Msg("meeting rollup lookup failed")
		return
	}
	meeting.TotalDuration += session.DurationMillis(nowMillis)
	meeting.SessionCount++
	meeting.LastSeenAt = nowMillis
	meeting.Status = models.MeetingStatusCompleted
	c.regMu.RLock()
	if other := c.registry.LookupActive(session.MeetingID); other != nil && other.IsOpen() {
		meeting.Status = models.MeetingStatusActive
	}
	c.regMu.RUnlock()
	if err := c.gateway.PutMeeting(ctx, meeting); err != nil {
		c.log.Warn().Err(err).Str("meeting_id", session.MeetingID).Msg("meeting rollup write failed")
	}
}

// applyParticipantRollups folds a finalized session into the per-identity
// analytics aggregates.
func (c *Controller) applyParticipantRollups(ctx context.Context, session *models.Session) {
	nowMillis := c.now().UnixMilli()
	duration := session.DurationMillis(nowMillis)
	for _, p := range session.Participants {
		identity := p.Identity()
		if identity == "" {
			continue
		}
		stats, err := c.gateway.GetParticipantStats(ctx, identity)
		if errors.Is(err, store.ErrNotFound) {
			stats = &models.ParticipantStats{Identity: identity, Name: p.Name}
		} else if err != nil {
			c.log.Warn().Err(err).Str("participant", identity).Msg("participant rollup lookup failed")
			continue
		}
		if stats.Name == "" {
			stats.Name = p.Name
		}
		stats.AddSession(session, duration)
		if err := c.gateway.PutParticipantStats(ctx, stats); err != nil {
			c.log.Warn().Err(err).Str("participant", identity).Msg("participant rollup write failed")
		}
	}
}

// publish emits a lifecycle event on the bus. Best effort: marshal or
// publish failures are logged and dropped, never surfaced to the caller.
func (c *Controller) publish(kind string, session *models.Session) {
	if c.pub == nil {
		return
	}
	evt := models.NewSessionEvent(kind, session, c.now().UnixMilli())
	data, err := json.Marshal(evt)
	if err != nil {
		c.log.Error().Err(err).Str("kind", kind).Msg("lifecycle event marshal failed")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := c.pub.Publish(models.TopicSessionLifecycle, msg); err != nil {
		c.log.Warn().Err(err).Str("kind", kind).Msg("lifecycle event publish failed")
	}
}

// updateGauges refreshes the registry-derived gauges.
func (c *Controller) updateGauges() {
	c.regMu.RLock()
	open, failed := 0, 0
	for _, s := range c.registry.AllActive() {
		if s.IsOpen() {
			open++
		}
		if s.FailedToSave {
			failed++
		}
	}
	c.regMu.RUnlock()
	metrics.OpenSessions.Set(float64(open))
	metrics.FailedSaves.Set(float64(failed))
}
