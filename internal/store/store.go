// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/logging"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

// Sentinel errors for the taxonomy callers match on.
var (
	// ErrStoreUnavailable means the store cannot be used right now: the
	// database never opened, or the write breaker is open. Durable
	// operations short-circuit and the service runs registry-only.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrWriteFailed wraps a put/delete that failed after retries while
	// the store was otherwise available.
	ErrWriteFailed = errors.New("store write failed")

	// ErrNotFound is the explicit empty result for lookups.
	ErrNotFound = errors.New("record not found")
)

// Key prefixes for BadgerDB storage.
const (
	meetingKeyPrefix        = "meeting:"
	sessionKeyPrefix        = "session:"
	sessionMeetingKeyPrefix = "session_meeting:"
	sessionOpenKeyPrefix    = "session_open:"
	sessionDateKeyPrefix    = "session_date:"
	minuteKeyPrefix         = "minute:"
	participantKeyPrefix    = "participant:"
)

// Store is the BadgerDB-backed persistence gateway.
// A Store with a nil db is a valid degraded instance: every operation
// returns ErrStoreUnavailable and the caller keeps volatile state only.
type Store struct {
	db     *badger.DB
	writer *writer
	log    zerolog.Logger
}

// Options tunes the write path.
type Options struct {
	// RetryAttempts is the number of in-call retries per write. Default 3.
	RetryAttempts int
	// RetryDelay is the base delay between retries (doubled per attempt).
	// Default 50ms.
	RetryDelay time.Duration
	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the circuit breaker. Default 5.
	BreakerFailureThreshold uint32
	// BreakerTimeout is how long the breaker stays open before probing.
	// Default 30s.
	BreakerTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 50 * time.Millisecond
	}
	if o.BreakerFailureThreshold == 0 {
		o.BreakerFailureThreshold = 5
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 30 * time.Second
	}
}

// Open opens (or creates) the Badger database at path and returns a Store.
func Open(path string, opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(path)
	badgerOpts.Logger = nil // Badger's own logger is too chatty; we log around it

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", ErrStoreUnavailable, path, err)
	}
	return New(db, opts), nil
}

// New wraps an already opened Badger database.
func New(db *badger.DB, opts Options) *Store {
	opts.applyDefaults()
	s := &Store{
		db:  db,
		log: logging.With().Str("component", "store").Logger(),
	}
	s.writer = newWriter(s, opts)
	return s
}

// Unavailable returns a degraded Store whose operations all fail with
// ErrStoreUnavailable. Used when the database cannot be opened at startup.
func Unavailable() *Store {
	return New(nil, Options{})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Available reports whether the store can currently serve durable writes.
func (s *Store) Available() bool {
	return s.db != nil && !s.writer.open()
}

// RunGC runs one Badger value-log garbage collection pass.
// badger.ErrNoRewrite simply means there was nothing to collect.
func (s *Store) RunGC(discardRatio float64) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// ---- meetings ----

// PutMeeting upserts a meeting record.
func (s *Store) PutMeeting(ctx context.Context, m *models.Meeting) error {
	if err := models.ValidateRecord(m); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal meeting: %w", err)
	}
	return s.writer.write(ctx, "meeting", func(txn *badger.Txn) error {
		return txn.Set([]byte(meetingKeyPrefix+m.ID), data)
	})
}

// GetMeeting retrieves a meeting by id.
func (s *Store) GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error) {
	var m models.Meeting
	if err := s.view(func(txn *badger.Txn) error {
		return s.getJSON(txn, meetingKeyPrefix+meetingID, &m)
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// AllMeetings returns every meeting record.
func (s *Store) AllMeetings(ctx context.Context) ([]*models.Meeting, error) {
	var out []*models.Meeting
	err := s.scan(meetingKeyPrefix, func(val []byte) error {
		var m models.Meeting
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		out = append(out, &m)
		return nil
	})
	return out, err
}

// ---- sessions ----

// PutSession upserts a session record and keeps its secondary indexes
// consistent in the same transaction: the per-meeting index, the date
// index, and the open-session marker (set while open, cleared once the
// session is finalized). Minute logs are stored separately.
func (s *Store) PutSession(ctx context.Context, session *models.Session) error {
	if err := models.ValidateRecord(session); err != nil {
		return err
	}
	if session.Date == "" {
		session.Date = models.DateOf(session.StartTime)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.writer.write(ctx, "session", func(txn *badger.Txn) error {
		if err := txn.Set([]byte(sessionKeyPrefix+session.ID), data); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		meetingKey := []byte(sessionMeetingKeyPrefix + session.MeetingID + ":" + session.ID)
		if err := txn.Set(meetingKey, []byte(session.ID)); err != nil {
			return fmt.Errorf("set meeting index: %w", err)
		}
		dateKey := []byte(sessionDateKeyPrefix + session.Date + ":" + session.ID)
		if err := txn.Set(dateKey, []byte(session.ID)); err != nil {
			return fmt.Errorf("set date index: %w", err)
		}

		openKey := []byte(sessionOpenKeyPrefix + session.ID)
		if session.IsOpen() {
			return txn.Set(openKey, []byte(session.ID))
		}
		if err := txn.Delete(openKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("clear open marker: %w", err)
		}
		return nil
	})
}

// GetSession retrieves a session by id. Minute logs are not attached;
// use MinuteLogs for those.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := s.view(func(txn *badger.Txn) error {
		return s.getJSON(txn, sessionKeyPrefix+sessionID, &session)
	}); err != nil {
		return nil, err
	}
	return &session, nil
}

// OpenSessions returns every persisted session whose open marker is still
// set, i.e. sessions with no end time. Recovery runs on this set.
func (s *Store) OpenSessions(ctx context.Context) ([]*models.Session, error) {
	var ids []string
	if err := s.scan(sessionOpenKeyPrefix, func(val []byte) error {
		ids = append(ids, string(val))
		return nil
	}); err != nil {
		return nil, err
	}
	return s.sessionsByIDs(ids)
}

// SessionsByMeeting returns every session recorded for a meeting.
func (s *Store) SessionsByMeeting(ctx context.Context, meetingID string) ([]*models.Session, error) {
	var ids []string
	if err := s.scan(sessionMeetingKeyPrefix+meetingID+":", func(val []byte) error {
		ids = append(ids, string(val))
		return nil
	}); err != nil {
		return nil, err
	}
	return s.sessionsByIDs(ids)
}

// SessionsByDateRange returns sessions whose start date falls inside
// [from, to], both YYYY-MM-DD inclusive. Empty bounds are unbounded.
func (s *Store) SessionsByDateRange(ctx context.Context, from, to string) ([]*models.Session, error) {
	var ids []string
	if err := s.scan(sessionDateKeyPrefix, func(val []byte) error {
		ids = append(ids, string(val))
		return nil
	}); err != nil {
		return nil, err
	}
	sessions, err := s.sessionsByIDs(ids)
	if err != nil {
		return nil, err
	}
	if from == "" && to == "" {
		return sessions, nil
	}
	filtered := sessions[:0]
	for _, sess := range sessions {
		if from != "" && sess.Date < from {
			continue
		}
		if to != "" && sess.Date > to {
			continue
		}
		filtered = append(filtered, sess)
	}
	return filtered, nil
}

// AllSessions returns every persisted session.
func (s *Store) AllSessions(ctx context.Context) ([]*models.Session, error) {
	var out []*models.Session
	err := s.scan(sessionKeyPrefix, func(val []byte) error {
		var sess models.Session
		if err := json.Unmarshal(val, &sess); err != nil {
			return err
		}
		out = append(out, &sess)
		return nil
	})
	return out, err
}

// DeleteSession removes a session, its indexes, and its minute logs.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil // already deleted
	}
	if err != nil {
		return err
	}

	return s.writer.write(ctx, "session_delete", func(txn *badger.Txn) error {
		keys := [][]byte{
			[]byte(sessionKeyPrefix + sessionID),
			[]byte(sessionOpenKeyPrefix + sessionID),
			[]byte(sessionMeetingKeyPrefix + session.MeetingID + ":" + sessionID),
			[]byte(sessionDateKeyPrefix + session.Date + ":" + sessionID),
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return s.deleteByPrefix(txn, minuteKeyPrefix+sessionID+":")
	})
}

// DeleteMeeting removes a meeting and cascades to all of its sessions and
// their minute logs.
func (s *Store) DeleteMeeting(ctx context.Context, meetingID string) error {
	sessions, err := s.SessionsByMeeting(ctx, meetingID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, sess := range sessions {
		if err := s.DeleteSession(ctx, sess.ID); err != nil {
			return err
		}
	}
	return s.writer.write(ctx, "meeting_delete", func(txn *badger.Txn) error {
		err := txn.Delete([]byte(meetingKeyPrefix + meetingID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// ---- minute logs ----

// PutMinuteLogs writes a session's minute logs in one transaction.
// Keys include the minute index, so re-delivered minutes overwrite.
func (s *Store) PutMinuteLogs(ctx context.Context, sessionID string, logs []models.MinuteLog) error {
	if len(logs) == 0 {
		return nil
	}
	encoded := make(map[string][]byte, len(logs))
	for i := range logs {
		if err := models.ValidateRecord(&logs[i]); err != nil {
			return err
		}
		data, err := json.Marshal(&logs[i])
		if err != nil {
			return fmt.Errorf("marshal minute log: %w", err)
		}
		encoded[minuteKey(sessionID, logs[i].Minute)] = data
	}
	return s.writer.write(ctx, "minute_logs", func(txn *badger.Txn) error {
		for key, data := range encoded {
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// MinuteLogs returns a session's minute logs ordered by minute index.
func (s *Store) MinuteLogs(ctx context.Context, sessionID string) ([]models.MinuteLog, error) {
	var out []models.MinuteLog
	err := s.scan(minuteKeyPrefix+sessionID+":", func(val []byte) error {
		var m models.MinuteLog
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

// ---- participant aggregates ----

// PutParticipantStats upserts a participant rollup.
func (s *Store) PutParticipantStats(ctx context.Context, ps *models.ParticipantStats) error {
	if err := models.ValidateRecord(ps); err != nil {
		return err
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("marshal participant stats: %w", err)
	}
	return s.writer.write(ctx, "participant", func(txn *badger.Txn) error {
		return txn.Set([]byte(participantKeyPrefix+ps.Identity), data)
	})
}

// GetParticipantStats retrieves one participant rollup.
func (s *Store) GetParticipantStats(ctx context.Context, identity string) (*models.ParticipantStats, error) {
	var ps models.ParticipantStats
	if err := s.view(func(txn *badger.Txn) error {
		return s.getJSON(txn, participantKeyPrefix+identity, &ps)
	}); err != nil {
		return nil, err
	}
	return &ps, nil
}

// AllParticipantStats returns every participant rollup.
func (s *Store) AllParticipantStats(ctx context.Context) ([]*models.ParticipantStats, error) {
	var out []*models.ParticipantStats
	err := s.scan(participantKeyPrefix, func(val []byte) error {
		var ps models.ParticipantStats
		if err := json.Unmarshal(val, &ps); err != nil {
			return err
		}
		out = append(out, &ps)
		return nil
	})
	return out, err
}

// ---- internals ----

func minuteKey(sessionID string, minute int) string {
	return fmt.Sprintf("%s%s:%06d", minuteKeyPrefix, sessionID, minute)
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	return s.db.View(fn)
}

// getJSON reads one key into out, mapping missing keys to ErrNotFound.
func (s *Store) getJSON(txn *badger.Txn, key string, out interface{}) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// scan iterates every value under a key prefix.
func (s *Store) scan(prefix string, fn func(val []byte) error) error {
	return s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				return fn(val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) sessionsByIDs(ids []string) ([]*models.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]*models.Session, 0, len(ids))
	err := s.view(func(txn *badger.Txn) error {
		for _, id := range ids {
			var sess models.Session
			err := s.getJSON(txn, sessionKeyPrefix+id, &sess)
			if errors.Is(err, ErrNotFound) {
				continue // index entry outlived the record, skip
			}
			if err != nil {
				return err
			}
			out = append(out, &sess)
		}
		return nil
	})
	return out, err
}

func (s *Store) deleteByPrefix(txn *badger.Txn, prefix string) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	p := []byte(prefix)
	var keys [][]byte
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
	}
	return nil
}
