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
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/metrics"
)

// writer is the single durable-write path. Fallback behavior that used to
// be scattered across call sites lives here: bounded retries for transient
// failures, a circuit breaker that converts a persistently failing store
// into explicit ErrStoreUnavailable, and write metrics.
type writer struct {
	store   *Store
	opts    Options
	breaker *gobreaker.CircuitBreaker[any]
}

func newWriter(s *Store, opts Options) *writer {
	settings := gobreaker.Settings{
		Name:    "badger-writes",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store write breaker state changed")
			if to == gobreaker.StateOpen {
				metrics.StoreDegraded.Set(1)
			} else if to == gobreaker.StateClosed {
				metrics.StoreDegraded.Set(0)
			}
		},
	}
	return &writer{
		store:   s,
		opts:    opts,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// open reports whether the breaker currently rejects writes.
func (w *writer) open() bool {
	return w.breaker.State() == gobreaker.StateOpen
}

// write runs one Badger update transaction through retries and the breaker.
// record labels the write for metrics and logs.
func (w *writer) write(ctx context.Context, record string, fn func(txn *badger.Txn) error) error {
	if w.store.db == nil {
		return ErrStoreUnavailable
	}

	start := time.Now()
	_, err := w.breaker.Execute(func() (any, error) {
		var lastErr error
		delay := w.opts.RetryDelay
		for attempt := 0; attempt < w.opts.RetryAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lastErr = w.store.db.Update(fn)
			if lastErr == nil {
				return nil, nil
			}
			w.store.log.Debug().
				Err(lastErr).
				Str("record", record).
				Int("attempt", attempt+1).
				Msg("store write attempt failed")
			if attempt < w.opts.RetryAttempts-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				delay *= 2
			}
		}
		return nil, lastErr
	})
	metrics.ObserveStoreWrite(record, start, err)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: write breaker open (%s)", ErrStoreUnavailable, record)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, record, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, record, err)
	}
}
