// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package models

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord rejects a record before it ever reaches the store.
// A missing ID or non-positive start time must never become a corrupted
// durable write.
var ErrInvalidRecord = errors.New("invalid record")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the singleton validator instance.
// The instance is thread-safe and caches struct metadata.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRecord checks a record's `validate` struct tags and wraps any
// failure in ErrInvalidRecord so callers can match with errors.Is.
func ValidateRecord(record interface{}) error {
	if err := getValidator().Struct(record); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}

		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidRecord, first.Field(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
