// Package validation holds the pure input checks applied before a cast is
// stored.  Nothing here does I/O; callers pass the current instant in.
package validation

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxContentLength is the Farcaster cast limit in characters.
	MaxContentLength = 320
	// MaxScheduleMonths bounds how far ahead a cast may be scheduled.
	MaxScheduleMonths = 3
	// MaxImageBytes bounds an attached image.
	MaxImageBytes = 10 * 1024 * 1024
)

var (
	ErrEmptyContent    = errors.New("please enter cast content")
	ErrContentTooLong  = errors.New("content must be 320 characters or less")
	ErrMissingDateTime = errors.New("please select date and time")
	ErrInvalidDateTime = errors.New("invalid date or time")
	ErrNotInFuture     = errors.New("scheduled time must be in the future")
	ErrTooFarAhead     = errors.New("cannot schedule more than 3 months ahead")
	ErrImageTooLarge   = errors.New("image must be less than 10MB")
)

// Content checks that the cast text is non-blank and at most 320 characters.
func Content(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ScheduledAt checks that t is strictly after now and no later than three
// calendar months after now.
func ScheduledAt(t, now time.Time) error {
	if !t.After(now) {
		return ErrNotInFuture
	}
	if t.After(now.AddDate(0, MaxScheduleMonths, 0)) {
		return ErrTooFarAhead
	}
	return nil
}

// ScheduledTime combines a date (YYYY-MM-DD) and a wall clock (HH:MM or
// HH:MM:SS) in loc into an instant and validates it against now.  The
// instant is returned even when the bounds check fails so callers can show
// it; it is zero only when the inputs could not be parsed.
func ScheduledTime(date, clock string, loc *time.Location, now time.Time) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, ErrMissingDateTime
	}
	if loc == nil {
		loc = time.UTC
	}
	layout := "2006-01-02T15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "2006-01-02T15:04:05"
	}
	t, err := time.ParseInLocation(layout, date+"T"+clock, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDateTime
	}
	return t, ScheduledAt(t, now)
}

// ImageSize checks a declared upload size in bytes.
func ImageSize(size int64) error {
	if size > MaxImageBytes {
		return ErrImageTooLarge
	}
	return nil
}
