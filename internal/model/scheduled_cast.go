package model

import "time"

// CastStatus is the lifecycle state of a scheduled cast.
type CastStatus string

const (
	CastPending   CastStatus = "pending"
	CastPosted    CastStatus = "posted"
	CastFailed    CastStatus = "failed"
	CastCancelled CastStatus = "cancelled"
)

// Valid reports whether s is one of the known states.
func (s CastStatus) Valid() bool {
	switch s {
	case CastPending, CastPosted, CastFailed, CastCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s CastStatus) Terminal() bool {
	return s == CastPosted || s == CastFailed || s == CastCancelled
}

// CanTransition reports whether moving from s to next is allowed.  Pending
// may stay pending (an edit) or move to any terminal state; terminal states
// never change.
func (s CastStatus) CanTransition(next CastStatus) bool {
	if s != CastPending {
		return false
	}
	return next == CastPending || next.Terminal()
}

// ScheduledCast is a post waiting to be, or already, published.
// ImageStorageID is an object store handle, never a raw URL.  JobID is set
// only while pending and ErrorMessage only when failed.  Timezone is for
// display; ScheduledTime is the absolute instant.  AttemptedAt is set once
// a publish attempt has begun and is never cleared.
type ScheduledCast struct {
	ID             uint64     // scheduled_casts.id
	UserID         uint64     // scheduled_casts.user_id
	Content        string     // scheduled_casts.content
	ImageStorageID *string    // scheduled_casts.image_storage_id (nullable)
	ScheduledTime  time.Time  // scheduled_casts.scheduled_time
	Timezone       string     // scheduled_casts.timezone
	Status         CastStatus // scheduled_casts.status
	JobID          *string    // scheduled_casts.job_id (nullable)
	AttemptedAt    *time.Time // scheduled_casts.attempted_at (nullable)
	ErrorMessage   *string    // scheduled_casts.error_message (nullable)
	CreatedAt      time.Time  // scheduled_casts.created_at
	UpdatedAt      time.Time  // scheduled_casts.updated_at
}

// Publishing reports whether a publish attempt has begun.  Such a cast
// must not be edited, cancelled or rescheduled even while still pending.
func (c ScheduledCast) Publishing() bool { return c.AttemptedAt != nil }

// Upcoming reports whether the cast is still waiting to be published.
func (c ScheduledCast) Upcoming(now time.Time) bool {
	return c.Status == CastPending && c.ScheduledTime.After(now)
}
