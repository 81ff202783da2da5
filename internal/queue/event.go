// Package queue carries due cast jobs over RabbitMQ from the dispatcher to
// the publishing consumer.
package queue

import "time"

// CastDueQueue is the durable queue due jobs are routed to.
const CastDueQueue = "casts.due"

// CastDueEvent is published when a cast's deferred job fires.  JobID lets the
// consumer drop deliveries for a job that was replaced by an edit.
type CastDueEvent struct {
	CastID uint64    `json:"cast_id"`
	JobID  string    `json:"job_id"`
	DueAt  time.Time `json:"due_at"`
}
