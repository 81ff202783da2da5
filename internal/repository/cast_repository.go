package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/model"
)

// CastRepo provides access to the scheduled_casts table.  Every transition
// out of pending is a conditional UPDATE so a late publisher and a user
// cancelling the same cast cannot both win.
type CastRepo struct{ db database.DBTX }

func NewCastRepo(db database.DBTX) *CastRepo { return &CastRepo{db: db} }

const castColumns = "id,user_id,content,image_storage_id,scheduled_time,timezone,status,job_id,attempted_at,error_message,created_at,updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanCast(s scanner) (model.ScheduledCast, error) {
	var (
		c                  model.ScheduledCast
		image, job, errMsg sql.NullString
		attempted          sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Content, &image, &c.ScheduledTime, &c.Timezone,
		&c.Status, &job, &attempted, &errMsg, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.ScheduledCast{}, err
	}
	c.ImageStorageID = nullString(image)
	c.JobID = nullString(job)
	if attempted.Valid {
		t := attempted.Time
		c.AttemptedAt = &t
	}
	c.ErrorMessage = nullString(errMsg)
	return c, nil
}

// Create inserts a pending cast without a job and returns its ID.
func (r *CastRepo) Create(ctx context.Context, c model.ScheduledCast) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_casts (user_id,content,image_storage_id,scheduled_time,timezone,status)
		 VALUES (?,?,?,?,?,?)`,
		c.UserID, c.Content, stringOrNil(c.ImageStorageID), c.ScheduledTime.UTC(), c.Timezone, model.CastPending)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns a cast regardless of owner.
func (r *CastRepo) GetByID(ctx context.Context, id uint64) (model.ScheduledCast, error) {
	c, err := scanCast(r.db.QueryRowContext(ctx,
		"SELECT "+castColumns+" FROM scheduled_casts WHERE id=? LIMIT 1", id))
	return c, translate(err)
}

// GetOwned returns the cast only when userID owns it.
func (r *CastRepo) GetOwned(ctx context.Context, id, userID uint64) (model.ScheduledCast, error) {
	c, err := scanCast(r.db.QueryRowContext(ctx,
		"SELECT "+castColumns+" FROM scheduled_casts WHERE id=? AND user_id=? LIMIT 1", id, userID))
	return c, translate(err)
}

func (r *CastRepo) list(ctx context.Context, query string, args ...any) ([]model.ScheduledCast, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduledCast
	for rows.Next() {
		c, err := scanCast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListByUser returns the user's casts, most recently scheduled first.
func (r *CastRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ScheduledCast, error) {
	return r.list(ctx,
		"SELECT "+castColumns+" FROM scheduled_casts WHERE user_id=? ORDER BY scheduled_time DESC, id DESC",
		userID)
}

// ListRepairable returns up to limit pending casts with no publish attempt,
// ordered by (scheduled_time, id) and strictly after the cursor.  A zero
// cursor starts from the beginning.
func (r *CastRepo) ListRepairable(ctx context.Context, after CastCursor, limit int) ([]model.ScheduledCast, error) {
	const base = "SELECT " + castColumns + " FROM scheduled_casts WHERE status='pending' AND attempted_at IS NULL"
	const order = " ORDER BY scheduled_time ASC, id ASC LIMIT ?"
	if after.ID == 0 {
		return r.list(ctx, base+order, limit)
	}
	at := after.ScheduledTime.UTC()
	return r.list(ctx,
		base+" AND (scheduled_time > ? OR (scheduled_time = ? AND id > ?))"+order,
		at, at, after.ID, limit)
}

// UpdatePending rewrites content, image, time, zone and job of a pending
// cast owned by c.UserID that no publisher has started on.
func (r *CastRepo) UpdatePending(ctx context.Context, c model.ScheduledCast) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_casts SET content=?, image_storage_id=?, scheduled_time=?, timezone=?, job_id=?
		 WHERE id=? AND user_id=? AND status='pending' AND attempted_at IS NULL`,
		c.Content, stringOrNil(c.ImageStorageID), c.ScheduledTime.UTC(), c.Timezone, stringOrNil(c.JobID),
		c.ID, c.UserID)
	return affected(res, err)
}

// SetJob records the deferred job handle of a pending cast not yet being
// published.
func (r *CastRepo) SetJob(ctx context.Context, id uint64, jobID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE scheduled_casts SET job_id=? WHERE id=? AND status='pending' AND attempted_at IS NULL", jobID, id)
	return err
}

// Cancel moves the user's pending cast to cancelled and clears its job.
// A cast whose publish attempt has begun is left alone.
func (r *CastRepo) Cancel(ctx context.Context, id, userID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_casts SET status='cancelled', job_id=NULL
		 WHERE id=? AND user_id=? AND status='pending' AND attempted_at IS NULL`, id, userID)
	return affected(res, err)
}

// BeginAttempt stamps the publish attempt on a pending cast that has none.
// A non-empty jobID must still match the cast's current job.  Only one
// caller ever gets true for a given cast.
func (r *CastRepo) BeginAttempt(ctx context.Context, id uint64, jobID string, at time.Time) (bool, error) {
	q := "UPDATE scheduled_casts SET attempted_at=? WHERE id=? AND status='pending' AND attempted_at IS NULL"
	args := []any{at.UTC(), id}
	if jobID != "" {
		q += " AND job_id=?"
		args = append(args, jobID)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	return affected(res, err)
}

// MarkPosted moves a pending cast to posted.
func (r *CastRepo) MarkPosted(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE scheduled_casts SET status='posted', job_id=NULL, error_message=NULL WHERE id=? AND status='pending'", id)
	return affected(res, err)
}

// MarkFailed moves a pending cast to failed with message.
func (r *CastRepo) MarkFailed(ctx context.Context, id uint64, message string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE scheduled_casts SET status='failed', job_id=NULL, error_message=? WHERE id=? AND status='pending'",
		message, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
