package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/metrics"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/repository"
	"github.com/iliyamo/castscheduler/internal/timezones"
	"github.com/iliyamo/castscheduler/internal/validation"
)

// List views.
const (
	ViewAll      = ""
	ViewUpcoming = "upcoming"
	ViewPast     = "past"
)

// reconcileGrace leaves casts that just became due alone; their job is most
// likely on its way through the broker.
const reconcileGrace = time.Minute

// CastInput is the editable part of a cast.  ScheduledTime wins when set;
// otherwise Date and Clock are read as wall time in Timezone.  An empty
// Timezone falls back to the caller's profile timezone.
type CastInput struct {
	Content        string
	ImageStorageID *string
	ScheduledTime  time.Time
	Date           string
	Clock          string
	Timezone       string
}

// ListFilter narrows List.  Status applies on top of View.
type ListFilter struct {
	View   string
	Status model.CastStatus
}

// CastService is the scheduled cast store.  It is the only code that
// creates or cancels deferred jobs.
type CastService struct {
	db      database.DBTX
	tx      database.Transactor
	repos   repository.Manager
	jobs    JobScheduler
	log     logging.Logger
	metrics metrics.Metrics
	now     func() time.Time
}

func NewCastService(db database.DBTX, tx database.Transactor, repos repository.Manager, jobs JobScheduler, log logging.Logger, m metrics.Metrics) *CastService {
	return &CastService{db: db, tx: tx, repos: repos, jobs: jobs, log: log, metrics: m, now: time.Now}
}

// prepare validates in and returns the normalized cast fields.
func (s *CastService) prepare(in CastInput, profile model.UserProfile, now time.Time) (model.ScheduledCast, error) {
	if err := validation.Content(in.Content); err != nil {
		return model.ScheduledCast{}, invalid(err)
	}

	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = profile.Timezone
	}
	if !timezones.Valid(tz) {
		return model.ScheduledCast{}, invalid(fmt.Errorf("unknown timezone %q", tz))
	}

	at := in.ScheduledTime
	if at.IsZero() {
		loc, _ := time.LoadLocation(tz)
		t, err := validation.ScheduledTime(in.Date, in.Clock, loc, now)
		if err != nil {
			return model.ScheduledCast{}, &ValidationError{Reason: err, ScheduledTime: t}
		}
		at = t
	} else if err := validation.ScheduledAt(at, now); err != nil {
		return model.ScheduledCast{}, &ValidationError{Reason: err, ScheduledTime: at}
	}

	var image *string
	if in.ImageStorageID != nil && strings.TrimSpace(*in.ImageStorageID) != "" {
		id := strings.TrimSpace(*in.ImageStorageID)
		image = &id
	}

	return model.ScheduledCast{
		Content:        in.Content,
		ImageStorageID: image,
		ScheduledTime:  at.UTC(),
		Timezone:       tz,
		Status:         model.CastPending,
	}, nil
}

func (s *CastService) profile(ctx context.Context, callerID uint64) (model.UserProfile, error) {
	if callerID == 0 {
		return model.UserProfile{}, ErrNotAuthenticated
	}
	p, err := s.repos.Profiles(s.db).GetByUserID(ctx, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.UserProfile{}, ErrProfileRequired
	}
	return p, err
}

func (s *CastService) owned(ctx context.Context, callerID, castID uint64) (model.ScheduledCast, error) {
	if callerID == 0 {
		return model.ScheduledCast{}, ErrNotAuthenticated
	}
	c, err := s.repos.Casts(s.db).GetOwned(ctx, castID, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ScheduledCast{}, ErrNotFound
	}
	return c, err
}

// cancelJob is best effort; a job that already fired is caught by the
// publisher's job id check.
func (s *CastService) cancelJob(ctx context.Context, castID uint64, jobID string) {
	if jobID == "" {
		return
	}
	if err := s.jobs.Cancel(ctx, jobID); err != nil {
		s.log.Warn("cancel job failed", "cast_id", castID, "job_id", jobID, "err", err)
	}
}

// Create stores a pending cast and arranges its deferred publish.
func (s *CastService) Create(ctx context.Context, callerID uint64, in CastInput) (model.ScheduledCast, error) {
	profile, err := s.profile(ctx, callerID)
	if err != nil {
		return model.ScheduledCast{}, err
	}
	now := s.now()
	cast, err := s.prepare(in, profile, now)
	if err != nil {
		return model.ScheduledCast{}, err
	}
	cast.UserID = callerID

	var jobID string
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx database.DBTX) error {
		casts := s.repos.Casts(tx)
		id, err := casts.Create(ctx, cast)
		if err != nil {
			return err
		}
		cast.ID = id
		jobID, err = s.jobs.Schedule(ctx, cast.ScheduledTime.Sub(now), id)
		if err != nil {
			return fmt.Errorf("schedule cast %d: %w", id, err)
		}
		return casts.SetJob(ctx, id, jobID)
	})
	if err != nil {
		s.cancelJob(ctx, cast.ID, jobID)
		return model.ScheduledCast{}, err
	}

	cast.JobID = &jobID
	cast.CreatedAt, cast.UpdatedAt = now, now
	s.metrics.CastScheduled()
	s.log.Info("cast scheduled", "cast_id", cast.ID, "user_id", callerID, "at", cast.ScheduledTime, "job_id", jobID)
	return cast, nil
}

// Edit replaces the fields of a pending cast and moves its job to the new
// time.  The new job is live before the old one is cancelled.  A cast that
// is being published can no longer be edited.
func (s *CastService) Edit(ctx context.Context, callerID, castID uint64, in CastInput) (model.ScheduledCast, error) {
	current, err := s.owned(ctx, callerID, castID)
	if err != nil {
		return model.ScheduledCast{}, err
	}
	if !current.Status.CanTransition(model.CastPending) || current.Publishing() {
		return model.ScheduledCast{}, ErrInvalidState
	}
	profile, err := s.profile(ctx, callerID)
	if err != nil {
		return model.ScheduledCast{}, err
	}
	now := s.now()
	next, err := s.prepare(in, profile, now)
	if err != nil {
		return model.ScheduledCast{}, err
	}
	next.ID, next.UserID = current.ID, current.UserID
	next.CreatedAt = current.CreatedAt

	jobID, err := s.jobs.Schedule(ctx, next.ScheduledTime.Sub(now), castID)
	if err != nil {
		return model.ScheduledCast{}, fmt.Errorf("schedule cast %d: %w", castID, err)
	}
	next.JobID = &jobID

	var updated bool
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx database.DBTX) error {
		updated, err = s.repos.Casts(tx).UpdatePending(ctx, next)
		return err
	})
	if err != nil || !updated {
		s.cancelJob(ctx, castID, jobID)
		if err != nil {
			return model.ScheduledCast{}, err
		}
		return model.ScheduledCast{}, ErrInvalidState
	}

	if current.JobID != nil {
		s.cancelJob(ctx, castID, *current.JobID)
	}
	next.UpdatedAt = now
	s.log.Info("cast rescheduled", "cast_id", castID, "at", next.ScheduledTime, "job_id", jobID)
	return next, nil
}

// Delete cancels a pending cast.  Deleting a cast that already left
// pending, or whose publish has begun, changes nothing and is not an error.
func (s *CastService) Delete(ctx context.Context, callerID, castID uint64) error {
	cast, err := s.owned(ctx, callerID, castID)
	if err != nil {
		return err
	}
	if !cast.Status.CanTransition(model.CastCancelled) || cast.Publishing() {
		return nil
	}
	cancelled, err := s.repos.Casts(s.db).Cancel(ctx, castID, callerID)
	if err != nil {
		return err
	}
	if !cancelled {
		return nil
	}
	if cast.JobID != nil {
		s.cancelJob(ctx, castID, *cast.JobID)
	}
	s.metrics.CastCancelled()
	s.log.Info("cast cancelled", "cast_id", castID, "user_id", callerID)
	return nil
}

// Get returns one of the caller's casts.
func (s *CastService) Get(ctx context.Context, callerID, castID uint64) (model.ScheduledCast, error) {
	return s.owned(ctx, callerID, castID)
}

// List returns the caller's casts, latest scheduled time first.
func (s *CastService) List(ctx context.Context, callerID uint64, f ListFilter) ([]model.ScheduledCast, error) {
	if callerID == 0 {
		return nil, ErrNotAuthenticated
	}
	switch f.View {
	case ViewAll, ViewUpcoming, ViewPast:
	default:
		return nil, invalid(fmt.Errorf("unknown view %q", f.View))
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid(fmt.Errorf("unknown status %q", f.Status))
	}

	all, err := s.repos.Casts(s.db).ListByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.ScheduledCast, 0, len(all))
	for _, c := range all {
		if f.View == ViewUpcoming && !c.Upcoming(now) {
			continue
		}
		if f.View == ViewPast && c.Upcoming(now) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Reconcile gives every pending cast without a live job a new one.  It
// repairs jobs lost to a Redis flush or a delivery that errored before a
// publish attempt began.  Casts whose attempt has begun are never touched.
// Pending casts are read in pages of batch rows until a short page.  It
// returns how many casts were rescheduled.
func (s *CastService) Reconcile(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		return 0, invalid(fmt.Errorf("batch must be positive, got %d", batch))
	}
	casts := s.repos.Casts(s.db)
	now := s.now()
	fixed := 0
	var cursor repository.CastCursor
	for {
		page, err := casts.ListRepairable(ctx, cursor, batch)
		if err != nil {
			return fixed, err
		}
		for _, c := range page {
			repaired, err := s.repair(ctx, c, now)
			if err != nil {
				return fixed, err
			}
			if repaired {
				fixed++
			}
		}
		if len(page) < batch {
			return fixed, nil
		}
		last := page[len(page)-1]
		cursor = repository.CastCursor{ScheduledTime: last.ScheduledTime, ID: last.ID}
	}
}

func (s *CastService) repair(ctx context.Context, c model.ScheduledCast, now time.Time) (bool, error) {
	if c.ScheduledTime.Before(now) && !c.ScheduledTime.Before(now.Add(-reconcileGrace)) {
		return false, nil
	}
	if c.JobID != nil {
		ok, err := s.jobs.Exists(ctx, *c.JobID)
		if err != nil || ok {
			return false, err
		}
	}
	jobID, err := s.jobs.Schedule(ctx, c.ScheduledTime.Sub(now), c.ID)
	if err != nil {
		return false, err
	}
	if err := s.repos.Casts(s.db).SetJob(ctx, c.ID, jobID); err != nil {
		s.cancelJob(ctx, c.ID, jobID)
		return false, err
	}
	s.log.Warn("rescheduled orphaned cast", "cast_id", c.ID, "job_id", jobID, "at", c.ScheduledTime)
	return true, nil
}
