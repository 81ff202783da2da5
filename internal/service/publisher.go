package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/metrics"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/neynar"
	"github.com/iliyamo/castscheduler/internal/repository"
)

// MsgSignerNotFound is stored on casts whose owner has no linked signer.
const MsgSignerNotFound = "Neynar signer not found"

// Publisher runs when a cast's job fires.  It makes at most one publish
// attempt per cast and records the outcome on the cast; publish failures are
// never returned.  Only storage errors are, so the delivery can be rejected.
type Publisher struct {
	db      database.DBTX
	repos   repository.Manager
	images  ImageStore
	poster  CastPoster
	log     logging.Logger
	metrics metrics.Metrics
	now     func() time.Time
}

func NewPublisher(db database.DBTX, repos repository.Manager, images ImageStore, poster CastPoster, log logging.Logger, m metrics.Metrics) *Publisher {
	return &Publisher{db: db, repos: repos, images: images, poster: poster, log: log, metrics: m, now: time.Now}
}

// Publish posts cast castID for job jobID.  An empty jobID skips the job
// check.  The attempt is stamped on the cast before Neynar is called, so a
// redelivered or rescheduled job never posts the same cast twice.
func (p *Publisher) Publish(ctx context.Context, castID uint64, jobID string) error {
	log := p.log.With("cast_id", castID, "job_id", jobID)
	casts := p.repos.Casts(p.db)

	cast, err := casts.GetByID(ctx, castID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Debug("cast gone, nothing to publish")
		return nil
	}
	if err != nil {
		return err
	}
	if !cast.Status.CanTransition(model.CastPosted) {
		p.skip(log, "cast no longer pending", "status", cast.Status)
		return nil
	}
	if cast.Publishing() {
		p.skip(log, "publish already attempted", "attempted_at", *cast.AttemptedAt)
		return nil
	}
	if jobID != "" && (cast.JobID == nil || *cast.JobID != jobID) {
		p.skip(log, "stale job, cast was rescheduled")
		return nil
	}

	account, err := p.repos.Accounts(p.db).GetByUserProvider(ctx, cast.UserID, model.ProviderNeynar)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err != nil || account.Secret == "" {
		return p.fail(ctx, log, castID, MsgSignerNotFound)
	}

	req := neynar.CastRequest{SignerUUID: account.Secret, Text: cast.Content}
	if cast.ImageStorageID != nil {
		url, err := p.images.PublicURL(ctx, *cast.ImageStorageID)
		if err != nil {
			log.Warn("image url lookup failed, posting text only", "storage_id", *cast.ImageStorageID, "err", err)
		}
		if url != "" {
			req.Embeds = []neynar.Embed{{URL: url}}
		}
	}

	started, err := casts.BeginAttempt(ctx, castID, jobID, p.now())
	if err != nil {
		return err
	}
	if !started {
		p.skip(log, "cast changed before publishing")
		return nil
	}

	res, err := p.poster.PublishCast(ctx, req)
	if err != nil {
		return p.record(log, p.fail(ctx, log, castID, failureMessage(err)), metrics.ResultFailed)
	}

	ok, err := casts.MarkPosted(ctx, castID)
	if err != nil {
		return p.record(log, err, metrics.ResultPosted)
	}
	if !ok {
		log.Warn("cast left pending while publishing; posted status not recorded")
	}
	p.metrics.CastPublished(metrics.ResultPosted)
	log.Info("cast posted", "hash", res.Cast.Hash, "embeds", len(req.Embeds))
	return nil
}

// record reports an outcome that could not be written after the attempt was
// stamped.  The cast stays pending with attempted_at set and is never
// retried; an operator has to settle it.
func (p *Publisher) record(log logging.Logger, err error, outcome string) error {
	if err == nil {
		return nil
	}
	log.Error("publish outcome not recorded, cast needs manual review", "outcome", outcome, "err", err)
	return fmt.Errorf("record %s outcome: %w", outcome, err)
}

func (p *Publisher) skip(log logging.Logger, msg string, args ...any) {
	p.metrics.CastPublished(metrics.ResultSkipped)
	log.Info(msg, args...)
}

func (p *Publisher) fail(ctx context.Context, log logging.Logger, castID uint64, msg string) error {
	ok, err := p.repos.Casts(p.db).MarkFailed(ctx, castID, msg)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn("cast left pending while publishing; failure not recorded", "reason", msg)
	}
	p.metrics.CastPublished(metrics.ResultFailed)
	log.Warn("cast failed", "reason", msg)
	return nil
}

func failureMessage(err error) string {
	var apiErr *neynar.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Failed to post cast: %d %s", apiErr.Status, apiErr.Body)
	}
	return err.Error()
}
