package scheduler

import (
	"context"
	"time"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/metrics"
)

// Sink receives due jobs.  Returning an error puts the job back for a later
// poll.
type Sink interface {
	Dispatch(ctx context.Context, job Job) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, job Job) error

func (f SinkFunc) Dispatch(ctx context.Context, job Job) error { return f(ctx, job) }

// Dispatcher moves due jobs from the scheduler to a sink.
type Dispatcher struct {
	sched    *RedisScheduler
	sink     Sink
	interval time.Duration
	batch    int
	log      logging.Logger
	metrics  metrics.Metrics
}

func NewDispatcher(sched *RedisScheduler, sink Sink, interval time.Duration, batch int, log logging.Logger, m metrics.Metrics) *Dispatcher {
	return &Dispatcher{sched: sched, sink: sink, interval: interval, batch: batch, log: log, metrics: m}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("dispatcher started", "interval", d.interval, "batch", d.batch)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.Tick(ctx); err != nil {
				d.log.Error("dispatch tick failed", "err", err)
			}
		}
	}
}

// Tick drains every job due now and returns how many reached the sink.
// The scheduler backlog left afterwards is reported as a gauge.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	sent := 0
	for {
		now := d.sched.now()
		jobs, err := d.sched.Claim(ctx, now, d.batch)
		if err != nil {
			return sent, err
		}
		for _, job := range jobs {
			if err := d.sink.Dispatch(ctx, job); err != nil {
				d.metrics.JobDispatched(metrics.ResultRetry)
				d.log.Warn("dispatch failed, requeueing", "job_id", job.ID, "cast_id", job.CastID, "err", err)
				if rerr := d.sched.Requeue(ctx, job, now.Add(d.interval)); rerr != nil {
					d.log.Error("requeue failed, job lost", "job_id", job.ID, "cast_id", job.CastID, "err", rerr)
				}
				continue
			}
			d.metrics.JobDispatched(metrics.ResultOK)
			sent++
		}
		if len(jobs) < d.batch {
			d.reportPending(ctx)
			return sent, nil
		}
	}
}

func (d *Dispatcher) reportPending(ctx context.Context) {
	n, err := d.sched.Pending(ctx)
	if err != nil {
		d.log.Warn("pending job count failed", "err", err)
		return
	}
	d.metrics.JobsPending(n)
}
