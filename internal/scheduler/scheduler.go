// Package scheduler keeps deferred publish jobs in a Redis sorted set scored
// by fire time.  A Dispatcher polls the set and hands due jobs to a Sink.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrJobNotFound is returned when a job payload is gone.
var ErrJobNotFound = errors.New("job not found")

// Job is one deferred "publish this cast" request.
type Job struct {
	ID     string    `json:"id"`
	CastID uint64    `json:"cast_id"`
	DueAt  time.Time `json:"due_at"`
}

// claimScript pops up to ARGV[2] members scored at or below ARGV[1].  ZREM
// inside the script makes each job visible to exactly one dispatcher.
var claimScript = redis.NewScript(`
	local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
	for _, id in ipairs(ids) do
		redis.call('ZREM', KEYS[1], id)
	end
	return ids
`)

// RedisScheduler stores jobs under <prefix>:due (sorted set) and
// <prefix>:job:<id> (JSON payload).
type RedisScheduler struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisScheduler(rdb redis.UniversalClient, prefix string) *RedisScheduler {
	return &RedisScheduler{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisScheduler) dueKey() string          { return s.prefix + ":due" }
func (s *RedisScheduler) jobKey(id string) string { return s.prefix + ":job:" + id }

// Schedule registers a job that fires after delay and returns its handle.
// A non-positive delay fires on the next poll.
func (s *RedisScheduler) Schedule(ctx context.Context, delay time.Duration, castID uint64) (string, error) {
	if delay < 0 {
		delay = 0
	}
	job := Job{ID: uuid.NewString(), CastID: castID, DueAt: s.now().Add(delay).UTC()}
	if err := s.put(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (s *RedisScheduler) put(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.jobKey(job.ID), body, 0)
		p.ZAdd(ctx, s.dueKey(), redis.Z{Score: float64(job.DueAt.UnixMilli()), Member: job.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.ID, err)
	}
	return nil
}

// Cancel removes a job.  Unknown ids are not an error.
func (s *RedisScheduler) Cancel(ctx context.Context, jobID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.dueKey(), jobID)
		p.Del(ctx, s.jobKey(jobID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	return nil
}

// Exists reports whether the job is still waiting to fire.
func (s *RedisScheduler) Exists(ctx context.Context, jobID string) (bool, error) {
	err := s.rdb.ZScore(ctx, s.dueKey(), jobID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Claim removes and returns up to limit jobs due at or before now.
// Payloads are deleted once read; ids without a payload are dropped.
func (s *RedisScheduler) Claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	ids, err := claimScript.Run(ctx, s.rdb, []string{s.dueKey()}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		body, err := s.rdb.GetDel(ctx, s.jobKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return jobs, fmt.Errorf("load job %s: %w", id, err)
		}
		var job Job
		if err := json.Unmarshal(body, &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Requeue puts a claimed job back with a new fire time.
func (s *RedisScheduler) Requeue(ctx context.Context, job Job, at time.Time) error {
	job.DueAt = at.UTC()
	return s.put(ctx, job)
}

// Pending returns how many jobs are waiting.
func (s *RedisScheduler) Pending(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, s.dueKey()).Result()
}
