package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/metrics"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newScheduler(t *testing.T) (*RedisScheduler, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewRedisScheduler(rdb, "test")
	s.now = clk.Now
	return s, clk
}

func TestSchedule_ExistsAndCancel(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	id, err := s.Schedule(ctx, time.Hour, 7)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Cancel(ctx, id))
	ok, err = s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	// cancelling twice, or an unknown id, is fine
	require.NoError(t, s.Cancel(ctx, id))
	require.NoError(t, s.Cancel(ctx, "no-such-job"))
}

func TestClaim_OnlyDueJobsOnce(t *testing.T) {
	s, clk := newScheduler(t)
	ctx := context.Background()

	soon, err := s.Schedule(ctx, time.Minute, 1)
	require.NoError(t, err)
	_, err = s.Schedule(ctx, time.Hour, 2)
	require.NoError(t, err)

	jobs, err := s.Claim(ctx, clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	clk.Advance(2 * time.Minute)
	jobs, err = s.Claim(ctx, clk.Now(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, soon, jobs[0].ID)
	assert.Equal(t, uint64(1), jobs[0].CastID)

	jobs, err = s.Claim(ctx, clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs, "claimed job must not be handed out twice")

	n, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSchedule_NegativeDelayIsDueNow(t *testing.T) {
	s, clk := newScheduler(t)
	ctx := context.Background()

	_, err := s.Schedule(ctx, -time.Hour, 3)
	require.NoError(t, err)

	jobs, err := s.Claim(ctx, clk.Now(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, clk.Now(), jobs[0].DueAt)
}

func TestClaim_CancelledJobNeverFires(t *testing.T) {
	s, clk := newScheduler(t)
	ctx := context.Background()

	id, err := s.Schedule(ctx, time.Second, 4)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(ctx, id))

	clk.Advance(time.Minute)
	jobs, err := s.Claim(ctx, clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

type recordingSink struct {
	mu   sync.Mutex
	got  []Job
	fail map[uint64]bool
}

func (r *recordingSink) Dispatch(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[job.CastID] {
		return errors.New("broker down")
	}
	r.got = append(r.got, job)
	return nil
}

// backlog records the pending gauge and discards the other metrics.
type backlog struct {
	metrics.Metrics
	seen []int64
}

func (b *backlog) JobsPending(n int64) { b.seen = append(b.seen, n) }

func TestDispatcher_Tick(t *testing.T) {
	s, clk := newScheduler(t)
	ctx := context.Background()
	sink := &recordingSink{fail: map[uint64]bool{2: true}}
	gauge := &backlog{Metrics: metrics.Nop()}
	d := NewDispatcher(s, sink, time.Second, 1, logging.Nop(), gauge)

	_, err := s.Schedule(ctx, 0, 1)
	require.NoError(t, err)
	failing, err := s.Schedule(ctx, 0, 2)
	require.NoError(t, err)
	_, err = s.Schedule(ctx, time.Hour, 3)
	require.NoError(t, err)

	sent, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, sink.got, 1)
	assert.Equal(t, uint64(1), sink.got[0].CastID)

	// the failed job is back, one interval later
	ok, err := s.Exists(ctx, failing)
	require.NoError(t, err)
	assert.True(t, ok)

	sink.fail = nil
	clk.Advance(time.Second)
	sent, err = d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, uint64(2), sink.got[1].CastID)

	// the requeued job and the one due in an hour, then only the latter
	assert.Equal(t, []int64{2, 1}, gauge.seen)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	s, _ := newScheduler(t)
	d := NewDispatcher(s, SinkFunc(func(context.Context, Job) error { return nil }),
		10*time.Millisecond, 10, logging.Nop(), metrics.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
