package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/castscheduler/internal/logging"
)

// Handler processes one due cast.  A returned error rejects the delivery
// without requeueing it.
type Handler func(ctx context.Context, ev CastDueEvent) error

// DefaultHandleTimeout bounds one Handler call when HandleTimeout is unset.
const DefaultHandleTimeout = 30 * time.Second

// Consumer reads the casts.due queue and runs Handler for each message.
// A delivery already taken off the queue is always finished: shutdown
// cancels consuming, not the running Handler, which only stops at
// HandleTimeout.
type Consumer struct {
	URL           string
	Prefetch      int
	HandleTimeout time.Duration
	Handle        Handler
	Log           logging.Logger
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("cast consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("cast consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.Log.Warn("cast consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(CastDueQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(CastDueQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.Log.Info("cast consumer: consuming", "queue", CastDueQueue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

// deliver acks on success and rejects without requeue on failure so a
// poison message cannot loop.
func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	var ev CastDueEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.Log.Error("cast consumer: bad message", "err", err)
		_ = d.Nack(false, false)
		return
	}
	timeout := c.HandleTimeout
	if timeout <= 0 {
		timeout = DefaultHandleTimeout
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := c.Handle(hctx, ev); err != nil {
		c.Log.Error("cast consumer: handle failed", "cast_id", ev.CastID, "job_id", ev.JobID, "err", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
