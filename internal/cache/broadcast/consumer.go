package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"

	"github.com/frahmantamala/finance-tracker/internal/cache"
)

// Subscriber opens a fresh delivery stream. It is called again every time
// the previous stream ends.
type Subscriber func(ctx context.Context) (<-chan amqp091.Delivery, error)

// Consumer applies peer invalidations and keeps resubscribing when the
// stream drops.
type Consumer struct {
	self       string
	subscribe  Subscriber
	applier    Applier
	newBackoff func() retry.Backoff
	logger     *slog.Logger
}

func NewConsumer(self string, subscribe Subscriber, applier Applier, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		self:      self,
		subscribe: subscribe,
		applier:   applier,
		newBackoff: func() retry.Backoff {
			return retry.WithCappedDuration(30*time.Second, retry.NewExponential(250*time.Millisecond))
		},
		logger: logger,
	}
}

// WithBackoff replaces the delay schedule used between failed subscribes.
// A fresh schedule is taken for every outage.
func (c *Consumer) WithBackoff(newBackoff func() retry.Backoff) *Consumer {
	c.newBackoff = newBackoff
	return c
}

// Run returns when ctx is done or the subscriber reports ErrClosed. After a
// dropped stream the whole local cache is cleared once resubscribed, since
// peer messages sent in between are gone.
func (c *Consumer) Run(ctx context.Context) error {
	lost := false
	for {
		msgs, err := c.resubscribe(ctx)
		if err != nil {
			return err
		}
		if lost {
			removed := c.applier.Apply(ctx, cache.Invalidation{Scope: cache.ScopeAll})
			c.logger.Info("invalidation stream restored, local cache cleared", "removed", removed)
		}

		if err := c.drain(ctx, msgs); err != nil {
			return err
		}
		lost = true
		c.logger.Warn("invalidation stream closed, resubscribing")
	}
}

func (c *Consumer) resubscribe(ctx context.Context) (<-chan amqp091.Delivery, error) {
	backoff := c.newBackoff()
	for {
		msgs, err := c.subscribe(ctx)
		if err == nil {
			return msgs, nil
		}
		if errors.Is(err, ErrClosed) {
			return nil, err
		}

		wait, stop := backoff.Next()
		if stop {
			backoff = c.newBackoff()
			wait, _ = backoff.Next()
		}
		c.logger.Warn("subscribing to invalidations failed", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// drain handles deliveries until msgs closes, which returns nil.
func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp091.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return nil
			}
			if _, err := Handle(ctx, c.self, delivery.Body, c.applier); err != nil {
				c.logger.Warn("dropping malformed invalidation message", "error", err)
			}
		}
	}
}
