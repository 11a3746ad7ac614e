// Package broadcast fans cache invalidations out to every replica through an
// AMQP fanout exchange. It matters when replicas keep process-local stores.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("broadcaster closed")

// Applier applies an invalidation to the local store only.
type Applier interface {
	Apply(ctx context.Context, inv cache.Invalidation) int
}

type Message struct {
	Origin string      `json:"origin"`
	Scope  cache.Scope `json:"scope"`
	UserID int64       `json:"user_id,omitempty"`
	SentAt time.Time   `json:"sent_at"`
}

func (m Message) Invalidation() cache.Invalidation {
	return cache.Invalidation{Scope: m.Scope, UserID: m.UserID}
}

type AMQPBroadcaster struct {
	url        string
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	queue      string
	instanceID string
	logger     *slog.Logger

	// guards conn, channel and queue; amqp channels are not safe for
	// concurrent publishing either
	mu     sync.Mutex
	closed bool
}

// Dial connects, declares the fanout exchange and binds an exclusive,
// server-named queue for this instance.
func Dial(url, exchange string, logger *slog.Logger) (*AMQPBroadcaster, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	b := &AMQPBroadcaster{
		url:        url,
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		instanceID: uuid.NewString(),
		logger:     logger,
	}

	if err := b.setup(); err != nil {
		b.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return b, nil
}

func (b *AMQPBroadcaster) setup() error {
	err := b.channel.ExchangeDeclare(
		b.exchange, // name
		"fanout",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := b.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	b.queue = q.Name

	if err := b.channel.QueueBind(b.queue, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// reconnect replaces a closed connection or channel and declares the
// exchange and a fresh queue again. The old exclusive queue died with the
// connection. Callers hold mu.
func (b *AMQPBroadcaster) reconnect() error {
	if b.closed {
		return ErrClosed
	}
	if b.conn != nil && !b.conn.IsClosed() && b.channel != nil && !b.channel.IsClosed() {
		return nil
	}
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}

	conn, err := amqp091.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	b.conn, b.channel = conn, channel

	if err := b.setup(); err != nil {
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	b.logger.Info("reconnected to invalidation exchange", "exchange", b.exchange, "queue", b.queue)
	return nil
}

func (b *AMQPBroadcaster) InstanceID() string {
	return b.instanceID
}

func (b *AMQPBroadcaster) Broadcast(ctx context.Context, inv cache.Invalidation) error {
	body, err := Encode(b.instanceID, inv)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.reconnect(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	err = b.channel.PublishWithContext(
		ctx,
		b.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Consume applies invalidations from peers until ctx is done or the
// broadcaster is closed. A lost connection is redialled with backoff.
func (b *AMQPBroadcaster) Consume(ctx context.Context, applier Applier) error {
	return NewConsumer(b.instanceID, b.subscribe, applier, b.logger).Run(ctx)
}

func (b *AMQPBroadcaster) subscribe(_ context.Context) (<-chan amqp091.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.reconnect(); err != nil {
		return nil, err
	}
	msgs, err := b.channel.Consume(
		b.queue, // queue
		"",      // consumer
		true,    // auto-ack, a lost invalidation only costs staleness until TTL
		true,    // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	b.logger.Info("consuming cache invalidations", "exchange", b.exchange, "queue", b.queue)
	return msgs, nil
}

func (b *AMQPBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func Encode(origin string, inv cache.Invalidation) ([]byte, error) {
	return json.Marshal(Message{
		Origin: origin,
		Scope:  inv.Scope,
		UserID: inv.UserID,
		SentAt: time.Now().UTC(),
	})
}

// Handle decodes body and applies it unless it was sent by self. It reports
// whether the invalidation was applied.
func Handle(ctx context.Context, self string, body []byte, applier Applier) (bool, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return false, fmt.Errorf("unmarshal invalidation: %w", err)
	}
	if msg.Origin == self {
		return false, nil
	}
	if len(msg.Invalidation().Prefixes()) == 0 {
		return false, fmt.Errorf("unknown invalidation scope %q", msg.Scope)
	}
	applier.Apply(ctx, msg.Invalidation())
	return true, nil
}
