package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultDialTimeout      = 3 * time.Second
	defaultReconnectBackoff = 5 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits out the backoff
// after a failed reconnect.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// AMQPPublisher publishes events as persistent JSON messages to a durable
// RabbitMQ queue through the default exchange. Publish runs on the request
// path, so reconnects are bounded by a short dial timeout and a failed one
// suspends dialing for a backoff period.
type AMQPPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	backoff     time.Duration

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	nextDial time.Time
}

// NewAMQPPublisher dials the broker and declares the queue.
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, queue, defaultDialTimeout, defaultReconnectBackoff)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(url, queue string, dialTimeout, backoff time.Duration) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, dialTimeout: dialTimeout, backoff: backoff}
}

// connect dials within the smaller of the dial timeout and ctx's deadline.
func (p *AMQPPublisher) connect(ctx context.Context) error {
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("rabbitmq: dial skipped: %w", context.DeadlineExceeded)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// reconnect lazily after the broker dropped us
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		if time.Now().Before(p.nextDial) {
			return ErrBrokerUnavailable
		}
		if err := p.connect(ctx); err != nil {
			p.nextDial = time.Now().Add(p.backoff)
			return err
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Type:         string(e.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
