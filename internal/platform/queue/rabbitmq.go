// Package queue wraps RabbitMQ for asynchronous task distribution.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names declared at startup.
const (
	QueueOCR          = "ocr_queue"
	QueueFileRename   = "minio_file_rename"
	QueueVerification = "invoice_verification"
	QueueAuditLogging = "audit_logging"
	QueueEmail        = "email_notifications"
)

const prefetchCount = 5

// Client is the process-wide queue client with a single connect/disconnect
// lifecycle. Publishes are serialised; amqp channels are not safe for
// concurrent writes.
type Client struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
	mu     sync.Mutex
}

// PublishOptions controls per-message delivery attributes.
type PublishOptions struct {
	Priority uint8
}

// QueueInfo reports broker-side queue state.
type QueueInfo struct {
	Name      string
	Messages  int
	Consumers int
}

// New dials the broker, opens a channel and declares the queue topology.
func New(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("platform/queue: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("platform/queue: channel: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("platform/queue: qos: %w", err)
	}

	client := &Client{conn: conn, ch: ch, logger: logger}
	if err := client.declareQueues(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) declareQueues() error {
	declarations := []struct {
		name string
		args amqp.Table
	}{
		{QueueOCR, amqp.Table{"x-message-ttl": int32(300000), "x-max-priority": int32(10)}},
		{QueueFileRename, amqp.Table{"x-message-ttl": int32(600000)}},
		{QueueVerification, amqp.Table{"x-message-ttl": int32(1800000)}},
		{QueueAuditLogging, nil},
		{QueueEmail, nil},
	}
	for _, d := range declarations {
		if _, err := c.ch.QueueDeclare(d.name, true, false, false, false, d.args); err != nil {
			return fmt.Errorf("platform/queue: declare %s: %w", d.name, err)
		}
	}
	return nil
}

// Publish serialises the message as JSON and sends it to the named queue as a
// persistent delivery.
func (c *Client) Publish(ctx context.Context, queueName string, message any, opts PublishOptions) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("platform/queue: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     opts.Priority,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("platform/queue: publish to %s: %w", queueName, err)
	}
	return nil
}

// Consume delivers messages from the named queue to fn until the context is
// cancelled. A nil return acks the message; an error nacks it back onto the
// queue.
func (c *Client) Consume(ctx context.Context, queueName string, fn func(context.Context, []byte) error) error {
	deliveries, err := c.ch.Consume(queueName, fmt.Sprintf("consumer-%s-%d", queueName, time.Now().UnixMilli()), false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("platform/queue: consume %s: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("platform/queue: delivery channel closed")
			}
			if err := fn(ctx, msg.Body); err != nil {
				if c.logger != nil {
					c.logger.Error("message processing failed, requeueing",
						slog.String("queue", queueName), slog.Any("error", err))
				}
				_ = msg.Nack(false, true)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

// Depth inspects the named queue without modifying it.
func (c *Client) Depth(queueName string) (QueueInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, err := c.ch.QueueDeclarePassive(queueName, true, false, false, false, queueArgs(queueName))
	if err != nil {
		return QueueInfo{}, fmt.Errorf("platform/queue: inspect %s: %w", queueName, err)
	}
	return QueueInfo{Name: queueName, Messages: state.Messages, Consumers: state.Consumers}, nil
}

// Purge drops all ready messages from the named queue.
func (c *Client) Purge(queueName string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.ch.QueuePurge(queueName, false)
	if err != nil {
		return 0, fmt.Errorf("platform/queue: purge %s: %w", queueName, err)
	}
	return n, nil
}

// Ping reports broker connectivity.
func (c *Client) Ping(_ context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("platform/queue: connection closed")
	}
	_, err := c.Depth(QueueOCR)
	return err
}

// Close shuts down the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		if err := c.ch.Close(); err != nil && c.logger != nil {
			c.logger.Warn("channel close", slog.Any("error", err))
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func queueArgs(name string) amqp.Table {
	switch name {
	case QueueOCR:
		return amqp.Table{"x-message-ttl": int32(300000), "x-max-priority": int32(10)}
	case QueueFileRename:
		return amqp.Table{"x-message-ttl": int32(600000)}
	case QueueVerification:
		return amqp.Table{"x-message-ttl": int32(1800000)}
	default:
		return nil
	}
}
