package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

const (
	defaultMinBackoff = 200 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
)

// messageReader is the part of *kafka.Reader the consumer relies on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	minBackoff time.Duration
	maxBackoff time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, minBackoff: defaultMinBackoff, maxBackoff: defaultMaxBackoff}
}

// Consume blocks until ctx is cancelled. Messages are handled strictly in
// order: a failing message is retried with capped backoff and nothing after
// it is fetched or committed until it succeeds. Undecodable messages are
// committed and skipped.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	fetchFailures := 0
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			fetchFailures++
			logger.Log.WithError(err).WithField("attempt", fetchFailures).Error("Failed to fetch message")
			if err := c.wait(ctx, fetchFailures); err != nil {
				return err
			}
			continue
		}
		fetchFailures = 0

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal event")
			c.commit(ctx, message)
			continue
		}

		if err := c.handle(ctx, handler, message, event); err != nil {
			return err
		}
		c.commit(ctx, message)
	}
}

// handle retries handler until it accepts event or ctx is cancelled.
func (c *Consumer) handle(ctx context.Context, handler EventHandler, message kafka.Message, event models.Event) error {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
			"offset":     message.Offset,
			"attempt":    attempt,
		}).Error("Failed to process event")
		if err := c.wait(ctx, attempt); err != nil {
			return err
		}
	}
}

func (c *Consumer) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Consumer) backoff(attempt int) time.Duration {
	delay := c.minBackoff
	for i := 1; i < attempt && delay < c.maxBackoff; i++ {
		delay *= 2
	}
	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
