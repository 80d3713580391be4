package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

// Reader is the subset of kafka.Reader the consumer loop needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs a handler over a consumer group.
type Consumer struct {
	reader         Reader
	log            zerolog.Logger
	handlerTimeout time.Duration
	retryDelay     time.Duration
}

// Handler processes one message. A returned error retries the same message
// up to maxAttempts times before it is skipped.
type Handler func(ctx context.Context, key []byte, value []byte) error

// NewConsumer creates the reader. groupID lets several replicas split the
// partitions instead of all processing every message.
func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return NewConsumerWithReader(reader)
}

// NewConsumerWithReader allows injecting a test reader.
func NewConsumerWithReader(r Reader) *Consumer {
	return &Consumer{
		reader:         r,
		log:            logger.WithComponent("kafka-consumer"),
		handlerTimeout: 10 * time.Second,
		retryDelay:     time.Second,
	}
}

// WithRetryDelay sets the base backoff between attempts.
func (c *Consumer) WithRetryDelay(d time.Duration) *Consumer {
	c.retryDelay = d
	return c
}

const maxAttempts = 3

// handle runs handler with a per-attempt timeout and linear backoff.
func (c *Consumer) handle(ctx context.Context, handler Handler, m kafka.Message) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		processCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		err = handler(processCtx, m.Key, m.Value)
		cancel()
		if err == nil {
			return nil
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Int64("offset", m.Offset).Msg("processing failed")
		if attempt < maxAttempts && !c.sleep(ctx, time.Duration(attempt)*c.retryDelay) {
			return ctx.Err()
		}
	}
	return err
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, handler Handler) {
	c.log.Info().Msg("kafka consumer started")

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Msg("error fetching message")
			c.sleep(ctx, c.retryDelay)
			continue
		}

		if err := c.handle(ctx, handler, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error().Err(err).
				Int64("offset", m.Offset).
				Str("key", string(m.Key)).
				Msg("giving up on message after retries")
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.log.Error().Err(err).Int64("offset", m.Offset).Msg("failed to commit offset")
		}
	}
}

// sleep waits for d and reports false when ctx ended first.
func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Close disconnects from the server.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
