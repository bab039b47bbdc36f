package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Consumer feeds reservation events to the notification worker. Offsets are
// committed only after the handler returns nil, so a crashed worker replays
// the message instead of dropping it.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string, heartbeat, session time.Duration) *Consumer {
	if heartbeat <= 0 {
		heartbeat = 3 * time.Second
	}
	if session <= 0 {
		session = 30 * time.Second
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: heartbeat,
			SessionTimeout:    session,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := handler(ctx, msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}
