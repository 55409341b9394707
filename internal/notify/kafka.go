package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fulfillment/internal/service"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes notifications as JSON, keyed by booking id so events
// of one booking stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaSink creates a new KafkaSink.
func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// NewWriter builds the writer used in production. Writes are async, so
// WriteMessages never reports broker failures; they are logged from the
// completion callback instead.
func NewWriter(brokers []string, topic string, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   logFailedWrites(logger),
	}
}

func logFailedWrites(logger *zap.Logger) func([]kafka.Message, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("kafka")
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, 0, len(messages))
		for _, m := range messages {
			keys = append(keys, string(m.Key))
		}
		logger.Error("publish lifecycle events",
			zap.Error(err),
			zap.Int("count", len(messages)),
			zap.Strings("booking_ids", keys),
		)
	}
}

// Deliver implements service.Sink.
func (s *KafkaSink) Deliver(ctx context.Context, n service.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.BookingID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(n.Type)},
		},
	})
}

var _ service.Sink = (*KafkaSink)(nil)
