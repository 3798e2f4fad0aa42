package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes tabulated events to a Kafka topic, one message per row.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the given topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: topic, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Load serializes every row and publishes them in a single WriteMessages
// call. Rows are keyed by event ID so reruns land on the same partition.
func (w *Writer) Load(ctx context.Context, table domain.EventTable) error {
	if len(table) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(table))
	for i := range table {
		msg, err := serializeToMessage(table[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", w.topic, err)
	}
	w.logger.Debug("events published", "topic", w.topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EventRecord into a Kafka message.
func serializeToMessage(rec domain.EventRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event record: %w", err)
	}
	msg := kafkago.Message{
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(rec.EventType)},
			{Key: "fetched_at", Value: []byte(rec.FetchedAt.Format(time.RFC3339))},
		},
	}
	if rec.EventID != "" {
		msg.Key = []byte(rec.EventID)
	}
	return msg, nil
}
