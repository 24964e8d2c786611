package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/wildfire-hex-etl/internal/config"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// Writer publishes curated hex records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured hex record topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// hexMessage is the JSON payload of a published record.
type hexMessage struct {
	domain.HexRecord
	Date        string    `json:"date"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PublishBatch serializes records and sends them in a single WriteMessages
// call. Messages are keyed by hex ID so a hex always lands on one partition.
func (w *Writer) PublishBatch(ctx context.Context, records []domain.HexRecord) error {
	if len(records) == 0 {
		return nil
	}
	processedAt := domain.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], processedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d hex records: %w", len(msgs), err)
	}
	w.logger.Debug("hex records published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a HexRecord into a Kafka message.
func serializeToMessage(record domain.HexRecord, processedAt time.Time) (kafkago.Message, error) {
	date := record.Date().Format(time.DateOnly)
	data, err := json.Marshal(hexMessage{HexRecord: record, Date: date, ProcessedAt: processedAt})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize hex record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.HexID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "date", Value: []byte(date)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
