package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Message header keys attached to every published ranking.
const (
	HeaderBatchID            = "batch_id"
	HeaderDistancesAvailable = "distances_available"
	HeaderComputedAt         = "computed_at"
)

// Writer publishes ranked results to a Kafka topic.
// It implements pipeline.ResultLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the rankings topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes every result of one dispatch batch and publishes them
// in a single WriteMessages call. Results are keyed by order id so successive
// rankings of the same order land on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, batchID string, results []domain.RankedResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(batchID, results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish rankings: %w", err)
	}
	w.logger.Debug("rankings published", "batch_id", batchID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RankedResult into a Kafka message.
func serializeToMessage(batchID string, result domain.RankedResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ranked result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(result.OrderID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderBatchID, Value: []byte(batchID)},
			{Key: HeaderDistancesAvailable, Value: []byte(strconv.FormatBool(result.DistancesAvailable))},
			{Key: HeaderComputedAt, Value: []byte(result.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
