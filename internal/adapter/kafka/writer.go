package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/config"
	"github.com/couchcryptid/glof-monitor/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes stage transitions to a Kafka topic.
// It implements monitor.TransitionPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured transition topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishTransitions writes transitions in a single WriteMessages call. Keys
// are gage ids so each gage's history stays ordered within a partition.
func (w *Writer) PublishTransitions(ctx context.Context, transitions []domain.StageTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(transitions))
	for i := range transitions {
		msg, err := serializeToMessage(transitions[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d transitions: %w", len(msgs), err)
	}
	w.logger.Debug("published stage transitions", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StageTransition into a Kafka message.
func serializeToMessage(t domain.StageTransition) (kafkago.Message, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize stage transition: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(t.GageID),
		Value: data,
		Time:  t.At,
		Headers: []kafkago.Header{
			{Key: "transition_id", Value: []byte(t.ID)},
			{Key: "stage", Value: []byte(t.To)},
			{Key: "stage_index", Value: []byte(strconv.Itoa(t.StageIndex))},
			{Key: "occurred_at", Value: []byte(t.At.Format(time.RFC3339))},
		},
	}, nil
}
