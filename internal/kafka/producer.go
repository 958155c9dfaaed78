package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// Producer publishes messages to a single topic
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *logger.Logger
}

// Produce publishes one message keyed for partition ordering
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	if err != nil {
		p.log.Errorf("Failed to produce message to %s: %v", p.topic, err)
		return errors.Wrapf(err, "failed to produce message to %s", p.topic)
	}
	return nil
}

// PublishResult publishes a completed simulation result keyed by portfolio ID
func (p *Producer) PublishResult(ctx context.Context, portfolioID string, result *models.SimulationResult) error {
	if result == nil {
		return errors.InvalidInput("cannot publish nil result")
	}
	value, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "failed to marshal simulation result")
	}
	return p.Produce(ctx, []byte(portfolioID), value)
}

// Close flushes and closes the underlying writer
func (p *Producer) Close() error {
	p.log.Infof("Closing producer for topic %s", p.topic)
	return p.writer.Close()
}
