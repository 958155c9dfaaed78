package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// SnapshotHandler processes one decoded portfolio snapshot. A returned
// error leaves the message uncommitted so the group redelivers it.
type SnapshotHandler func(ctx context.Context, snap *models.PortfolioSnapshot) error

// Consumer reads messages from a single topic as part of a consumer group
type Consumer struct {
	reader *kafka.Reader
	topic  string
	log    *logger.Logger
}

// ConsumeSnapshots reads portfolio snapshots until the context is cancelled.
// Malformed payloads are logged and committed; they would never decode on
// redelivery either.
func (c *Consumer) ConsumeSnapshots(ctx context.Context, handler SnapshotHandler) error {
	c.log.Infof("Starting consumer for topic %s", c.topic)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Infof("Context cancelled, stopping consumer for topic %s", c.topic)
				return nil
			}
			return err
		}

		var snap models.PortfolioSnapshot
		if err := json.Unmarshal(msg.Value, &snap); err != nil {
			c.log.Warnf("Dropping malformed snapshot at offset %d: %v", msg.Offset, err)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		if err := handler(ctx, &snap); err != nil {
			c.log.Errorf("Snapshot handler failed for portfolio %s: %v", snap.ID, err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	c.log.Infof("Closing consumer for topic %s", c.topic)
	return c.reader.Close()
}
