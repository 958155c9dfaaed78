// Package kafka connects the engine to its streaming edges: portfolio
// snapshots arrive on one topic, completed simulation results leave on
// another. Payloads are JSON; message keys carry the portfolio ID so a
// portfolio's updates stay ordered within a partition.
package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// Config holds connection options shared by producers and consumers
type Config struct {
	Brokers        []string
	GroupID        string
	StartOffset    string // "earliest" or "latest"
	BatchSize      int
	BatchTimeout   time.Duration
	SessionTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Brokers:        []string{"localhost:9092"},
		GroupID:        "risk-engine-group",
		StartOffset:    "earliest",
		BatchSize:      100,
		BatchTimeout:   50 * time.Millisecond,
		SessionTimeout: 30 * time.Second,
	}
}

// Client creates producers and consumers from a shared configuration
type Client struct {
	config *Config
	log    *logger.Logger
}

// NewClient creates a new Kafka client
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		config: config,
		log:    logger.GetLogger("kafka.client"),
	}
}

// NewProducer creates a producer bound to a topic
func (c *Client) NewProducer(topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              c.config.BatchSize,
		BatchTimeout:           c.config.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer: writer,
		topic:  topic,
		log:    logger.GetLogger("kafka.producer"),
	}
}

// NewConsumer creates a group consumer bound to a topic
func (c *Client) NewConsumer(topic string) *Consumer {
	startOffset := kafka.LastOffset
	if c.config.StartOffset == "earliest" {
		startOffset = kafka.FirstOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.GroupID,
		Topic:          topic,
		StartOffset:    startOffset,
		SessionTimeout: c.config.SessionTimeout,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	return &Consumer{
		reader: reader,
		topic:  topic,
		log:    logger.GetLogger("kafka.consumer"),
	}
}
