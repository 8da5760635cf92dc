// Package publisher relays sale events from the ledger outbox to Kafka.
package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_pos/internal/sales"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const batchSize = 100

type EventSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*sales.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	source    EventSource
	writer    MessageWriter
	log       *zap.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(source EventSource, writer MessageWriter, log *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		source:    source,
		writer:    writer,
		log:       log,
	}
}

// Run publishes pending events every tick until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.eventTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents returns the number of events published.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.source.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Warn("failed to publish outbox event", zap.Int64("event_id", event.ID), zap.Error(err))
			// keep per-key order: later events of a failed batch wait for the next tick
			return published
		}

		if err := p.source.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("failed to mark outbox event as processed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *sales.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // sale code
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.CreatedAt,
	}
	return p.writer.WriteMessages(ctx, msg)
}
