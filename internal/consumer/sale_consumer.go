// Package consumer follows the sales topic so every instance drops carts that were already sold
// and picks up the stock those sales took.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/sales"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Terminals clears a terminal whose transaction became a recorded sale.
type Terminals interface {
	CompleteTransaction(ctx context.Context, terminalID, transactionID string) bool
}

// Stock refreshes the local stock of products from the shared ledger.
type Stock interface {
	SyncStock(ctx context.Context, productIDs []int64) error
}

type SaleConsumer struct {
	reader    MessageReader
	terminals Terminals
	stock     Stock
	log       *zap.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})
}

func NewSaleConsumer(reader MessageReader, terminals Terminals, stock Stock, log *zap.Logger) *SaleConsumer {
	return &SaleConsumer{reader: reader, terminals: terminals, stock: stock, log: log}
}

// Run reads messages until ctx is cancelled or the reader is closed.
func (c *SaleConsumer) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := c.processMessage(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if !errors.Is(err, context.Canceled) {
				c.log.Warn("error reading sale event", zap.Error(err))
			}
		}
	}
}

func (c *SaleConsumer) Close() error {
	return c.reader.Close()
}

// processMessage handles one message. Only read errors are returned; a bad payload is logged
// and skipped.
func (c *SaleConsumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	if eventType(m) != sales.EventSaleCompleted {
		return nil
	}

	var sale domain.Sale
	if err := json.Unmarshal(m.Value, &sale); err != nil {
		c.log.Warn("error parsing sale event", zap.String("key", string(m.Key)), zap.Error(err))
		return nil
	}

	if len(sale.Items) > 0 {
		ids := make([]int64, len(sale.Items))
		for i, item := range sale.Items {
			ids[i] = item.ProductID
		}
		if err := c.stock.SyncStock(ctx, ids); err != nil {
			c.log.Warn("error syncing stock of sold products", zap.String("sale_code", sale.Code), zap.Error(err))
		}
	}

	if sale.TerminalID == "" || sale.TransactionID == "" {
		c.log.Warn("sale event without terminal or transaction", zap.String("sale_code", sale.Code))
		return nil
	}

	c.terminals.CompleteTransaction(ctx, sale.TerminalID, sale.TransactionID)
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
