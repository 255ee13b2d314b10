package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/pkg/models"
)

// KafkaSink publishes one QuoteTick per ticker per written column, keyed by ticker
type KafkaSink struct {
	logger *zap.Logger
	writer KafkaWriter
}

func NewKafkaSink(logger *zap.Logger, writer KafkaWriter) *KafkaSink {
	return &KafkaSink{logger: logger, writer: writer}
}

func (k *KafkaSink) Publish(ctx context.Context, b tickstore.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, b.Len()*len(b.Tickers))
	for c, col := range b.Columns {
		for i, symbol := range b.Tickers {
			payload, err := json.Marshal(models.QuoteTick{
				Symbol:    symbol,
				Quote:     col[i],
				Timestamp: b.Timestamps[c],
				SeqID:     b.SeqIDs[c],
			})
			if err != nil {
				return fmt.Errorf("marshal tick %s/%d: %w", symbol, b.SeqIDs[c], err)
			}
			msgs = append(msgs, kafka.Message{
				Key:   []byte(symbol),
				Value: payload,
			})
		}
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	k.logger.Debug("Sent ticks", zap.Int("columns", b.Len()), zap.Int("messages", len(msgs)))
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
