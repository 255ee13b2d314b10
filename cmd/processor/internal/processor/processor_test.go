package processor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/processor/internal/processor"
	"github.com/fertilis/quote-generator/cmd/processor/internal/testutils"
	"github.com/fertilis/quote-generator/pkg/config"
	"github.com/fertilis/quote-generator/pkg/models"
)

func messages(ticks ...models.QuoteTick) []kafka.Message {
	var msgs []kafka.Message
	for _, tick := range ticks {
		val, _ := json.Marshal(tick)
		msgs = append(msgs, kafka.Message{Key: []byte(tick.Symbol), Value: val})
	}
	return msgs
}

func run(t *testing.T, cfg config.ProcessorConfig, rdb processor.RedisClient, msgs []kafka.Message, d time.Duration) {
	t.Helper()
	proc := processor.NewProcessor(cfg, zap.NewNop(), rdb, &testutils.MockKafkaReader{Messages: msgs})

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	if err := proc.Run(ctx); err != nil {
		t.Logf("Processor stopped: %v", err)
	}
}

func TestProcessor_WorkerLogic(t *testing.T) {
	msgs := messages(
		models.QuoteTick{Symbol: "ticker_00", Quote: 100, SeqID: 1},
		models.QuoteTick{Symbol: "ticker_00", Quote: 100, SeqID: 1},
		models.QuoteTick{Symbol: "ticker_00", Quote: 101, SeqID: 2},
		models.QuoteTick{Symbol: "ticker_01", Quote: 900, SeqID: 1},
	)
	mockRedis := testutils.NewMockRedisClient()

	run(t, config.ProcessorConfig{NumWorkers: 2, TTL: time.Minute}, mockRedis, msgs, time.Second)

	pipeline := mockRedis.PipelineSpy
	pipeline.Mu.Lock()
	defer pipeline.Mu.Unlock()

	if pipeline.ExecCount != 3 {
		t.Errorf("Expected 3 pipeline executions, got %d", pipeline.ExecCount)
	}

	seen := make(map[string]bool)
	for _, cmd := range pipeline.RecordedCmds {
		seen[cmd] = true
	}
	for _, want := range []string{"SET quote:ticker_00", "PUBLISH quotes.ticker_00", "SET quote:ticker_01", "PUBLISH quotes.ticker_01"} {
		if !seen[want] {
			t.Errorf("Missing Redis command %q", want)
		}
	}
	for _, ttl := range pipeline.TTLs {
		if ttl != time.Minute {
			t.Errorf("Expected configured TTL, got %s", ttl)
		}
	}
}

func TestProcessor_InvalidJSON(t *testing.T) {
	msgs := []kafka.Message{
		{Key: []byte("ticker_00"), Value: []byte("{broken-json")},
		{Key: []byte("ticker_00"), Value: []byte(`{"quote": 5, "seq_id": 1}`)},
	}
	mockRedis := testutils.NewMockRedisClient()

	run(t, config.ProcessorConfig{NumWorkers: 1}, mockRedis, msgs, 200*time.Millisecond)

	if mockRedis.PipelineSpy.ExecCount > 0 {
		t.Error("Should not execute Redis commands for invalid ticks")
	}
}

func TestProcessor_RetriesAfterRedisFailure(t *testing.T) {
	// a failed write does not advance the dedup cursor, so a redelivery is applied
	msgs := messages(
		models.QuoteTick{Symbol: "ticker_00", Quote: 1, SeqID: 1},
		models.QuoteTick{Symbol: "ticker_00", Quote: 1, SeqID: 1},
	)
	mockRedis := testutils.NewMockRedisClient()
	mockRedis.PipelineSpy.ShouldFail = true

	run(t, config.ProcessorConfig{NumWorkers: 1}, mockRedis, msgs, 200*time.Millisecond)

	if mockRedis.PipelineSpy.ExecCount != 2 {
		t.Errorf("Expected both deliveries to be attempted, got %d", mockRedis.PipelineSpy.ExecCount)
	}
}

func TestQuoteKeys(t *testing.T) {
	if processor.QuoteKey("ticker_07") != "quote:ticker_07" {
		t.Errorf("Unexpected key %s", processor.QuoteKey("ticker_07"))
	}
	if processor.QuoteChannel("ticker_07") != "quotes.ticker_07" {
		t.Errorf("Unexpected channel %s", processor.QuoteChannel("ticker_07"))
	}
}
