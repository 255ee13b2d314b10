package sink_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/sink"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/testutils"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/pkg/models"
)

func batch() tickstore.Batch {
	return tickstore.Batch{
		Tickers:    []string{"ticker_00", "ticker_01"},
		Columns:    [][]models.Quote{{10, 20}, {11, 19}},
		Timestamps: []int64{100, 101},
		SeqIDs:     []int64{7, 8},
	}
}

func TestKafkaSink_OneMessagePerTickerPerColumn(t *testing.T) {
	writer := &testutils.MockKafkaWriter{}
	k := sink.NewKafkaSink(zap.NewNop(), writer)

	if err := k.Publish(context.Background(), batch()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	writer.Mu.Lock()
	defer writer.Mu.Unlock()

	if len(writer.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(writer.Messages))
	}

	var tick models.QuoteTick
	if err := json.Unmarshal(writer.Messages[3].Value, &tick); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if string(writer.Messages[3].Key) != "ticker_01" {
		t.Errorf("Expected key ticker_01, got %s", writer.Messages[3].Key)
	}
	want := models.QuoteTick{Symbol: "ticker_01", Quote: 19, Timestamp: 101, SeqID: 8}
	if tick != want {
		t.Errorf("Expected %+v, got %+v", want, tick)
	}
}

func TestKafkaSink_WriteError(t *testing.T) {
	k := sink.NewKafkaSink(zap.NewNop(), &testutils.MockKafkaWriter{ShouldFail: true})
	if err := k.Publish(context.Background(), batch()); err == nil {
		t.Error("Expected write error to be returned")
	}
}

func TestKafkaSink_EmptyBatch(t *testing.T) {
	writer := &testutils.MockKafkaWriter{ShouldFail: true}
	k := sink.NewKafkaSink(zap.NewNop(), writer)
	if err := k.Publish(context.Background(), tickstore.Batch{}); err != nil {
		t.Errorf("Empty batch should not hit the writer, got %v", err)
	}
}

func TestTopicCreator_Flow(t *testing.T) {
	mockDialer := &testutils.MockKafkaDialer{}
	tc := sink.NewTopicCreator(zap.NewNop(), mockDialer, &testutils.MockClock{})

	tc.Create(context.Background(), []string{"broker:9092"}, "quote_ticks", 6)

	if mockDialer.ConnSpy == nil {
		t.Fatal("Dialer was never called")
	}
	if mockDialer.Dials != 2 {
		t.Errorf("Expected broker and controller dials, got %d", mockDialer.Dials)
	}
	if len(mockDialer.ConnSpy.CreatedTopics) != 1 || mockDialer.ConnSpy.CreatedTopics[0] != "quote_ticks" {
		t.Errorf("Expected topic quote_ticks, got %v", mockDialer.ConnSpy.CreatedTopics)
	}
	if mockDialer.ConnSpy.Partitions[0] != 6 {
		t.Errorf("Expected 6 partitions, got %d", mockDialer.ConnSpy.Partitions[0])
	}
}

func TestTopicCreator_StopsWaitingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clock := &testutils.MockClock{}
	tc := sink.NewTopicCreator(zap.NewNop(), &testutils.MockKafkaDialer{}, clock)

	tc.Create(ctx, []string{"broker:9092"}, "quote_ticks", 6)

	if waited := clock.Now().Sub(time.Time{}); waited != 200*time.Millisecond {
		t.Errorf("Expected a single interrupted wait, waited %v", waited)
	}
}
