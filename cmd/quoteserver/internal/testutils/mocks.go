package testutils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/protocol"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/sink"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/pkg/models"
)

type MockClock struct {
	CurrentTime time.Time
	Mu          sync.Mutex
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

// Sleep advances the clock without blocking
func (m *MockClock) Sleep(ctx context.Context, d time.Duration) error {
	m.Advance(d)
	return ctx.Err()
}

func (m *MockClock) Advance(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}

// MockRand returns Seq in order (cycling) when set, ValFloat otherwise
type MockRand struct {
	ValFloat float64
	Seq      []float64
	pos      int
}

func (m *MockRand) Float64() float64 {
	if len(m.Seq) == 0 {
		return m.ValFloat
	}
	v := m.Seq[m.pos%len(m.Seq)]
	m.pos++
	return v
}

// MockGenerator adds Step to the previous quote without clamping
type MockGenerator struct {
	Step  int
	Calls int
}

func (m *MockGenerator) Next(prev models.Quote) models.Quote {
	m.Calls++
	return models.Quote(int(prev) + m.Step)
}

// MockAdvancer lets tests script what a producer firing does
type MockAdvancer struct {
	Mu          sync.Mutex
	Calls       []int64
	Written     int
	Err         error
	PanicOnCall bool
	RecentBatch tickstore.Batch
}

func (m *MockAdvancer) AdvanceAndFill(now int64) (int, error) {
	m.Mu.Lock()
	m.Calls = append(m.Calls, now)
	m.Mu.Unlock()
	if m.PanicOnCall {
		panic("advance exploded")
	}
	return m.Written, m.Err
}

func (m *MockAdvancer) Recent(n int) tickstore.Batch { return m.RecentBatch }

func (m *MockAdvancer) CallCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Calls)
}

type MockSink struct {
	Batches    []tickstore.Batch
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockSink) Publish(ctx context.Context, b tickstore.Batch) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("sink error")
	}
	m.Batches = append(m.Batches, b)
	return nil
}

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

type MockKafkaConn struct {
	CreatedTopics []string
	Partitions    []int
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
		m.Partitions = append(m.Partitions, t.NumPartitions)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	// topic is ready immediately
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
	Dials   int
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (sink.KafkaConn, error) {
	m.Dials++
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // decoded responses
	RawBytes []string              // pushed frames
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsg() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

func (m *MockClient) LastMsgType() string { return m.LastMsg().Type }

func (m *MockClient) Pushed() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.RawBytes))
	copy(out, m.RawBytes)
	return out
}

// NewTestStore builds a store whose generator adds step on every tick
func NewTestStore(t *testing.T, tickers []string, capacity int, step int, clock tickstore.Clock) *tickstore.Store {
	t.Helper()
	store, err := tickstore.New(tickstore.Config{
		Tickers:      tickers,
		Retention:    time.Duration(capacity) * time.Second,
		TickInterval: time.Second,
	}, &MockGenerator{Step: step}, clock)
	if err != nil {
		t.Fatalf("tickstore.New failed: %v", err)
	}
	return store
}

func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("Assertion failed: %s", msg)
	}
}
