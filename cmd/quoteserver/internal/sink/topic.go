package sink

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicCreator struct {
	logger *zap.Logger
	dialer KafkaDialer
	clock  Sleeper
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock Sleeper) *TopicCreator {
	return &TopicCreator{
		logger: logger,
		dialer: dialer,
		clock:  clock,
	}
}

// Create makes sure the quote tick topic exists before the sink starts writing.
// Failures are only logged, the writer surfaces them on its first publish.
func (tc *TopicCreator) Create(ctx context.Context, brokers []string, topic string, partitions int) {
	var conn KafkaConn
	var err error

	for _, addr := range brokers {
		conn, err = tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
	}
	if conn == nil {
		tc.logger.Warn("No broker reachable, quote ticks topic not checked", zap.Strings("brokers", brokers), zap.Error(err))
		return
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		tc.logger.Warn("Kafka controller lookup failed", zap.Error(err))
		return
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		tc.logger.Warn("Kafka controller unreachable", zap.String("addr", controllerAddr), zap.Error(err))
		return
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		tc.logger.Info("Quote ticks topic not created, assuming it exists", zap.String("topic", topic), zap.Error(err))
	} else {
		tc.logger.Info("Quote ticks topic requested", zap.String("topic", topic), zap.Int("partitions", partitions))
	}

	tc.awaitPartitions(ctx, conn, topic)
}

// awaitPartitions polls the topic metadata until partitions show up, so the
// first batch of ticks is not lost to a missing leader.
func (tc *TopicCreator) awaitPartitions(ctx context.Context, conn KafkaConn, topic string) {
	const attempts = 5
	for i := 0; i < attempts; i++ {
		if err := tc.clock.Sleep(ctx, 200*time.Millisecond); err != nil {
			return
		}
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			tc.logger.Info("Quote ticks topic ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return
		}
	}
	tc.logger.Warn("Quote ticks topic has no partitions yet, publishing anyway", zap.String("topic", topic), zap.Int("attempts", attempts))
}
