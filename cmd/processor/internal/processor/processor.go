package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/pkg/config"
	"github.com/fertilis/quote-generator/pkg/models"
)

const workerBuffer = 100

// Processor keeps the latest quote of every ticker in Redis and fans it out on pub/sub
type Processor struct {
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	numWorkers int
	ttl        time.Duration
}

func NewProcessor(cfg config.ProcessorConfig, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	numWorkers := cfg.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Processor{
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		numWorkers: numWorkers,
		ttl:        cfg.TTL,
	}
}

// Run consumes until ctx is done, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, workerBuffer)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				if ctx.Err() != nil {
					return
				}
				continue
			}

			// same ticker, same worker: keeps per-ticker order
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				// the next tick supersedes this one anyway
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")
	<-readerDone

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// not the run context: an in-flight write should finish during shutdown
	ctx := context.Background()

	// per-worker dedup state, valid because of deterministic sharding
	lastSeq := make(map[string]int64)

	for payload := range msgs {
		var tick models.QuoteTick
		if err := json.Unmarshal(payload, &tick); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		if tick.Symbol == "" {
			p.logger.Warn("Tick without symbol", zap.Int64("seq_id", tick.SeqID))
			continue
		}

		if tick.SeqID <= lastSeq[tick.Symbol] {
			p.logger.Debug("Skipping duplicate tick", zap.String("symbol", tick.Symbol), zap.Int64("seq_id", tick.SeqID))
			continue
		}

		pipe := p.rdb.Pipeline()
		pipe.Set(ctx, QuoteKey(tick.Symbol), payload, p.ttl)
		pipe.Publish(ctx, QuoteChannel(tick.Symbol), payload)

		if _, err := pipe.Exec(ctx); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", tick.Symbol))
			continue
		}
		p.logger.Debug("Processed", zap.String("symbol", tick.Symbol), zap.Int("worker_id", id), zap.Int64("seq_id", tick.SeqID))
		lastSeq[tick.Symbol] = tick.SeqID
	}
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
