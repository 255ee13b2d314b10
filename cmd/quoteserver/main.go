package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/api"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/gateway"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/hub"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/scheduler"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/sink"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/walk"
	"github.com/fertilis/quote-generator/pkg/config"
	"github.com/fertilis/quote-generator/pkg/models"
	"github.com/fertilis/quote-generator/pkg/trace"
)

func main() {
	port := flag.Int("port", 0, "HTTP port, overrides APP_PORT")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.App.Port = fmt.Sprintf(":%d", *port)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := trace.Init(cfg.Trace, nil); err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}

	walker, err := walk.NewWalker(walk.NewRealRand(time.Now().UnixNano()), models.Quote(cfg.Store.MinQuote), models.Quote(cfg.Store.MaxQuote))
	if err != nil {
		logger.Fatal("Failed to build walk generator", zap.Error(err))
	}

	store, err := tickstore.New(tickstore.Config{
		Tickers:      cfg.TickerList(),
		Retention:    cfg.Store.Retention,
		TickInterval: cfg.Store.TickInterval,
		InitialQuote: models.Quote(cfg.Store.InitialQuote),
	}, walker, tickstore.RealClock{})
	if err != nil {
		logger.Fatal("Failed to create tick store", zap.Error(err))
	}
	logger.Info("Tick store ready",
		zap.Int("tickers", len(store.Tickers())),
		zap.Int("capacity", store.Capacity()),
		zap.Duration("interval", store.TickInterval()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := hub.NewHub(store, logger)
	sinks := []scheduler.Sink{wsHub}

	var kafkaSink *sink.KafkaSink
	if cfg.Kafka.Enabled {
		dialer := &sink.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 10 * time.Second}}
		sink.NewTopicCreator(logger, dialer, scheduler.RealClock{}).
			Create(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)

		kafkaSink = sink.NewKafkaSink(logger, sink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		sinks = append(sinks, kafkaSink)
		logger.Info("Kafka sink enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	sched := scheduler.NewScheduler(logger, store, scheduler.RealClock{}, cfg.Store.TickInterval, sinks...)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	srv := &http.Server{
		Addr:    cfg.App.Port,
		Handler: api.NewServer(store, gateway.Handler(wsHub, logger, cfg.Gateway), logger).Handler(),
	}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	cancel()
	<-schedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("Error closing Kafka writer", zap.Error(err))
		} else {
			logger.Info("Kafka writer closed cleanly")
		}
	}
	if err := trace.Shutdown(shutdownCtx); err != nil {
		logger.Error("Trace shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
