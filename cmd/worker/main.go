package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ForeverInLaw/nikitabotv2/internal/config"
	kafkax "github.com/ForeverInLaw/nikitabotv2/internal/kafka"
	"github.com/ForeverInLaw/nikitabotv2/internal/lifecycle"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
	"github.com/ForeverInLaw/nikitabotv2/internal/postgres"
	"github.com/ForeverInLaw/nikitabotv2/internal/redisx"
	"github.com/ForeverInLaw/nikitabotv2/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	serviceName := cfg.ServiceName + "-worker"
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.LockTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer for events emitted by the reaper's auto-cancels
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	statusProd.Start(ctx)

	svc := &lifecycle.Service{DB: db, Logger: logger}

	// Reaper: auto-cancel orders stuck in pending_admin_approval
	reaper := &lifecycle.Reaper{
		Svc:      svc,
		MaxAge:   cfg.OrderTimeout,
		Interval: cfg.ReaperInterval,
		Logger:   logger,
		OnCancelled: func(res *lifecycle.TransitionResult) {
			ev := orders.Envelope{
				EventID:       uuid.NewString(),
				EventType:     orders.EventOrderStatusChanged,
				EventVersion:  1,
				OccurredAt:    time.Now().UTC(),
				Producer:      serviceName,
				CorrelationID: res.Order.ID,
				Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
					OrderID:       res.Order.ID,
					OldStatus:     res.From,
					NewStatus:     res.Order.Status,
					Action:        orders.ActionCancel,
					StockReleased: res.StockReleased,
				}),
			}
			statusProd.Publish(orders.PartitionKey(res.Order.ID), kafkax.MustMarshal(ev),
				kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
				kafkago.Header{Key: "x-event-version", Value: []byte("1")},
			)
		},
	}
	go reaper.Run(ctx)

	// Consumer: keep the redis status cache fresh
	cache := &worker.StatusCacheService{
		Cache:       worker.RedisCache{C: rdb},
		ServiceName: serviceName,
		Logger:      logger,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicOrderStatusChanged, cfg.WorkerCount, logger)

	go func() {
		logger.Info().
			Str("group", cfg.WorkerGroup).
			Str("topic", orders.TopicOrderStatusChanged).
			Int("workers", cfg.WorkerCount).
			Msg("status consumer started")
		if err := cons.Start(ctx, cache.HandleStatusChanged); err != nil {
			logger.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down worker")

	statusProd.Close()
	statusProd.WaitClosed()
	cancel()
	time.Sleep(500 * time.Millisecond)
}
