package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ForeverInLaw/nikitabotv2/internal/catalog"
	"github.com/ForeverInLaw/nikitabotv2/internal/config"
	"github.com/ForeverInLaw/nikitabotv2/internal/httpx"
	kafkax "github.com/ForeverInLaw/nikitabotv2/internal/kafka"
	"github.com/ForeverInLaw/nikitabotv2/internal/ledger"
	"github.com/ForeverInLaw/nikitabotv2/internal/lifecycle"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
	"github.com/ForeverInLaw/nikitabotv2/internal/postgres"
	"github.com/ForeverInLaw/nikitabotv2/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", cfg.ServiceName).Logger()
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

	// Kafka producers, one per topic
	createdProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	createdProd.Start(ctx)
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	statusProd.Start(ctx)
	stockProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockAdjusted, 1024)
	stockProd.Start(ctx)

	// Services & handlers
	svc := &lifecycle.Service{DB: db, Logger: logger}
	router := httpx.NewRouter()

	oh := &httpx.OrdersHandler{
		Svc:         svc,
		Cache:       httpx.RedisKV{C: rdb},
		CreatedProd: createdProd,
		StatusProd:  statusProd,
		Service:     cfg.ServiceName,
	}
	oh.Register(router)

	sh := &httpx.StockHandler{
		Store:     &ledger.Store{DB: db},
		StockProd: stockProd,
		Service:   cfg.ServiceName,
		Logger:    logger,
	}
	sh.Register(router)

	ch := &httpx.CatalogHandler{Repo: &catalog.Repo{DB: db}}
	ch.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// close inboxes first so the loops flush and exit before ctx goes away
	createdProd.Close()
	statusProd.Close()
	stockProd.Close()
	createdProd.WaitClosed()
	statusProd.WaitClosed()
	stockProd.WaitClosed()
	cancel()
}
