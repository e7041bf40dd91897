package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/bootstrap"
	"github.com/dmehra2102/textbook-orders/internal/config"
	"github.com/dmehra2102/textbook-orders/internal/order/domain"
	ordergrpc "github.com/dmehra2102/textbook-orders/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/textbook-orders/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/textbook-orders/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/textbook-orders/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/textbook-orders/pkg/logging"
	"github.com/dmehra2102/textbook-orders/pkg/outbox"
	"github.com/dmehra2102/textbook-orders/pkg/shutdown"
	"github.com/dmehra2102/textbook-orders/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New("order-service", cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "order-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	rt, err := bootstrap.Build(ctx, log, cfg)
	if err != nil {
		log.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}

	// Outbox relay and payment events only run against Postgres.
	var writer *orderkafka.Writer
	if rt.Pool != nil {
		writer = orderkafka.NewWriter(cfg.KafkaBrokers)
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic).
			Route(domain.EventRefundRequested, cfg.RefundTopic)
		relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, rt.Pool), dispatch, "order-service-relay")
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()

		consumer := orderkafka.NewPaymentConsumer(log, cfg.KafkaBrokers, cfg.PaymentTopic, "order-service", rt.Service, rt.Dedup)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("payment consumer stopped with error", "err", err)
			}
		}()
	}

	opts := []orderhttp.Option{orderhttp.WithVersion(cfg.Version)}
	if cfg.TriggerEvery > 0 {
		opts = append(opts, orderhttp.WithTriggerLimit(cfg.TriggerEvery, cfg.TriggerBurst))
	}
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      orderhttp.NewHandler(log, rt.Service, opts...).Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	health := ordergrpc.NewServer(log)
	if err := ordergrpc.Run(log, cfg.GRPCAddr, health); err != nil {
		log.Error("grpc listen failed", "err", err)
		cancel()
	}
	health.SetServing(true)

	<-ctx.Done()
	health.SetServing(false)

	closers := []func(context.Context) error{
		srv.Shutdown,
		func(context.Context) error { health.Stop(); return nil },
	}
	if writer != nil {
		closers = append(closers, func(context.Context) error { return writer.Close() })
	}
	closers = append(closers, rt.Close, tp.Shutdown)
	shutdown.Drain(log, 10*time.Second, closers...)
	log.Info("order-service shutdown complete")
}
