// Command order-sweeper runs one expiry sweep and/or one reminder pass and exits.
// It is meant to be fired by an external scheduler (cron, a Kubernetes CronJob).
package main

import (
	"context"
	"os"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/bootstrap"
	"github.com/dmehra2102/textbook-orders/internal/config"
	"github.com/dmehra2102/textbook-orders/pkg/logging"
	"github.com/dmehra2102/textbook-orders/pkg/shutdown"
	"github.com/dmehra2102/textbook-orders/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New("order-sweeper", cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "order-sweeper", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	rt, err := bootstrap.Build(ctx, log, cfg)
	if err != nil {
		log.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}

	switch cfg.Task {
	case "expire", "remind", "all":
	default:
		log.Error("unknown task", "task", cfg.Task)
		os.Exit(2)
	}

	code := 0
	now := time.Now().UTC()
	if cfg.Task == "expire" || cfg.Task == "all" {
		res, err := rt.Service.SweepExpiredCommits(ctx, now)
		if err != nil {
			log.Error("expiry sweep failed", "err", err)
			code = 1
		} else {
			log.Info("expiry sweep done", "expired_count", res.ExpiredCount, "orders", len(res.Orders), "interrupted", res.Interrupted)
		}
	}
	if cfg.Task == "remind" || cfg.Task == "all" {
		res, err := rt.Service.DispatchReminders(ctx, now)
		if err != nil {
			log.Error("reminder pass failed", "err", err)
			code = 1
		} else {
			log.Info("reminder pass done", "total_reminders", res.TotalReminders, "due", len(res.Reminders), "interrupted", res.Interrupted)
		}
	}

	shutdown.Drain(log, 5*time.Second, rt.Close, tp.Shutdown)
	os.Exit(code)
}
