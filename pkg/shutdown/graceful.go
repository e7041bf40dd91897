package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WithSignals returns a context cancelled on SIGINT or SIGTERM.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Drain runs each closer with a shared deadline, logging failures. Closers run in order.
func Drain(log *slog.Logger, timeout time.Duration, closers ...func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, c := range closers {
		if err := c(ctx); err != nil {
			log.Error("shutdown step failed", "err", err)
		}
	}
}
