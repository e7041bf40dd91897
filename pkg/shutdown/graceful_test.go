package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDrainRunsAllClosersInOrder(t *testing.T) {
	var order []string
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	Drain(log, time.Second,
		func(context.Context) error { order = append(order, "http"); return nil },
		func(context.Context) error { order = append(order, "relay"); return errors.New("stuck") },
		func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			order = append(order, "db")
			return nil
		},
	)
	assert.Equal(t, []string{"http", "relay", "db"}, order)
}
