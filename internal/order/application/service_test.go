package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/textbook-orders/internal/order/application"
	"github.com/dmehra2102/textbook-orders/internal/order/domain"
	"github.com/dmehra2102/textbook-orders/internal/order/infrastructure/memory"
)

var errBoom = errors.New("boom")

type failingNotifications struct{}

func (failingNotifications) Insert(context.Context, domain.Notification) error { return errBoom }

type failingAudit struct{}

func (failingAudit) Append(context.Context, domain.AuditEntry) error { return errBoom }

type failingBooks struct{}

func (failingBooks) MarkSold(context.Context, string) error { return errBoom }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memDeps(store *memory.Store) application.Deps {
	return application.Deps{
		Orders:        store,
		Books:         store,
		Notifications: store,
		Audit:         store,
		Ledger:        store,
	}
}

func setup(t *testing.T, now time.Time) (*memory.Store, *application.Service) {
	t.Helper()
	store := memory.NewStore()
	svc := application.NewService(discardLogger(), memDeps(store), application.DefaultConfig(),
		application.WithClock(func() time.Time { return now }))
	return store, svc
}

// seedPaid stores a paid order whose commit deadline is the given time.
func seedPaid(t *testing.T, store *memory.Store, id, seller string, deadline time.Time) domain.Order {
	t.Helper()
	o := domain.NewOrder(id, "buyer-"+id, seller, "book-"+id, 3500, map[string]string{"title": "Calculus"})
	require.NoError(t, o.MarkPaid(deadline.Add(-domain.DefaultCommitWindow), domain.DefaultCommitWindow, "ref-"+id))
	store.Put(o)
	return o
}

func countType(ns []domain.Notification, typ domain.NotificationType) int {
	n := 0
	for _, x := range ns {
		if x.Type == typ {
			n++
		}
	}
	return n
}
