package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

func TestConfirmPayment_SetsDeadline(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store, svc := setup(t, now)
	store.Put(domain.NewOrder("o1", "b1", "s1", "book-1", 2500, nil))

	require.NoError(t, svc.ConfirmPayment(context.Background(), domain.PaymentProcessed{OrderID: "o1", AmountCents: 2500, Reference: "ps_123"}))

	o, err := store.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, o.Status)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "ps_123", o.PaymentReference)
	require.NotNil(t, o.CommitDeadline)
	assert.Equal(t, now.Add(48*time.Hour), *o.CommitDeadline)

	notes := store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyPaymentSuccess, notes[0].Type)
	assert.Equal(t, "b1", notes[0].UserID)
}

func TestConfirmPayment_RedeliveryKeepsDeadline(t *testing.T) {
	now := time.Now().UTC()
	store, svc := setup(t, now)
	first := seedPaid(t, store, "o1", "s1", now.Add(10*time.Hour))

	require.NoError(t, svc.ConfirmPayment(context.Background(), domain.PaymentProcessed{OrderID: "o1"}))

	o, _ := store.Get(context.Background(), "o1")
	assert.Equal(t, *first.CommitDeadline, *o.CommitDeadline)
	assert.Empty(t, store.Notifications())
}

func TestConfirmPayment_RequiresOrderID(t *testing.T) {
	_, svc := setup(t, time.Now())
	assert.ErrorIs(t, svc.ConfirmPayment(context.Background(), domain.PaymentProcessed{}), domain.ErrValidation)
	assert.ErrorIs(t, svc.ConfirmRefund(context.Background(), domain.RefundProcessed{}), domain.ErrValidation)
}

func TestConfirmRefund_AfterExpiry(t *testing.T) {
	now := time.Now().UTC()
	store, svc := setup(t, now)
	seedPaid(t, store, "o1", "s1", now.Add(-time.Hour))

	_, err := svc.SweepExpiredCommits(context.Background(), now)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmRefund(context.Background(), domain.RefundProcessed{OrderID: "o1"}))

	o, _ := store.Get(context.Background(), "o1")
	assert.Equal(t, domain.StatusCancelled, o.Status)
	assert.Equal(t, domain.PaymentRefunded, o.PaymentStatus)
}
