package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidOrder(t *testing.T, paidAt time.Time) Order {
	t.Helper()
	o := NewOrder("o1", "b1", "s1", "book-1", 4500, nil)
	require.NoError(t, o.MarkPaid(paidAt, DefaultCommitWindow, "ref-1"))
	return o
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPaid, StatusCommitted, true},
		{StatusPaid, StatusCancelled, true},
		{StatusCommitted, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusCommitted, StatusCancelled, false},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPaid, false},
		{StatusDelivered, StatusShipped, false},
		{StatusPending, StatusCommitted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestMarkPaidSetsDeadlineOnce(t *testing.T) {
	paidAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	o := paidOrder(t, paidAt)

	require.NotNil(t, o.CommitDeadline)
	assert.Equal(t, paidAt.Add(48*time.Hour), *o.CommitDeadline)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	err := o.MarkPaid(paidAt.Add(time.Hour), DefaultCommitWindow, "ref-2")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusPaid, stateErr.Actual)
	assert.Equal(t, paidAt.Add(48*time.Hour), *o.CommitDeadline)
}

func TestCommitOnlyFromPaid(t *testing.T) {
	o := paidOrder(t, time.Now())
	require.NoError(t, o.Commit(time.Now()))
	assert.Equal(t, StatusCommitted, o.Status)
	assert.NotNil(t, o.CommittedAt)

	err := o.Commit(time.Now())
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusCommitted, stateErr.Actual)
	assert.Contains(t, err.Error(), "committed")
}

func TestExpireAtDeadline(t *testing.T) {
	deadline := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o := paidOrder(t, deadline.Add(-DefaultCommitWindow))

	err := o.Expire(deadline.Add(-time.Hour))
	assert.True(t, errors.Is(err, ErrDeadlineNotReached))
	assert.Equal(t, StatusPaid, o.Status)

	require.NoError(t, o.Expire(deadline))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, ExpiryReason, o.CancellationReason)
	require.NotNil(t, o.CancelledAt)
}

func TestExpireRejectsCommitted(t *testing.T) {
	o := paidOrder(t, time.Now().Add(-72*time.Hour))
	require.NoError(t, o.Commit(time.Now()))

	var stateErr *InvalidStateError
	require.ErrorAs(t, o.Expire(time.Now()), &stateErr)
	assert.Equal(t, StatusCommitted, o.Status)
}

func TestMarkRefunded(t *testing.T) {
	o := paidOrder(t, time.Now().Add(-72*time.Hour))
	require.Error(t, o.MarkRefunded(time.Now()))

	require.NoError(t, o.Expire(time.Now()))
	require.NoError(t, o.MarkRefunded(time.Now()))
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, StatusCancelled, o.Status)
	require.Error(t, o.MarkRefunded(time.Now()))
}

func TestHoursUntil(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, HoursUntil(now.Add(12*time.Hour), now))
	assert.Equal(t, 3, HoursUntil(now.Add(2*time.Hour+40*time.Minute), now))
	assert.Equal(t, 0, HoursUntil(now.Add(-5*time.Hour), now))
}

func TestReminderRecipient(t *testing.T) {
	o := paidOrder(t, time.Now())
	assert.Equal(t, "s1", Reminder{Kind: ReminderCommitDeadline, Order: o}.Recipient())
	assert.Equal(t, "b1", Reminder{Kind: ReminderCollection, Order: o}.Recipient())
}
