package application

import (
	"context"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

// OrderRepository mutates orders only through conditional single-row writes keyed by id
// and guarded by the expected current status. The bool result is false when the guard
// did not match and nothing was written. ExpireIfPaid queues the refund request in the
// same write as the cancellation.
type OrderRepository interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	CommitIfPaid(ctx context.Context, orderID, sellerID string, at time.Time) (domain.Order, bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.Order, error)
	ExpireIfPaid(ctx context.Context, orderID string, at time.Time, reason string) (domain.Order, bool, error)
	// ListCommitDeadlinesBetween returns paid orders with from < commit_deadline <= to.
	ListCommitDeadlinesBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
	// ListCommittedBetween returns committed orders with from < committed_at <= to.
	ListCommittedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
	MarkPaidIfPending(ctx context.Context, orderID string, at, deadline time.Time, reference string) (domain.Order, bool, error)
	MarkRefundedIfCancelled(ctx context.Context, orderID string, at time.Time) (bool, error)
}

type BookRepository interface {
	MarkSold(ctx context.Context, bookID string) error
}

type NotificationRepository interface {
	Insert(ctx context.Context, n domain.Notification) error
}

type AuditLog interface {
	Append(ctx context.Context, e domain.AuditEntry) error
}

// ReminderLedger remembers which reminders were already sent so the dispatcher never
// has to write to the order row.
type ReminderLedger interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
