package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

type CommitResult struct {
	ID          string             `json:"id"`
	Status      domain.OrderStatus `json:"status"`
	CommittedAt time.Time          `json:"committed_at"`
}

// CommitToSale moves a paid order to committed on behalf of its seller. Retrying after
// success fails the status precondition instead of committing twice.
func (s *Service) CommitToSale(ctx context.Context, orderID, sellerID string) (CommitResult, error) {
	orderID = strings.TrimSpace(orderID)
	sellerID = strings.TrimSpace(sellerID)
	if orderID == "" || sellerID == "" {
		return CommitResult{}, domain.ValidationError("orderId and sellerId are required")
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return CommitResult{}, domain.ErrNotFoundOrUnauthorized
		}
		return CommitResult{}, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if !o.OwnedBy(sellerID) {
		return CommitResult{}, domain.ErrNotFoundOrUnauthorized
	}
	if o.Status != domain.StatusPaid {
		return CommitResult{}, &domain.InvalidStateError{OrderID: o.ID, Actual: o.Status, Expected: domain.StatusPaid}
	}

	committed, ok, err := s.orders.CommitIfPaid(ctx, orderID, sellerID, s.now())
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit order %s: %w", orderID, err)
	}
	if !ok {
		// lost a race with another commit or the sweeper
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return CommitResult{}, fmt.Errorf("reload order %s: %w", orderID, err)
		}
		return CommitResult{}, &domain.InvalidStateError{OrderID: orderID, Actual: current.Status, Expected: domain.StatusPaid}
	}

	s.log.Info("order committed", "order_id", committed.ID, "seller_id", sellerID)
	s.afterCommit(ctx, committed)

	return CommitResult{
		ID:          committed.ID,
		Status:      committed.Status,
		CommittedAt: *committed.CommittedAt,
	}, nil
}

// afterCommit runs the side effects of a commit. None of them can undo the commit.
func (s *Service) afterCommit(ctx context.Context, o domain.Order) {
	now := s.now()
	if o.BookID != "" {
		if err := s.books.MarkSold(ctx, o.BookID); err != nil {
			s.log.Error("mark book sold failed", "order_id", o.ID, "book_id", o.BookID, "err", err)
		}
	}
	s.notify(ctx, domain.OrderCommittedNotice(o, now))
	if err := s.audit.Append(ctx, domain.CommitAudit(o, now)); err != nil {
		s.log.Error("audit append failed", "order_id", o.ID, "err", err)
	}
}
