package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

// ConfirmPayment applies a captured payment: pending becomes paid and the commit
// deadline is fixed. Redelivered events are absorbed by the status guard.
func (s *Service) ConfirmPayment(ctx context.Context, ev domain.PaymentProcessed) error {
	orderID := strings.TrimSpace(ev.OrderID)
	if orderID == "" {
		return domain.ValidationError("payment event without order id")
	}

	now := s.now()
	o, ok, err := s.orders.MarkPaidIfPending(ctx, orderID, now, now.Add(s.cfg.CommitWindow), ev.Reference)
	if err != nil {
		return fmt.Errorf("mark order %s paid: %w", orderID, err)
	}
	if !ok {
		s.log.Info("payment for order not pending, ignored", "order_id", orderID)
		return nil
	}
	if ev.AmountCents != 0 && ev.AmountCents != o.AmountCents {
		s.log.Warn("payment amount differs from order amount", "order_id", orderID, "paid", ev.AmountCents, "amount", o.AmountCents)
	}

	s.notify(ctx, domain.PaymentSuccessNotice(o, now))
	return nil
}

// ConfirmRefund records that the payment processor reversed the payment of an expired order.
func (s *Service) ConfirmRefund(ctx context.Context, ev domain.RefundProcessed) error {
	orderID := strings.TrimSpace(ev.OrderID)
	if orderID == "" {
		return domain.ValidationError("refund event without order id")
	}
	ok, err := s.orders.MarkRefundedIfCancelled(ctx, orderID, s.now())
	if err != nil {
		return fmt.Errorf("mark order %s refunded: %w", orderID, err)
	}
	if !ok {
		s.log.Info("refund for order not applicable, ignored", "order_id", orderID)
	}
	return nil
}
