package application

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

const (
	ActionCancelled = "cancelled"
	ActionFailed    = "failed"
)

type ExpiredOrder struct {
	OrderID         string     `json:"order_id"`
	BuyerID         string     `json:"buyer_id,omitempty"`
	SellerID        string     `json:"seller_id,omitempty"`
	Action          string     `json:"action"`
	RefundInitiated bool       `json:"refund_initiated"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

type SweepResult struct {
	ExpiredCount int            `json:"expired_count"`
	Orders       []ExpiredOrder `json:"expired_orders"`
	ProcessedAt  time.Time      `json:"processed_at"`
	// Interrupted is set when the context ended before every candidate was visited.
	Interrupted bool `json:"interrupted,omitempty"`
}

// SweepExpiredCommits cancels every paid order whose commit deadline is at or before now.
// A failure on one order is recorded in its outcome and the sweep moves on; only a
// failure to read the candidates is returned as an error. A cancelled context stops the
// loop and the outcomes gathered so far are returned with Interrupted set.
func (s *Service) SweepExpiredCommits(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.UTC()
	candidates, err := s.orders.ListExpired(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list expired orders: %w", err)
	}

	res := SweepResult{Orders: make([]ExpiredOrder, 0, len(candidates)), ProcessedAt: now}
	for _, c := range candidates {
		if ctx.Err() != nil {
			res.Interrupted = true
			s.log.Warn("expiry sweep interrupted", "reported", len(res.Orders), "candidates", len(candidates), "err", ctx.Err())
			break
		}
		out, processed := s.expireOne(ctx, c, now)
		if !processed {
			continue
		}
		if out.Action == ActionCancelled {
			res.ExpiredCount++
		}
		res.Orders = append(res.Orders, out)
	}

	if len(candidates) > 0 {
		s.log.Info("expiry sweep finished", "candidates", len(candidates), "expired", res.ExpiredCount)
	}
	return res, nil
}

// expireOne reports processed=false when the order left paid before our write landed.
func (s *Service) expireOne(ctx context.Context, c domain.Order, now time.Time) (ExpiredOrder, bool) {
	out := ExpiredOrder{OrderID: c.ID, BuyerID: c.BuyerID, SellerID: c.SellerID}

	o, ok, err := s.orders.ExpireIfPaid(ctx, c.ID, now, domain.ExpiryReason)
	if err != nil {
		s.log.Error("expire order failed", "order_id", c.ID, "err", err)
		out.Action = ActionFailed
		out.Error = err.Error()
		return out, true
	}
	if !ok {
		s.log.Info("order no longer paid, skipped", "order_id", c.ID)
		return out, false
	}

	out.Action = ActionCancelled
	out.CancelledAt = o.CancelledAt
	// the refund request was queued in the same write as the cancellation
	out.RefundInitiated = true
	for _, n := range domain.OrderCancelledNotices(o, now) {
		s.notify(ctx, n)
	}
	if err := s.audit.Append(ctx, domain.ExpireAudit(o, now)); err != nil {
		s.log.Error("audit append failed", "order_id", o.ID, "err", err)
	}
	return out, true
}
