package application

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

type ReminderOutcome struct {
	OrderID        string              `json:"order_id"`
	Kind           domain.ReminderKind `json:"type"`
	UserID         string              `json:"user_id"`
	Deadline       time.Time           `json:"deadline"`
	HoursRemaining int                 `json:"hours_remaining"`
	Sent           bool                `json:"sent"`
	Error          string              `json:"error,omitempty"`
}

type ReminderResult struct {
	TotalReminders int               `json:"total_reminders"`
	Reminders      []ReminderOutcome `json:"reminders"`
	ProcessedAt    time.Time         `json:"processed_at"`
	Interrupted    bool              `json:"interrupted,omitempty"`
}

// DispatchReminders notifies sellers of approaching commit deadlines and buyers of
// approaching collection deadlines. It only reads orders.
func (s *Service) DispatchReminders(ctx context.Context, now time.Time) (ReminderResult, error) {
	now = now.UTC()
	due, err := s.dueReminders(ctx, now)
	if err != nil {
		return ReminderResult{}, err
	}

	res := ReminderResult{Reminders: make([]ReminderOutcome, 0, len(due)), ProcessedAt: now}
	for _, r := range due {
		if ctx.Err() != nil {
			res.Interrupted = true
			s.log.Warn("reminder pass interrupted", "reported", len(res.Reminders), "due", len(due), "err", ctx.Err())
			break
		}
		out, attempted := s.remindOne(ctx, r, now)
		if !attempted {
			continue
		}
		if out.Sent {
			res.TotalReminders++
		}
		res.Reminders = append(res.Reminders, out)
	}

	if res.TotalReminders > 0 {
		s.log.Info("reminders dispatched", "total", res.TotalReminders)
	}
	return res, nil
}

func (s *Service) dueReminders(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	until := now.Add(s.cfg.ReminderLookahead)

	paid, err := s.orders.ListCommitDeadlinesBetween(ctx, now, until)
	if err != nil {
		return nil, fmt.Errorf("list commit deadlines: %w", err)
	}
	committed, err := s.orders.ListCommittedBetween(ctx, now.Add(-s.cfg.CollectionWindow), until.Add(-s.cfg.CollectionWindow))
	if err != nil {
		return nil, fmt.Errorf("list collection deadlines: %w", err)
	}

	due := make([]domain.Reminder, 0, len(paid)+len(committed))
	for _, o := range paid {
		if o.CommitDeadline == nil {
			continue
		}
		due = append(due, domain.Reminder{Kind: domain.ReminderCommitDeadline, Order: o, Deadline: *o.CommitDeadline})
	}
	for _, o := range committed {
		if o.CommittedAt == nil {
			continue
		}
		due = append(due, domain.Reminder{Kind: domain.ReminderCollection, Order: o, Deadline: o.CommittedAt.Add(s.cfg.CollectionWindow)})
	}
	return due, nil
}

// remindOne reports attempted=false when this reminder was already sent for this deadline.
func (s *Service) remindOne(ctx context.Context, r domain.Reminder, now time.Time) (ReminderOutcome, bool) {
	hours := domain.HoursUntil(r.Deadline, now)
	out := ReminderOutcome{
		OrderID:        r.Order.ID,
		Kind:           r.Kind,
		UserID:         r.Recipient(),
		Deadline:       r.Deadline,
		HoursRemaining: hours,
	}

	key := reminderKey(r)
	claimed, err := s.ledger.Claim(ctx, key)
	if err != nil {
		s.log.Error("reminder ledger claim failed", "order_id", r.Order.ID, "kind", r.Kind, "err", err)
		out.Error = err.Error()
		return out, true
	}
	if !claimed {
		return out, false
	}

	if err := s.notifications.Insert(ctx, domain.ReminderNotice(r.Order, r.Kind, hours, now)); err != nil {
		s.log.Error("reminder notification failed", "order_id", r.Order.ID, "kind", r.Kind, "err", err)
		if rerr := s.ledger.Release(ctx, key); rerr != nil {
			s.log.Error("reminder ledger release failed", "key", key, "err", rerr)
		}
		out.Error = err.Error()
		return out, true
	}
	out.Sent = true
	return out, true
}

func reminderKey(r domain.Reminder) string {
	return fmt.Sprintf("reminder:%s:%s:%d", r.Kind, r.Order.ID, r.Deadline.Unix())
}
