package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyPaymentSuccess     NotificationType = "payment_success"
	NotifyCommitReminder     NotificationType = "commit_reminder"
	NotifyCollectionReminder NotificationType = "collection_reminder"
	NotifyOrderCommitted     NotificationType = "order_committed"
	NotifyOrderCancelled     NotificationType = "order_cancelled"
	NotifyReceiptReady       NotificationType = "receipt_ready"
	NotifyOrderShipped       NotificationType = "order_shipped"
)

type Notification struct {
	ID      string           `json:"id"`
	OrderID string           `json:"order_id"`
	UserID  string           `json:"user_id"`
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Read    bool             `json:"read"`
	SentAt  time.Time        `json:"sent_at"`
}

func NewNotification(orderID, userID string, typ NotificationType, title, message string, at time.Time) Notification {
	return Notification{
		ID:      uuid.NewString(),
		OrderID: orderID,
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		SentAt:  at.UTC(),
	}
}

func PaymentSuccessNotice(o Order, at time.Time) Notification {
	return NewNotification(o.ID, o.BuyerID, NotifyPaymentSuccess, "Payment received",
		fmt.Sprintf("Your payment for order %s was successful. The seller has until %s to commit.",
			o.ID, o.CommitDeadline.UTC().Format(time.RFC1123)), at)
}

func OrderCommittedNotice(o Order, at time.Time) Notification {
	return NewNotification(o.ID, o.BuyerID, NotifyOrderCommitted, "Seller committed to your order",
		fmt.Sprintf("The seller has committed to order %s and will prepare your book.", o.ID), at)
}

func OrderCancelledNotices(o Order, at time.Time) []Notification {
	return []Notification{
		NewNotification(o.ID, o.BuyerID, NotifyOrderCancelled, "Order cancelled",
			fmt.Sprintf("Order %s was cancelled because the seller did not commit in time. A refund has been requested.", o.ID), at),
		NewNotification(o.ID, o.SellerID, NotifyOrderCancelled, "Order expired",
			fmt.Sprintf("Order %s expired because it was not committed before the deadline.", o.ID), at),
	}
}

func ReminderNotice(o Order, kind ReminderKind, hours int, at time.Time) Notification {
	if kind == ReminderCollection {
		return NewNotification(o.ID, o.BuyerID, NotifyCollectionReminder, "Collect your book",
			fmt.Sprintf("Order %s is ready. %d hours left to arrange collection.", o.ID, hours), at)
	}
	return NewNotification(o.ID, o.SellerID, NotifyCommitReminder, "Commit to your sale",
		fmt.Sprintf("You have %d hours left to commit to order %s before it expires.", hours, o.ID), at)
}
