package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusCommitted OrderStatus = "committed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

const (
	// DefaultCommitWindow is how long a seller has to commit after payment.
	DefaultCommitWindow = 48 * time.Hour

	ExpiryReason = "auto-expired: seller did not commit within deadline"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPaid},
	StatusPaid:      {StatusCommitted, StatusCancelled},
	StatusCommitted: {StatusShipped},
	StatusShipped:   {StatusDelivered},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID                 string            `json:"id"`
	BuyerID            string            `json:"buyer_id"`
	SellerID           string            `json:"seller_id"`
	BookID             string            `json:"book_id"`
	AmountCents        int64             `json:"amount"`
	Status             OrderStatus       `json:"status"`
	PaymentStatus      PaymentStatus     `json:"payment_status"`
	PaymentReference   string            `json:"paystack_reference,omitempty"`
	CommitDeadline     *time.Time        `json:"commit_deadline,omitempty"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	CommittedAt        *time.Time        `json:"committed_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func NewOrder(id, buyerID, sellerID, bookID string, amountCents int64, metadata map[string]string) Order {
	now := time.Now().UTC()
	return Order{
		ID:            id,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		BookID:        bookID,
		AmountCents:   amountCents,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkPaid records a captured payment and fixes the commit deadline.
func (o *Order) MarkPaid(at time.Time, window time.Duration, reference string) error {
	if !CanTransition(o.Status, StatusPaid) {
		return &InvalidStateError{OrderID: o.ID, Actual: o.Status, Expected: StatusPending}
	}
	at = at.UTC()
	deadline := at.Add(window)
	o.Status = StatusPaid
	o.PaymentStatus = PaymentPaid
	o.PaymentReference = reference
	o.PaidAt = &at
	o.CommitDeadline = &deadline
	o.UpdatedAt = at
	return nil
}

// Commit moves a paid order to committed.
func (o *Order) Commit(at time.Time) error {
	if o.Status != StatusPaid {
		return &InvalidStateError{OrderID: o.ID, Actual: o.Status, Expected: StatusPaid}
	}
	at = at.UTC()
	o.Status = StatusCommitted
	o.CommittedAt = &at
	o.UpdatedAt = at
	return nil
}

// Expire cancels a paid order whose commit deadline has passed.
func (o *Order) Expire(at time.Time) error {
	if o.Status != StatusPaid {
		return &InvalidStateError{OrderID: o.ID, Actual: o.Status, Expected: StatusPaid}
	}
	if !o.DeadlinePassed(at) {
		return ErrDeadlineNotReached
	}
	at = at.UTC()
	o.Status = StatusCancelled
	o.CancelledAt = &at
	o.CancellationReason = ExpiryReason
	o.UpdatedAt = at
	return nil
}

// MarkRefunded records a completed refund on a cancelled order. Status stays cancelled.
func (o *Order) MarkRefunded(at time.Time) error {
	if o.Status != StatusCancelled || o.PaymentStatus != PaymentPaid {
		return &InvalidStateError{OrderID: o.ID, Actual: o.Status, Expected: StatusCancelled}
	}
	o.PaymentStatus = PaymentRefunded
	o.UpdatedAt = at.UTC()
	return nil
}

func (o Order) DeadlinePassed(now time.Time) bool {
	return o.CommitDeadline != nil && !now.Before(*o.CommitDeadline)
}

func (o Order) OwnedBy(sellerID string) bool {
	return o.SellerID != "" && o.SellerID == strings.TrimSpace(sellerID)
}
