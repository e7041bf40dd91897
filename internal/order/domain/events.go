package domain

import "time"

const (
	EventOrderCommitted  = "OrderCommitted"
	EventOrderCancelled  = "OrderCancelled"
	EventRefundRequested = "RefundRequested"

	EventPaymentProcessed = "PaymentProcessed"
	EventRefundProcessed  = "RefundProcessed"
)

type OrderCommitted struct {
	OrderID     string    `json:"order_id"`
	BuyerID     string    `json:"buyer_id"`
	SellerID    string    `json:"seller_id"`
	BookID      string    `json:"book_id"`
	CommittedAt time.Time `json:"committed_at"`
}

type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// RefundRequested asks the payment processor integration to reverse a captured payment.
type RefundRequested struct {
	OrderID     string `json:"order_id"`
	BuyerID     string `json:"buyer_id"`
	AmountCents int64  `json:"amount"`
	Reference   string `json:"paystack_reference"`
	Reason      string `json:"reason"`
}

type PaymentProcessed struct {
	OrderID     string `json:"OrderID"`
	AmountCents int64  `json:"AmountCents"`
	Reference   string `json:"Reference"`
}

type RefundProcessed struct {
	OrderID string `json:"OrderID"`
}

func NewOrderCommitted(o Order) OrderCommitted {
	return OrderCommitted{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		BookID:      o.BookID,
		CommittedAt: *o.CommittedAt,
	}
}

func NewOrderCancelled(o Order) OrderCancelled {
	return OrderCancelled{OrderID: o.ID, Reason: o.CancellationReason, CancelledAt: *o.CancelledAt}
}

func NewRefundRequested(o Order) RefundRequested {
	return RefundRequested{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		AmountCents: o.AmountCents,
		Reference:   o.PaymentReference,
		Reason:      o.CancellationReason,
	}
}
