// Package memory is an in-process order store for local runs and tests. Every
// conditional write happens under one lock, which gives the same single-row
// guarantees the postgres store gets from UPDATE ... WHERE status = ....
package memory

import (
	"context"
	"encoding/json"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
	"github.com/dmehra2102/textbook-orders/pkg/outbox"
)

type Store struct {
	mu            sync.RWMutex
	nextEventID   int64
	orders        map[string]domain.Order
	soldBooks     map[string]bool
	notifications []domain.Notification
	audit         []domain.AuditEntry
	events        []outbox.Event
	claims        map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		nextEventID: 1,
		orders:      make(map[string]domain.Order),
		soldBooks:   make(map[string]bool),
		claims:      make(map[string]struct{}),
	}
}

// Put inserts or replaces an order as-is.
func (s *Store) Put(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Metadata = maps.Clone(o.Metadata)
	s.orders[o.ID] = o
}

func (s *Store) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) CommitIfPaid(_ context.Context, orderID, sellerID string, at time.Time) (domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.SellerID != sellerID || o.Status != domain.StatusPaid {
		return domain.Order{}, false, nil
	}
	if err := o.Commit(at); err != nil {
		return domain.Order{}, false, nil
	}
	s.orders[orderID] = o
	s.appendEvent(o.ID, domain.EventOrderCommitted, domain.NewOrderCommitted(o))
	return o, true, nil
}

func (s *Store) ListExpired(_ context.Context, now time.Time) ([]domain.Order, error) {
	return s.filter(func(o domain.Order) bool {
		return o.Status == domain.StatusPaid && o.DeadlinePassed(now)
	}), nil
}

func (s *Store) ExpireIfPaid(_ context.Context, orderID string, at time.Time, reason string) (domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != domain.StatusPaid || !o.DeadlinePassed(at) {
		return domain.Order{}, false, nil
	}
	if err := o.Expire(at); err != nil {
		return domain.Order{}, false, nil
	}
	o.CancellationReason = reason
	s.orders[orderID] = o
	s.appendEvent(o.ID, domain.EventOrderCancelled, domain.NewOrderCancelled(o))
	s.appendEvent(o.ID, domain.EventRefundRequested, domain.NewRefundRequested(o))
	return o, true, nil
}

func (s *Store) ListCommitDeadlinesBetween(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	return s.filter(func(o domain.Order) bool {
		return o.Status == domain.StatusPaid && within(o.CommitDeadline, from, to)
	}), nil
}

func (s *Store) ListCommittedBetween(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	return s.filter(func(o domain.Order) bool {
		return o.Status == domain.StatusCommitted && within(o.CommittedAt, from, to)
	}), nil
}

func (s *Store) MarkPaidIfPending(_ context.Context, orderID string, at, deadline time.Time, reference string) (domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != domain.StatusPending {
		return domain.Order{}, false, nil
	}
	if err := o.MarkPaid(at, deadline.Sub(at), reference); err != nil {
		return domain.Order{}, false, nil
	}
	s.orders[orderID] = o
	return o, true, nil
}

func (s *Store) MarkRefundedIfCancelled(_ context.Context, orderID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	if err := o.MarkRefunded(at); err != nil {
		return false, nil
	}
	s.orders[orderID] = o
	return true, nil
}

func (s *Store) MarkSold(_ context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.soldBooks[bookID] = true
	return nil
}

func (s *Store) Insert(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *Store) Append(_ context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

func (s *Store) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[key]; ok {
		return false, nil
	}
	s.claims[key] = struct{}{}
	return true, nil
}

func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

func (s *Store) BookSold(bookID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.soldBooks[bookID]
}

func (s *Store) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.notifications...)
}

func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

// Events returns the outbox events written so far, oldest first.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) filter(keep func(domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// appendEvent must be called with mu held.
func (s *Store) appendEvent(orderID, eventType string, v any) {
	payload, _ := json.Marshal(v)
	s.events = append(s.events, outbox.Event{
		ID:            s.nextEventID,
		AggregateType: "order",
		AggregateID:   orderID,
		Type:          eventType,
		Payload:       payload,
		Status:        outbox.StatusPending,
		CreatedAt:     time.Now().UTC(),
	})
	s.nextEventID++
}

func within(t *time.Time, from, to time.Time) bool {
	return t != nil && t.After(from) && !t.After(to)
}
