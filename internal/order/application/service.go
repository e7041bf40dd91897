package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

type Config struct {
	CommitWindow      time.Duration
	ReminderLookahead time.Duration
	CollectionWindow  time.Duration
}

func DefaultConfig() Config {
	return Config{
		CommitWindow:      domain.DefaultCommitWindow,
		ReminderLookahead: 12 * time.Hour,
		CollectionWindow:  72 * time.Hour,
	}
}

type Deps struct {
	Orders        OrderRepository
	Books         BookRepository
	Notifications NotificationRepository
	Audit         AuditLog
	Ledger        ReminderLedger
}

type Service struct {
	log           *slog.Logger
	orders        OrderRepository
	books         BookRepository
	notifications NotificationRepository
	audit         AuditLog
	ledger        ReminderLedger
	cfg           Config
	now           func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock used by CommitToSale and payment confirmation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(log *slog.Logger, deps Deps, cfg Config, opts ...Option) *Service {
	s := &Service{
		log:           log,
		orders:        deps.Orders,
		books:         deps.Books,
		notifications: deps.Notifications,
		audit:         deps.Audit,
		ledger:        deps.Ledger,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrder lets callers re-query an order after an unknown outcome.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, domain.ValidationError("order id is required")
	}
	return s.orders.Get(ctx, id)
}

func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if err := s.notifications.Insert(ctx, n); err != nil {
		s.log.Error("notification insert failed", "order_id", n.OrderID, "user_id", n.UserID, "type", n.Type, "err", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrOrderNotFound)
}
