package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
	"github.com/dmehra2102/textbook-orders/pkg/tracing"
)

const orderColumns = `id, buyer_id, seller_id, book_id, amount, status, payment_status, paystack_reference,
	commit_deadline, paid_at, committed_at, cancelled_at, cancellation_reason, metadata, created_at, updated_at`

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	source string
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool, source: "order-service"}
}

// Save inserts an order row. Orders are created by the checkout flow; this exists for
// that flow and for seeding.
func (r *Repository) Save(ctx context.Context, o domain.Order) error {
	metadata := o.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.BuyerID, o.SellerID, o.BookID, o.AmountCents, o.Status, o.PaymentStatus, nullable(o.PaymentReference),
		o.CommitDeadline, o.PaidAt, o.CommittedAt, o.CancelledAt, nullable(o.CancellationReason), metadata,
		o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, err
}

func (r *Repository) CommitIfPaid(ctx context.Context, orderID, sellerID string, at time.Time) (domain.Order, bool, error) {
	return r.transition(ctx, func(tx pgx.Tx) (domain.Order, error) {
		return scanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET status='committed', committed_at=$3, updated_at=$3
			WHERE id=$1 AND seller_id=$2 AND status='paid'
			RETURNING `+orderColumns, orderID, sellerID, at.UTC()))
	}, func(o domain.Order) []outboxRecord {
		return []outboxRecord{{domain.EventOrderCommitted, domain.NewOrderCommitted(o)}}
	})
}

func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status='paid' AND commit_deadline <= $1
		ORDER BY commit_deadline, id`, now.UTC())
}

func (r *Repository) ExpireIfPaid(ctx context.Context, orderID string, at time.Time, reason string) (domain.Order, bool, error) {
	return r.transition(ctx, func(tx pgx.Tx) (domain.Order, error) {
		return scanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET status='cancelled', cancelled_at=$2, cancellation_reason=$3, updated_at=$2
			WHERE id=$1 AND status='paid' AND commit_deadline <= $2
			RETURNING `+orderColumns, orderID, at.UTC(), reason))
	}, func(o domain.Order) []outboxRecord {
		return []outboxRecord{
			{domain.EventOrderCancelled, domain.NewOrderCancelled(o)},
			{domain.EventRefundRequested, domain.NewRefundRequested(o)},
		}
	})
}

func (r *Repository) ListCommitDeadlinesBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status='paid' AND commit_deadline > $1 AND commit_deadline <= $2
		ORDER BY commit_deadline, id`, from.UTC(), to.UTC())
}

func (r *Repository) ListCommittedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status='committed' AND committed_at > $1 AND committed_at <= $2
		ORDER BY committed_at, id`, from.UTC(), to.UTC())
}

func (r *Repository) MarkPaidIfPending(ctx context.Context, orderID string, at, deadline time.Time, reference string) (domain.Order, bool, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET status='paid', payment_status='paid', paid_at=$2, commit_deadline=$3,
			paystack_reference=COALESCE($4, paystack_reference), updated_at=$2
		WHERE id=$1 AND status='pending' AND commit_deadline IS NULL
		RETURNING `+orderColumns, orderID, at.UTC(), deadline.UTC(), nullable(reference)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

func (r *Repository) MarkRefundedIfCancelled(ctx context.Context, orderID string, at time.Time) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_status='refunded', updated_at=$2
		WHERE id=$1 AND status='cancelled' AND payment_status='paid'`, orderID, at.UTC())
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

type outboxRecord struct {
	eventType string
	payload   any
}

// transition runs a guarded UPDATE ... RETURNING and, when it matched, writes the
// resulting events to the outbox in the same transaction.
func (r *Repository) transition(ctx context.Context, update func(pgx.Tx) (domain.Order, error), events func(domain.Order) []outboxRecord) (domain.Order, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := update(tx)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, err
	}

	for _, ev := range events(o) {
		if err := r.insertOutbox(ctx, tx, o.ID, ev.eventType, ev.payload); err != nil {
			return domain.Order{}, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, orderID, eventType string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", orderID, eventType, payload, map[string]string{"source": r.source}, tracing.Traceparent(ctx))
	return err
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o         domain.Order
		reference *string
		reason    *string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.BookID, &o.AmountCents, &o.Status, &o.PaymentStatus, &reference,
		&o.CommitDeadline, &o.PaidAt, &o.CommittedAt, &o.CancelledAt, &reason, &o.Metadata, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if reference != nil {
		o.PaymentReference = *reference
	}
	if reason != nil {
		o.CancellationReason = *reason
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	for _, t := range []**time.Time{&o.CommitDeadline, &o.PaidAt, &o.CommittedAt, &o.CancelledAt} {
		if *t != nil {
			u := (*t).UTC()
			*t = &u
		}
	}
	return o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
