package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

func (r *Repository) MarkSold(ctx context.Context, bookID string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE books SET sold=TRUE, updated_at=now() WHERE id=$1`, bookID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("book %s not found", bookID)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, n domain.Notification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO notifications (id, order_id, user_id, type, title, message, read, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.OrderID, n.UserID, n.Type, n.Title, n.Message, n.Read, n.SentAt)
	return err
}

func (r *Repository) Append(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_logs (id, action, table_name, record_id, user_id, old_values, new_values, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.Action, e.TableName, e.RecordID, e.UserID, e.OldValues, e.NewValues, e.CreatedAt)
	return err
}

// NotificationsFor lists a user's notifications, newest first.
func (r *Repository) NotificationsFor(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, user_id, type, title, message, read, sent_at
		FROM notifications WHERE user_id=$1 ORDER BY sent_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.OrderID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.SentAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
