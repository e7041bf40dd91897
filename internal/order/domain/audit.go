package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditCommitToSale = "commit_to_sale"
	AuditAutoExpire   = "auto_expire_commit"
)

// AuditEntry is append-only.
type AuditEntry struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	TableName string            `json:"table_name"`
	RecordID  string            `json:"record_id"`
	UserID    string            `json:"user_id"`
	OldValues map[string]string `json:"old_values,omitempty"`
	NewValues map[string]string `json:"new_values"`
	CreatedAt time.Time         `json:"created_at"`
}

func CommitAudit(o Order, at time.Time) AuditEntry {
	return AuditEntry{
		ID:        uuid.NewString(),
		Action:    AuditCommitToSale,
		TableName: "orders",
		RecordID:  o.ID,
		UserID:    o.SellerID,
		OldValues: map[string]string{"status": string(StatusPaid)},
		NewValues: map[string]string{
			"status":       string(o.Status),
			"committed_at": o.CommittedAt.UTC().Format(time.RFC3339),
		},
		CreatedAt: at.UTC(),
	}
}

// ExpireAudit records a sweeper cancellation. The acting user is the system.
func ExpireAudit(o Order, at time.Time) AuditEntry {
	return AuditEntry{
		ID:        uuid.NewString(),
		Action:    AuditAutoExpire,
		TableName: "orders",
		RecordID:  o.ID,
		UserID:    "system",
		OldValues: map[string]string{"status": string(StatusPaid)},
		NewValues: map[string]string{
			"status":              string(o.Status),
			"cancellation_reason": o.CancellationReason,
		},
		CreatedAt: at.UTC(),
	}
}
