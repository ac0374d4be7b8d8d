package models

import "time"

// AuditAction constants represent record lifecycle actions to be logged.
const (
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionSubmit         = "SUBMIT"
	AuditActionApprove        = "APPROVE"
	AuditActionReject         = "REJECT"
	AuditActionCancelDecision = "CANCEL_DECISION"
	AuditActionDelete         = "DELETE"
	AuditActionLogin          = "LOGIN"
)

// AuditLog represents an immutable audit trail row.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	Resource    string    `db:"resource" json:"resource"`
	ResourceID  *string   `db:"resource_id" json:"resource_id,omitempty"`
	Description string    `db:"description" json:"description"`
	OldValues   []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues   []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
