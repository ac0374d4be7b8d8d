package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lgu-assessor/faas-api/internal/models"
)

// AuditRepository persists the append-only audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit entry. Entries are never updated afterwards.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs
	(id, user_id, action, resource, resource_id, description, old_values, new_values, created_at)
	VALUES (:id, :user_id, :action, :resource, :resource_id, :description, :old_values, :new_values, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByRecord returns the audit trail for a record, oldest first.
func (r *AuditRepository) ListByRecord(ctx context.Context, recordID string) ([]models.AuditLog, error) {
	const query = `SELECT id, user_id, action, resource, resource_id, description, old_values, new_values, created_at
	FROM audit_logs WHERE resource_id = $1 ORDER BY created_at ASC`
	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, recordID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}

// DeleteByRecord purges a record's audit trail. Administrative use only.
func (r *AuditRepository) DeleteByRecord(ctx context.Context, recordID string) (int64, error) {
	const query = `DELETE FROM audit_logs WHERE resource_id = $1`
	result, err := r.db.ExecContext(ctx, query, recordID)
	if err != nil {
		return 0, fmt.Errorf("purge audit logs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit logs rows: %w", err)
	}
	return rows, nil
}
