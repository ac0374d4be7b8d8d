package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/models"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
)

type auditTrailStore interface {
	ListByRecord(ctx context.Context, recordID string) ([]models.AuditLog, error)
	DeleteByRecord(ctx context.Context, recordID string) (int64, error)
}

// AuditService reads and purges per-record audit trails. Writes happen inside
// the lifecycle service so they always pair with the mutation they describe.
type AuditService struct {
	audits  auditTrailStore
	records recordReader
	logger  *zap.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(audits auditTrailStore, records recordReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audits: audits, records: records, logger: logger}
}

// Trail returns the record's audit history, oldest first.
func (s *AuditService) Trail(ctx context.Context, recordID string) ([]models.AuditLog, error) {
	if _, err := s.records.GetByID(ctx, recordID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	entries, err := s.audits.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return entries, nil
}

// Purge deletes the record's audit trail and returns the number of entries
// removed. Administrative use only; the route is role-gated.
func (s *AuditService) Purge(ctx context.Context, recordID string) (int64, error) {
	deleted, err := s.audits.DeleteByRecord(ctx, recordID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge audit trail")
	}
	s.logger.Info("audit trail purged", zap.String("record_id", recordID), zap.Int64("deleted", deleted))
	return deleted, nil
}
