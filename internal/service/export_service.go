package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/models"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
	"github.com/lgu-assessor/faas-api/pkg/export"
)

type auditLister interface {
	ListByRecord(ctx context.Context, recordID string) ([]models.AuditLog, error)
}

type recordReader interface {
	GetByID(ctx context.Context, id string) (*models.FAASRecord, error)
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a record's audit trail as CSV or PDF.
type ExportService struct {
	audits  auditLister
	records recordReader
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(audits auditLister, records recordReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		audits:  audits,
		records: records,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// AuditTrail renders the record's audit history in the requested format
// ("csv" or "pdf").
func (s *ExportService) AuditTrail(ctx context.Context, recordID, format string) (*ExportFile, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, appErrors.ErrNotFound
	}

	entries, err := s.audits.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}

	dataset := export.Dataset{
		Headers: []string{"Timestamp", "Action", "User", "Description"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		userID := ""
		if entry.UserID != nil {
			userID = *entry.UserID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Timestamp":   entry.CreatedAt.UTC().Format(time.RFC3339),
			"Action":      entry.Action,
			"User":        userID,
			"Description": entry.Description,
		})
	}

	tag := record.FileTag()
	switch strings.ToLower(format) {
	case "csv", "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("audit_%s.csv", tag),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case "pdf":
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Audit Trail - %s", record.ArfNo))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("audit_%s.pdf", tag),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
