package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lgu-assessor/faas-api/internal/models"
)

const recordColumns = `id, arf_no, pin, oct_tct_no, cln, owner_name, owner_address,
	administrator_name, administrator_address,
	property_location, property_barangay, property_municipality, property_province,
	north_boundary, south_boundary, east_boundary, west_boundary,
	previous_td_no, previous_owner, effectivity_year, taxability,
	previous_av_land, previous_av_improvements, previous_total_av,
	memoranda_code, memoranda_paragraph,
	land_appraisals, improvements, market_values, assessments,
	status, encoder_id, approver_id, rejection_reason, decided_at,
	excel_path, unirrig_excel_path, pdf_path, unirrig_pdf_path,
	hidden, created_at, updated_at`

// RecordRepository persists FAAS records.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a new record row.
func (r *RecordRepository) Create(ctx context.Context, record *models.FAASRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.RecordStatusDraft
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO faas_records
	(id, arf_no, pin, oct_tct_no, cln, owner_name, owner_address,
	 administrator_name, administrator_address,
	 property_location, property_barangay, property_municipality, property_province,
	 north_boundary, south_boundary, east_boundary, west_boundary,
	 previous_td_no, previous_owner, effectivity_year, taxability,
	 previous_av_land, previous_av_improvements, previous_total_av,
	 memoranda_code, memoranda_paragraph,
	 land_appraisals, improvements, market_values, assessments,
	 status, encoder_id, hidden, created_at, updated_at)
	VALUES (:id, :arf_no, :pin, :oct_tct_no, :cln, :owner_name, :owner_address,
	 :administrator_name, :administrator_address,
	 :property_location, :property_barangay, :property_municipality, :property_province,
	 :north_boundary, :south_boundary, :east_boundary, :west_boundary,
	 :previous_td_no, :previous_owner, :effectivity_year, :taxability,
	 :previous_av_land, :previous_av_improvements, :previous_total_av,
	 :memoranda_code, :memoranda_paragraph,
	 :land_appraisals, :improvements, :market_values, :assessments,
	 :status, :encoder_id, :hidden, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// GetByID fetches a record by identifier. Hidden records are invisible here;
// callers see sql.ErrNoRows for both missing and soft-deleted rows.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.FAASRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM faas_records WHERE id = $1 AND hidden = FALSE`, recordColumns)
	var record models.FAASRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns records matching the filter, latest first.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.FAASRecord, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM faas_records`, recordColumns))

	conditions, args := recordConditions(filter)
	builder.WriteString(" WHERE ")
	builder.WriteString(strings.Join(conditions, " AND "))
	builder.WriteString(" ORDER BY updated_at DESC")

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize))

	var records []models.FAASRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Count returns the number of records matching the filter.
func (r *RecordRepository) Count(ctx context.Context, filter models.RecordFilter) (int, error) {
	conditions, args := recordConditions(filter)
	query := "SELECT COUNT(*) FROM faas_records WHERE " + strings.Join(conditions, " AND ")
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func recordConditions(filter models.RecordFilter) ([]string, []interface{}) {
	conditions := []string{"hidden = FALSE"}
	args := make([]interface{}, 0, 4)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.EncoderID != "" {
		args = append(args, filter.EncoderID)
		conditions = append(conditions, fmt.Sprintf("encoder_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(arf_no ILIKE $%d OR owner_name ILIKE $%d)", len(args), len(args)))
	}
	return conditions, args
}

// UpdatePayload replaces the editable payload columns and clears all four
// generated-artifact columns in the same statement, so no reader observes a
// changed payload still pointing at stale artifacts. The caller decides the
// resulting status (edits from pending revert to draft).
func (r *RecordRepository) UpdatePayload(ctx context.Context, record *models.FAASRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faas_records SET
	 arf_no = :arf_no, pin = :pin, oct_tct_no = :oct_tct_no, cln = :cln,
	 owner_name = :owner_name, owner_address = :owner_address,
	 administrator_name = :administrator_name, administrator_address = :administrator_address,
	 property_location = :property_location, property_barangay = :property_barangay,
	 property_municipality = :property_municipality, property_province = :property_province,
	 north_boundary = :north_boundary, south_boundary = :south_boundary,
	 east_boundary = :east_boundary, west_boundary = :west_boundary,
	 previous_td_no = :previous_td_no, previous_owner = :previous_owner,
	 effectivity_year = :effectivity_year, taxability = :taxability,
	 previous_av_land = :previous_av_land, previous_av_improvements = :previous_av_improvements,
	 previous_total_av = :previous_total_av,
	 memoranda_code = :memoranda_code, memoranda_paragraph = :memoranda_paragraph,
	 land_appraisals = :land_appraisals, improvements = :improvements,
	 market_values = :market_values, assessments = :assessments,
	 status = :status,
	 excel_path = NULL, unirrig_excel_path = NULL, pdf_path = NULL, unirrig_pdf_path = NULL,
	 updated_at = :updated_at
	WHERE id = :id AND hidden = FALSE`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("update record payload: %w", err)
	}
	return requireRow(result, "update record payload")
}

// UpdateStatusParams groups the lifecycle columns changed by a transition.
type UpdateStatusParams struct {
	ID              string
	Status          models.RecordStatus
	ApproverID      *string
	DecidedAt       *time.Time
	RejectionReason *string
}

// UpdateStatus persists a lifecycle transition. Decision fields are written
// as given, including explicit nulls, so revert transitions clear them.
func (r *RecordRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	const query = `UPDATE faas_records SET
	 status = :status, approver_id = :approver_id, decided_at = :decided_at,
	 rejection_reason = :rejection_reason, updated_at = :updated_at
	WHERE id = :id AND hidden = FALSE`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"approver_id":      params.ApproverID,
		"decided_at":       params.DecidedAt,
		"rejection_reason": params.RejectionReason,
		"updated_at":       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update record status: %w", err)
	}
	return requireRow(result, "update record status")
}

// ArtifactUpdate names the generated-file columns to change. Nil fields are
// left untouched. Clear nulls all four; ClearPreviews nulls only the preview
// columns, used when a fresh spreadsheet supersedes older previews.
type ArtifactUpdate struct {
	ExcelPath        *string
	UnirrigExcelPath *string
	PDFPath          *string
	UnirrigPDFPath   *string
	Clear            bool
	ClearPreviews    bool
}

// UpdateArtifacts persists generated artifact paths for a record.
func (r *RecordRepository) UpdateArtifacts(ctx context.Context, id string, update ArtifactUpdate) error {
	setParts := make([]string, 0, 5)
	params := map[string]interface{}{"id": id, "updated_at": time.Now().UTC()}

	if update.Clear {
		setParts = append(setParts,
			"excel_path = NULL", "unirrig_excel_path = NULL",
			"pdf_path = NULL", "unirrig_pdf_path = NULL")
	} else {
		if update.ClearPreviews {
			setParts = append(setParts, "pdf_path = NULL", "unirrig_pdf_path = NULL")
		}
		if update.ExcelPath != nil {
			setParts = append(setParts, "excel_path = :excel_path")
			params["excel_path"] = *update.ExcelPath
		}
		if update.UnirrigExcelPath != nil {
			setParts = append(setParts, "unirrig_excel_path = :unirrig_excel_path")
			params["unirrig_excel_path"] = *update.UnirrigExcelPath
		}
		if update.PDFPath != nil {
			setParts = append(setParts, "pdf_path = :pdf_path")
			params["pdf_path"] = *update.PDFPath
		}
		if update.UnirrigPDFPath != nil {
			setParts = append(setParts, "unirrig_pdf_path = :unirrig_pdf_path")
			params["unirrig_pdf_path"] = *update.UnirrigPDFPath
		}
	}
	if len(setParts) == 0 {
		return nil
	}
	setParts = append(setParts, "updated_at = :updated_at")

	query := fmt.Sprintf("UPDATE faas_records SET %s WHERE id = :id AND hidden = FALSE", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return fmt.Errorf("update record artifacts: %w", err)
	}
	return requireRow(result, "update record artifacts")
}

// SoftDelete marks the record hidden. Records are never physically removed.
func (r *RecordRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE faas_records SET hidden = TRUE, updated_at = $2 WHERE id = $1 AND hidden = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete record: %w", err)
	}
	return requireRow(result, "soft delete record")
}

// CountByStatus aggregates visible records per lifecycle status.
func (r *RecordRepository) CountByStatus(ctx context.Context) (map[models.RecordStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM faas_records WHERE hidden = FALSE GROUP BY status`
	rows := []struct {
		Status models.RecordStatus `db:"status"`
		Count  int                 `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count records by status: %w", err)
	}
	counts := make(map[models.RecordStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
