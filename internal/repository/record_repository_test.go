package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgu-assessor/faas-api/internal/models"
)

func newRecordMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func recordRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "arf_no", "pin", "oct_tct_no", "cln", "owner_name", "owner_address",
		"administrator_name", "administrator_address",
		"property_location", "property_barangay", "property_municipality", "property_province",
		"north_boundary", "south_boundary", "east_boundary", "west_boundary",
		"previous_td_no", "previous_owner", "effectivity_year", "taxability",
		"previous_av_land", "previous_av_improvements", "previous_total_av",
		"memoranda_code", "memoranda_paragraph",
		"land_appraisals", "improvements", "market_values", "assessments",
		"status", "encoder_id", "approver_id", "rejection_reason", "decided_at",
		"excel_path", "unirrig_excel_path", "pdf_path", "unirrig_pdf_path",
		"hidden", "created_at", "updated_at",
	}).AddRow(
		"rec-1", "ARF-2024-001", "123-45", "OCT-1", "CLN-1", "Juan Dela Cruz", "Poblacion",
		"", "",
		"Sitio Uno", "Poblacion", "Santa Cruz", "Laguna",
		"Lot 1", "Lot 3", "Road", "Creek",
		"TD-99", "Pedro Penduko", "2020", "Taxable",
		10000.0, 0.0, 10000.0,
		"", "",
		[]byte(`[]`), []byte(`[]`), []byte(`[]`), []byte(`[]`),
		"DRAFT", "user-enc", nil, nil, nil,
		nil, nil, nil, nil,
		false, now, now,
	)
}

func TestRecordRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec("INSERT INTO faas_records").
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.FAASRecord{ArfNo: "ARF-2024-001", OwnerName: "Juan Dela Cruz", EncoderID: "user-enc"}
	err := repo.Create(context.Background(), record)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.RecordStatusDraft, record.Status)
	assert.False(t, record.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGetByIDExcludesHidden(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM faas_records WHERE id = \$1 AND hidden = FALSE`).
		WithArgs("rec-1").
		WillReturnRows(recordRows())

	record, err := repo.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "ARF-2024-001", record.ArfNo)
	assert.Equal(t, models.RecordStatusDraft, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM faas_records WHERE id = \$1 AND hidden = FALSE`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecordRepositoryListFiltersStatusAndSearch(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM faas_records WHERE hidden = FALSE AND status IN \(\$1,\$2\) AND \(arf_no ILIKE \$3 OR owner_name ILIKE \$3\) ORDER BY updated_at DESC LIMIT 50 OFFSET 0`).
		WithArgs(models.RecordStatusDraft, models.RecordStatusPending, "%juan%").
		WillReturnRows(recordRows())

	records, err := repo.List(context.Background(), models.RecordFilter{
		Status: []models.RecordStatus{models.RecordStatusDraft, models.RecordStatusPending},
		Search: "juan",
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryCount(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM faas_records WHERE hidden = FALSE AND encoder_id = \$1`).
		WithArgs("user-enc").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background(), models.RecordFilter{EncoderID: "user-enc"})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestRecordRepositoryUpdatePayloadClearsArtifactColumns(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec(`UPDATE faas_records SET[\s\S]+excel_path = NULL, unirrig_excel_path = NULL, pdf_path = NULL, unirrig_pdf_path = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.FAASRecord{ID: "rec-1", ArfNo: "ARF-2024-001", OwnerName: "Juan", Status: models.RecordStatusDraft}
	err := repo.UpdatePayload(context.Background(), record)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdatePayloadMissingRow(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec(`UPDATE faas_records SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePayload(context.Background(), &models.FAASRecord{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecordRepositoryUpdateStatusWritesNulls(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec(`UPDATE faas_records SET\s+status = `).
		WithArgs(models.RecordStatusPending, nil, nil, nil, sqlmock.AnyArg(), "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:     "rec-1",
		Status: models.RecordStatusPending,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateArtifactsClear(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec(`UPDATE faas_records SET excel_path = NULL, unirrig_excel_path = NULL, pdf_path = NULL, unirrig_pdf_path = NULL, updated_at = .+ WHERE id = .+ AND hidden = FALSE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateArtifacts(context.Background(), "rec-1", ArtifactUpdate{Clear: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateArtifactsSpreadsheetClearsPreviews(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec(`UPDATE faas_records SET pdf_path = NULL, unirrig_pdf_path = NULL, excel_path = `).
		WillReturnResult(sqlmock.NewResult(0, 1))

	excel := "/out/FAAS/FAAS_ARF-2024-001.xlsx"
	err := repo.UpdateArtifacts(context.Background(), "rec-1", ArtifactUpdate{
		ExcelPath:     &excel,
		ClearPreviews: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateArtifactsNoChangesIsNoop(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	err := repo.UpdateArtifacts(context.Background(), "rec-1", ArtifactUpdate{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec(`UPDATE faas_records SET hidden = TRUE, updated_at = \$2 WHERE id = \$1 AND hidden = FALSE`).
		WithArgs("rec-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SoftDelete(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM faas_records WHERE hidden = FALSE GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("DRAFT", 3).
			AddRow("APPROVED", 2))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.RecordStatusDraft])
	assert.Equal(t, 2, counts[models.RecordStatusApproved])
	assert.Equal(t, 0, counts[models.RecordStatusPending])
}
