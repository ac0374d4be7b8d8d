package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgu-assessor/faas-api/internal/middleware"
	"github.com/lgu-assessor/faas-api/internal/models"
	"github.com/lgu-assessor/faas-api/internal/repository"
	"github.com/lgu-assessor/faas-api/internal/service"
	"github.com/lgu-assessor/faas-api/pkg/jobs"
	"github.com/lgu-assessor/faas-api/pkg/storage"
)

type fakeRecordStore struct {
	records map[string]*models.FAASRecord
}

func (f *fakeRecordStore) Create(ctx context.Context, record *models.FAASRecord) error {
	if record.ID == "" {
		record.ID = "rec-created"
	}
	f.records[record.ID] = record
	return nil
}

func (f *fakeRecordStore) GetByID(ctx context.Context, id string) (*models.FAASRecord, error) {
	if record, ok := f.records[id]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRecordStore) List(ctx context.Context, filter models.RecordFilter) ([]models.FAASRecord, error) {
	out := make([]models.FAASRecord, 0, len(f.records))
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, nil
}

func (f *fakeRecordStore) Count(ctx context.Context, filter models.RecordFilter) (int, error) {
	return len(f.records), nil
}

func (f *fakeRecordStore) UpdatePayload(ctx context.Context, record *models.FAASRecord) error {
	copied := *record
	f.records[record.ID] = &copied
	return nil
}

func (f *fakeRecordStore) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	if record, ok := f.records[params.ID]; ok {
		record.Status = params.Status
		record.ApproverID = params.ApproverID
		record.DecidedAt = params.DecidedAt
		record.RejectionReason = params.RejectionReason
	}
	return nil
}

func (f *fakeRecordStore) SoftDelete(ctx context.Context, id string) error {
	delete(f.records, id)
	return nil
}

type fakeAuditStore struct{}

func (fakeAuditStore) Create(ctx context.Context, entry *models.AuditLog) error { return nil }

type fakeBroadcaster struct {
	events []models.LifecycleEvent
}

func (f *fakeBroadcaster) Broadcast(event models.LifecycleEvent) {
	f.events = append(f.events, event)
}

type fakeGenerator struct {
	result *service.GenerationResult
}

func (f *fakeGenerator) Generate(ctx context.Context, recordID string) (*service.GenerationResult, error) {
	if f.result != nil {
		return f.result, nil
	}
	return &service.GenerationResult{}, nil
}

func (f *fakeGenerator) DeleteArtifactFiles(record *models.FAASRecord) {}

type fakeQueue struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func encoderClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-enc", Role: models.RoleEncoder, Email: "encoder@lgu.gov.ph"}
}

func approverClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-app", Role: models.RoleApprover}
}

func testRecordHandler(records ...*models.FAASRecord) (*RecordHandler, *fakeRecordStore, *fakeQueue, *fakeBroadcaster) {
	store := &fakeRecordStore{records: map[string]*models.FAASRecord{}}
	for _, record := range records {
		store.records[record.ID] = record
	}
	events := &fakeBroadcaster{}
	generator := &fakeGenerator{result: &service.GenerationResult{
		ExcelGenerated: true,
		ExcelPath:      "/out/FAAS/FAAS_ARF-2024-001.xlsx",
	}}
	recordSvc := service.NewRecordService(store, fakeAuditStore{}, events, generator, nil, nil, nil)
	queue := &fakeQueue{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	handler := NewRecordHandler(recordSvc, nil, queue, signer, nil, nil)
	return handler, store, queue, events
}

func draftFixture() *models.FAASRecord {
	return &models.FAASRecord{
		ID:        "rec-1",
		ArfNo:     "ARF-2024-001",
		OwnerName: "Juan Dela Cruz",
		Status:    models.RecordStatusDraft,
		EncoderID: "user-enc",
	}
}

func performRequest(t *testing.T, claims *models.JWTClaims, method, target, body string, handlerFunc gin.HandlerFunc, params ...gin.Param) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	c.Params = params
	handlerFunc(c)
	return rec
}

func TestRecordHandlerCreate(t *testing.T) {
	handler, store, _, _ := testRecordHandler()

	rec := performRequest(t, encoderClaims(), http.MethodPost, "/records",
		`{"arf_no":"ARF-2024-002","owner_name":"Maria Clara"}`, handler.Create)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, store.records, 1)
}

func TestRecordHandlerCreateRejectsBadJSON(t *testing.T) {
	handler, _, _, _ := testRecordHandler()

	rec := performRequest(t, encoderClaims(), http.MethodPost, "/records", `{not json`, handler.Create)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordHandlerSubmitReturnsGenerationOutcome(t *testing.T) {
	handler, _, _, events := testRecordHandler(draftFixture())

	rec := performRequest(t, encoderClaims(), http.MethodPost, "/records/rec-1/submit", "",
		handler.Submit, gin.Param{Key: "id", Value: "rec-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data struct {
			Record     models.FAASRecord `json:"record"`
			Generation struct {
				ExcelGenerated bool `json:"excelGenerated"`
			} `json:"generation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.RecordStatusPending, envelope.Data.Record.Status)
	assert.True(t, envelope.Data.Generation.ExcelGenerated)
	require.Len(t, events.events, 1)
	assert.Equal(t, models.AuditActionSubmit, events.events[0].Action)
}

func TestRecordHandlerSubmitWrongStatusConflicts(t *testing.T) {
	approved := draftFixture()
	approved.Status = models.RecordStatusApproved
	handler, _, _, _ := testRecordHandler(approved)

	rec := performRequest(t, encoderClaims(), http.MethodPost, "/records/rec-1/submit", "",
		handler.Submit, gin.Param{Key: "id", Value: "rec-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecordHandlerRejectRequiresReason(t *testing.T) {
	pending := draftFixture()
	pending.Status = models.RecordStatusPending
	handler, _, _, _ := testRecordHandler(pending)

	rec := performRequest(t, approverClaims(), http.MethodPost, "/records/rec-1/reject",
		`{"reason":""}`, handler.Reject, gin.Param{Key: "id", Value: "rec-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordHandlerCancelDecision(t *testing.T) {
	approved := draftFixture()
	approved.Status = models.RecordStatusApproved
	approverID := "user-app"
	approved.ApproverID = &approverID
	handler, store, _, _ := testRecordHandler(approved)

	rec := performRequest(t, approverClaims(), http.MethodPost, "/records/rec-1/cancel-decision", "",
		handler.CancelDecision, gin.Param{Key: "id", Value: "rec-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RecordStatusPending, store.records["rec-1"].Status)
	assert.Nil(t, store.records["rec-1"].ApproverID)
}

func TestRecordHandlerGenerateQueuesJob(t *testing.T) {
	handler, _, queue, _ := testRecordHandler(draftFixture())

	rec := performRequest(t, encoderClaims(), http.MethodPost, "/records/rec-1/generate", "",
		handler.Generate, gin.Param{Key: "id", Value: "rec-1"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "rec-1", queue.jobs[0].ID)
	assert.Equal(t, service.JobTypeRegenerate, queue.jobs[0].Type)
}

func TestRecordHandlerGenerateUnknownRecord(t *testing.T) {
	handler, _, queue, _ := testRecordHandler()

	rec := performRequest(t, encoderClaims(), http.MethodPost, "/records/missing/generate", "",
		handler.Generate, gin.Param{Key: "id", Value: "missing"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, queue.jobs)
}

func TestRecordHandlerFilesListsSignedLinks(t *testing.T) {
	record := draftFixture()
	excel := "/out/FAAS/FAAS_ARF-2024-001.xlsx"
	pdf := "/out/FAAS/FAAS_ARF-2024-001.pdf"
	record.ExcelPath = &excel
	record.PDFPath = &pdf
	handler, _, _, _ := testRecordHandler(record)

	rec := performRequest(t, encoderClaims(), http.MethodGet, "/records/rec-1/files", "",
		handler.Files, gin.Param{Key: "id", Value: "rec-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data struct {
			RecordID string `json:"record_id"`
			Files    []struct {
				Kind string `json:"kind"`
				URL  string `json:"url"`
			} `json:"files"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "rec-1", envelope.Data.RecordID)
	require.Len(t, envelope.Data.Files, 2)
	assert.Equal(t, "faas_excel", envelope.Data.Files[0].Kind)
	assert.Contains(t, envelope.Data.Files[0].URL, "/api/v1/files/download?token=")
}

func TestRecordHandlerListValidatesStatus(t *testing.T) {
	handler, _, _, _ := testRecordHandler()

	rec := performRequest(t, encoderClaims(), http.MethodGet, "/records?status=BOGUS", "", handler.List)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
