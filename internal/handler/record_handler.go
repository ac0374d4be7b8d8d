package handler

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/dto"
	"github.com/lgu-assessor/faas-api/internal/models"
	"github.com/lgu-assessor/faas-api/internal/service"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
	"github.com/lgu-assessor/faas-api/pkg/jobs"
	"github.com/lgu-assessor/faas-api/pkg/response"
	"github.com/lgu-assessor/faas-api/pkg/storage"
)

type regenerateQueue interface {
	Enqueue(job jobs.Job) error
}

// RecordHandler exposes FAAS record endpoints.
type RecordHandler struct {
	records    *service.RecordService
	generation *service.GenerationService
	queue      regenerateQueue
	signer     *storage.SignedURLSigner
	files      *storage.LocalStorage
	logger     *zap.Logger
}

// NewRecordHandler constructs RecordHandler.
func NewRecordHandler(records *service.RecordService, generation *service.GenerationService, queue regenerateQueue, signer *storage.SignedURLSigner, files *storage.LocalStorage, logger *zap.Logger) *RecordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordHandler{
		records:    records,
		generation: generation,
		queue:      queue,
		signer:     signer,
		files:      files,
		logger:     logger,
	}
}

// List godoc
// @Summary List FAAS records
// @Tags Records
// @Produce json
// @Param status query string false "Comma-separated statuses (DRAFT,PENDING,APPROVED,REJECTED)"
// @Param encoderId query string false "Filter by encoder"
// @Param search query string false "Search by ARF number or owner name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /records [get]
func (h *RecordHandler) List(c *gin.Context) {
	var filter models.RecordFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.RecordStatus(strings.ToUpper(strings.TrimSpace(part)))
			switch status {
			case models.RecordStatusDraft, models.RecordStatusPending, models.RecordStatusApproved, models.RecordStatusRejected:
				filter.Status = append(filter.Status, status)
			default:
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
				return
			}
		}
	}
	filter.EncoderID = c.Query("encoderId")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	records, total, err := h.records.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get one FAAS record
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Create godoc
// @Summary Create a draft FAAS record
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body dto.CreateRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Router /records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update a FAAS record payload
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.UpdateRecordRequest true "Record payload"
// @Success 200 {object} response.Envelope
// @Router /records/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Soft-delete a FAAS record
// @Tags Records
// @Param id path string true "Record ID"
// @Success 204
// @Router /records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.records.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit a record for review
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/submit [post]
func (h *RecordHandler) Submit(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, generation, err := h.records.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SubmitRecordResponse{
		Record:     record,
		Generation: generation.Outcome(),
	}, nil)
}

// Approve godoc
// @Summary Approve a pending record
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.ApproveRecordRequest false "Optional comment"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/approve [post]
func (h *RecordHandler) Approve(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ApproveRecordRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	record, err := h.records.Approve(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Reject godoc
// @Summary Reject a pending record
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.RejectRecordRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/reject [post]
func (h *RecordHandler) Reject(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RejectRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Reject(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// CancelDecision godoc
// @Summary Revert an approval or rejection back to pending
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/cancel-decision [post]
func (h *RecordHandler) CancelDecision(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.records.CancelDecision(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Generate godoc
// @Summary Queue document regeneration for a record
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 202 {object} response.Envelope
// @Router /records/{id}/generate [post]
func (h *RecordHandler) Generate(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.records.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.queue.Enqueue(jobs.Job{ID: id, Type: service.JobTypeRegenerate}); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue regeneration"))
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true, "record_id": id}, nil)
}

// ClearFiles godoc
// @Summary Delete a record's generated files
// @Tags Records
// @Param id path string true "Record ID"
// @Success 204
// @Router /records/{id}/files [delete]
func (h *RecordHandler) ClearFiles(c *gin.Context) {
	if err := h.generation.ClearGeneratedFiles(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Files godoc
// @Summary List signed download links for a record's generated files
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/files [get]
func (h *RecordHandler) Files(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	kinds := []struct {
		kind string
		path *string
	}{
		{"faas_excel", record.ExcelPath},
		{"unirrig_excel", record.UnirrigExcelPath},
		{"faas_pdf", record.PDFPath},
		{"unirrig_pdf", record.UnirrigPDFPath},
	}

	resp := dto.RecordFilesResponse{RecordID: record.ID, Files: []dto.ArtifactLink{}}
	for _, entry := range kinds {
		if entry.path == nil || *entry.path == "" {
			continue
		}
		token, expiresAt, err := h.signer.Generate(record.ID, *entry.path)
		if err != nil {
			h.logger.Warn("failed to sign download link", zap.String("record_id", record.ID), zap.Error(err))
			continue
		}
		resp.Files = append(resp.Files, dto.ArtifactLink{
			Kind:      entry.kind,
			URL:       "/api/v1/files/download?token=" + token,
			ExpiresAt: expiresAt,
		})
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Download godoc
// @Summary Download a generated file by signed token
// @Tags Records
// @Param token query string true "Signed download token"
// @Success 200
// @Router /files/download [get]
func (h *RecordHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}
	file, err := h.files.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	c.Header("Cache-Control", "private, max-age=0")
	c.Header("Expires", time.Now().UTC().Format(http.TimeFormat))
	http.ServeContent(c.Writer, c.Request, filepath.Base(relPath), info.ModTime(), file)
}
