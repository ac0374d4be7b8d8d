package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lgu-assessor/faas-api/internal/service"
	"github.com/lgu-assessor/faas-api/pkg/response"
)

// AuditHandler exposes the audit trail for records.
type AuditHandler struct {
	audits  *service.AuditService
	exports *service.ExportService
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audits *service.AuditService, exports *service.ExportService) *AuditHandler {
	return &AuditHandler{audits: audits, exports: exports}
}

// List godoc
// @Summary Audit trail for one record
// @Tags Audit
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	entries, err := h.audits.Trail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Purge godoc
// @Summary Purge a record's audit trail
// @Tags Audit
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/audit [delete]
func (h *AuditHandler) Purge(c *gin.Context) {
	deleted, err := h.audits.Purge(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

// Export godoc
// @Summary Export a record's audit trail as CSV or PDF
// @Tags Audit
// @Produce text/csv
// @Param id path string true "Record ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200
// @Router /records/{id}/audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	file, err := h.exports.AuditTrail(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+file.Filename)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
