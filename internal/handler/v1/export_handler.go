package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neurotrace/neurotrace-api/internal/service"
)

type ExportHandler struct {
	exportService *service.ExportService
}

func NewExportHandler(exportService *service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

var exportContentTypes = map[string]string{
	"csv":  "text/csv",
	"json": "application/json",
	"pdf":  "application/pdf",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Visit exports a single visit record. Supported formats: csv, json, pdf.
// Pass anonymize=true to replace the patient's name with a placeholder.
func (h *ExportHandler) Visit(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	anonymize := c.Query("anonymize") == "true"
	caller := service.AuditEntry{
		UserID:    claims.UserID,
		UserRole:  string(claims.Role),
		IPAddress: c.ClientIP(),
	}

	var (
		payload []byte
		err     error
	)
	switch format {
	case "json":
		payload, err = h.exportService.ExportVisitJSON(c.Request.Context(), id, anonymize, caller)
	case "csv":
		payload, err = h.exportService.ExportVisitCSV(c.Request.Context(), id, anonymize, caller)
	case "pdf":
		payload, err = h.exportService.ExportVisitPDF(c.Request.Context(), id, anonymize, caller)
	default:
		respondError(c, http.StatusBadRequest, "format must be one of: csv, json, pdf")
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	writeAttachment(c, format, fmt.Sprintf("visit_%s.%s", id, format), payload)
}

// Patient exports a patient's full visit history. Supported formats: csv,
// pdf, xlsx.
func (h *ExportHandler) Patient(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "csv")
	anonymize := c.Query("anonymize") == "true"
	caller := service.AuditEntry{
		UserID:    claims.UserID,
		UserRole:  string(claims.Role),
		IPAddress: c.ClientIP(),
	}

	var (
		payload []byte
		err     error
	)
	switch format {
	case "csv":
		payload, err = h.exportService.ExportPatientCSV(c.Request.Context(), id, anonymize, caller)
	case "pdf":
		payload, err = h.exportService.ExportPatientPDF(c.Request.Context(), id, anonymize, caller)
	case "xlsx":
		payload, err = h.exportService.ExportPatientXLSX(c.Request.Context(), id, anonymize, caller)
	default:
		respondError(c, http.StatusBadRequest, "format must be one of: csv, pdf, xlsx")
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	writeAttachment(c, format, fmt.Sprintf("patient_%s_visits.%s", id, format), payload)
}

func writeAttachment(c *gin.Context, format, filename string, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, exportContentTypes[format], payload)
}
