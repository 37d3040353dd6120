package v1

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
	"github.com/neurotrace/neurotrace-api/internal/service"
)

type VisitHandler struct {
	visitService   *service.VisitService
	maxUploadBytes int64
}

func NewVisitHandler(visitService *service.VisitService, maxUploadBytes int64) *VisitHandler {
	return &VisitHandler{visitService: visitService, maxUploadBytes: maxUploadBytes}
}

type visitResponse struct {
	ID             string   `json:"id"`
	PatientID      string   `json:"patient_id"`
	ScanDate       string   `json:"scan_date"`
	PredictedStage *string  `json:"predicted_stage"`
	StageLabel     string   `json:"stage_label,omitempty"`
	Confidence     *float64 `json:"confidence"`
	Insights       string   `json:"insights,omitempty"`
}

func toVisitResponse(v *visit.Visit) visitResponse {
	resp := visitResponse{
		ID:         v.ID.String(),
		PatientID:  v.PatientID.String(),
		ScanDate:   v.CreatedAt.UTC().Format(time.RFC3339),
		Confidence: v.Confidence,
		Insights:   v.Insights,
	}
	if v.PredictedStage != nil {
		s := string(*v.PredictedStage)
		resp.PredictedStage = &s
		resp.StageLabel = v.PredictedStage.DisplayName()
	}
	return resp
}

// Ingest accepts a multipart upload with an "image" file part, forwards it
// to the classifier and records the resulting visit.
func (h *VisitHandler) Ingest(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "multipart field 'image' is required")
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "uploaded file exceeds the size limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	result, err := h.visitService.IngestVisit(c.Request.Context(), &service.IngestCommand{
		PatientID: patientID,
		Filename:  fileHeader.Filename,
		Image:     image,
		CreatedBy: claims.UserID,
	}, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if !result.IsValidMRI {
		// The upload was stored for audit but carries no analysis.
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, APIResponse[any]{Data: gin.H{
		"visit":          toVisitResponse(result.Visit),
		"is_valid_mri":   result.IsValidMRI,
		"mapping_failed": result.MappingFailed,
	}})
}

func (h *VisitHandler) Get(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	v, err := h.visitService.GetVisit(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toVisitResponse(v))
}

// ListForPatient returns a patient's visits oldest first; pass limit=N to
// restrict to the N most recent.
func (h *VisitHandler) ListForPatient(c *gin.Context) {
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	limit := parseQueryInt(c, "limit", 0)

	visits, err := h.visitService.ListPatientVisits(c.Request.Context(), patientID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]visitResponse, 0, len(visits))
	for _, v := range visits {
		items = append(items, toVisitResponse(v))
	}

	respondOK(c, gin.H{"visits": items, "count": len(items)})
}
