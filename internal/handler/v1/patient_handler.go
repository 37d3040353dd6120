package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
	"github.com/neurotrace/neurotrace-api/internal/service"
)

type PatientHandler struct {
	patientService *service.PatientService
}

func NewPatientHandler(patientService *service.PatientService) *PatientHandler {
	return &PatientHandler{patientService: patientService}
}

type createPatientRequest struct {
	FirstName           string  `json:"first_name" binding:"required"`
	LastName            string  `json:"last_name" binding:"required"`
	DateOfBirth         string  `json:"date_of_birth" binding:"required"`
	MedicalRecordNumber *string `json:"medical_record_number"`
	Notes               string  `json:"notes"`
}

type updatePatientRequest struct {
	FirstName           *string `json:"first_name"`
	LastName            *string `json:"last_name"`
	DateOfBirth         *string `json:"date_of_birth"`
	MedicalRecordNumber *string `json:"medical_record_number"`
	Notes               *string `json:"notes"`
}

type patientResponse struct {
	ID                  string  `json:"id"`
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	DateOfBirth         string  `json:"date_of_birth"`
	Age                 int     `json:"age"`
	MedicalRecordNumber *string `json:"medical_record_number,omitempty"`
	Notes               string  `json:"notes,omitempty"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

func toPatientResponse(p *patient.Patient) patientResponse {
	return patientResponse{
		ID:                  p.ID.String(),
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		DateOfBirth:         p.DateOfBirth.Format("2006-01-02"),
		Age:                 p.Age(),
		MedicalRecordNumber: p.MedicalRecordNumber,
		Notes:               p.Notes,
		CreatedAt:           p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *PatientHandler) Create(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		respondError(c, http.StatusBadRequest, "date_of_birth must be in YYYY-MM-DD format")
		return
	}

	created, err := h.patientService.CreatePatient(c.Request.Context(), &patient.CreatePatientCommand{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		DateOfBirth:         dob,
		MedicalRecordNumber: req.MedicalRecordNumber,
		Notes:               req.Notes,
		CreatedBy:           claims.UserID,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, toPatientResponse(created))
}

func (h *PatientHandler) Get(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.patientService.GetPatient(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toPatientResponse(p))
}

func (h *PatientHandler) Update(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &patient.UpdatePatientCommand{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		MedicalRecordNumber: req.MedicalRecordNumber,
		Notes:               req.Notes,
		UpdatedBy:           claims.UserID,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			respondError(c, http.StatusBadRequest, "date_of_birth must be in YYYY-MM-DD format")
			return
		}
		cmd.DateOfBirth = &dob
	}

	updated, err := h.patientService.UpdatePatient(c.Request.Context(), id, cmd, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toPatientResponse(updated))
}

// Delete removes a patient and, through the cascading foreign key, every
// visit recorded for them.
func (h *PatientHandler) Delete(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.patientService.DeletePatient(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *PatientHandler) List(c *gin.Context) {
	q := &patient.ListPatientsQuery{
		Search:    c.Query("search"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	paged, err := h.patientService.ListPatients(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]patientResponse, 0, len(paged.Patients))
	for _, p := range paged.Patients {
		items = append(items, toPatientResponse(p))
	}

	respondOK(c, gin.H{
		"patients":    items,
		"total_count": paged.TotalCount,
		"page":        paged.Page,
		"page_size":   paged.PageSize,
		"total_pages": paged.TotalPages,
	})
}
