package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
)

func newExportFixture() (*ExportService, *fakeVisitRepo, *visit.Visit) {
	p := testPatient("Ada", "Lovelace")
	p.MedicalRecordNumber = strPtr("MRN-00042")

	v := &visit.Visit{
		ID:             uuid.New(),
		PatientID:      p.ID,
		CreatedAt:      time.Date(2026, time.July, 4, 10, 30, 0, 0, time.UTC),
		PredictedStage: stagePtr(visit.StageVeryMild),
		Confidence:     floatPtr(0.8123),
		Insights:       "Ada Lovelace: early atrophy, recommend follow-up in 6 months",
		CreatedBy:      uuid.New(),
	}

	visitRepo := &fakeVisitRepo{visits: []*visit.Visit{v}}
	patientRepo := newFakePatientRepo(p)
	svc := NewExportService(visitRepo, patientRepo, newTestAuditService(), zap.NewNop())
	return svc, visitRepo, v
}

func TestExportVisitJSON_IsDeterministic(t *testing.T) {
	svc, _, v := newExportFixture()
	caller := AuditEntry{UserID: uuid.New(), UserRole: "clinician"}

	first, err := svc.ExportVisitJSON(context.Background(), v.ID, false, caller)
	require.NoError(t, err)
	second, err := svc.ExportVisitJSON(context.Background(), v.ID, false, caller)
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeated exports must be byte-identical")
	assert.Contains(t, string(first), `"patient_name": "Ada Lovelace"`)
	assert.Contains(t, string(first), `"predicted_stage": "Very Mild Dementia"`)
	assert.Contains(t, string(first), `"scan_date": "2026-07-04T10:30:00Z"`)
}

func TestExportVisitJSON_AnonymizeStripsIdentity(t *testing.T) {
	svc, _, v := newExportFixture()

	out, err := svc.ExportVisitJSON(context.Background(), v.ID, true, AuditEntry{UserID: uuid.New()})
	require.NoError(t, err)

	body := string(out)
	assert.NotContains(t, body, "Ada Lovelace")
	assert.NotContains(t, body, "MRN-00042")
	assert.NotContains(t, body, "1948")
	assert.Contains(t, body, `"patient_name": "Patient 1"`)
	// The insight text survives, minus the name prefix.
	assert.Contains(t, body, "early atrophy")
}

func TestExportVisitCSV_EscapesEmbeddedDelimiters(t *testing.T) {
	svc, visitRepo, v := newExportFixture()
	visitRepo.visits[0].Insights = "Ada Lovelace: risk \"high\", monitor\nclosely"

	out, err := svc.ExportVisitCSV(context.Background(), v.ID, false, AuditEntry{UserID: uuid.New()})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 2, "header plus one data row")
	assert.Equal(t, `"patient_name","date_of_birth","medical_record_number","visit_id","scan_date","predicted_stage","confidence","insights"`, lines[0])
	assert.Contains(t, lines[1], `\"high\"`)
	assert.Contains(t, lines[1], `monitor\nclosely`)
}

func TestExportVisitCSV_UnstagesVisitRendersEmptyStage(t *testing.T) {
	svc, visitRepo, v := newExportFixture()
	visitRepo.visits[0].PredictedStage = nil
	visitRepo.visits[0].Confidence = nil

	out, err := svc.ExportVisitCSV(context.Background(), v.ID, false, AuditEntry{UserID: uuid.New()})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"",""`, "stage and confidence cells must be empty")
}

func TestExportPatientCSV_OneRowPerVisit(t *testing.T) {
	svc, visitRepo, v := newExportFixture()
	visitRepo.visits = append(visitRepo.visits, &visit.Visit{
		ID:             uuid.New(),
		PatientID:      v.PatientID,
		CreatedAt:      v.CreatedAt.AddDate(0, 1, 0),
		PredictedStage: stagePtr(visit.StageMild),
		Confidence:     floatPtr(0.75),
		CreatedBy:      v.CreatedBy,
	})

	out, err := svc.ExportPatientCSV(context.Background(), v.PatientID, false, AuditEntry{UserID: uuid.New()})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	assert.Len(t, lines, 3, "header plus two visits")
}

func TestExportVisitPDF_ProducesDocument(t *testing.T) {
	svc, _, v := newExportFixture()

	out, err := svc.ExportVisitPDF(context.Background(), v.ID, false, AuditEntry{UserID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"), "output must start with the PDF magic")
}

func TestExportPatientXLSX_ProducesWorkbook(t *testing.T) {
	svc, _, v := newExportFixture()

	out, err := svc.ExportPatientXLSX(context.Background(), v.PatientID, false, AuditEntry{UserID: uuid.New()})
	require.NoError(t, err)
	// XLSX files are zip archives.
	require.True(t, len(out) > 4)
	assert.Equal(t, []byte{'P', 'K'}, out[:2])
}

func TestExportVisit_UnknownVisit(t *testing.T) {
	svc, _, _ := newExportFixture()

	_, err := svc.ExportVisitJSON(context.Background(), uuid.New(), false, AuditEntry{UserID: uuid.New()})
	require.ErrorIs(t, err, visit.ErrVisitNotFound)
}
