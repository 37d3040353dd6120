package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/classifier"
	"github.com/neurotrace/neurotrace-api/internal/config"
	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
)

func newVisitService(t *testing.T, visitRepo *fakeVisitRepo, patientRepo *fakePatientRepo, cls Classifier) *VisitService {
	t.Helper()
	return NewVisitService(
		visitRepo,
		patientRepo,
		cls,
		newTestAuditService(),
		testMetrics,
		config.StorageConfig{UploadDir: t.TempDir(), MaxUploadBytes: 10 << 20},
		zap.NewNop(),
	)
}

func mriResult(predictedClass string, confidences map[string]float64, insights string) *classifier.Result {
	raw, _ := json.Marshal(map[string]any{"isMri": true})
	return &classifier.Result{
		IsMRI:  true,
		Status: "ok",
		Analysis: &classifier.DementiaAnalysis{
			PredictedClass: predictedClass,
			Confidences:    confidences,
			Insights:       insights,
		},
		Raw: raw,
	}
}

func TestIngestVisit_RecordsClassifiedScan(t *testing.T) {
	p := testPatient("Ada", "Lovelace")
	patientRepo := newFakePatientRepo(p)
	visitRepo := &fakeVisitRepo{}
	cls := &fakeClassifier{result: mriResult(
		"Mild Dementia",
		map[string]float64{
			"Non Demented":       0.10,
			"Very Mild Dementia": 0.10,
			"Mild Dementia":      0.75,
			"Moderate Dementia":  0.05,
		},
		"hippocampal volume reduced",
	)}

	svc := newVisitService(t, visitRepo, patientRepo, cls)

	res, err := svc.IngestVisit(context.Background(), &IngestCommand{
		PatientID: p.ID,
		Filename:  "scan.png",
		Image:     []byte{0x89, 0x50, 0x4e, 0x47},
		CreatedBy: uuid.New(),
	}, "clinician", "10.0.0.1")

	require.NoError(t, err)
	assert.True(t, res.IsValidMRI)
	assert.False(t, res.MappingFailed)

	require.Len(t, visitRepo.visits, 1)
	stored := visitRepo.visits[0]
	require.NotNil(t, stored.PredictedStage)
	assert.Equal(t, visit.StageMild, *stored.PredictedStage)
	require.NotNil(t, stored.Confidence)
	assert.Equal(t, 0.75, *stored.Confidence)
	assert.Equal(t, "Ada Lovelace: hippocampal volume reduced", stored.Insights)
	require.NotNil(t, stored.ImagePath)
	assert.NotEmpty(t, *stored.ImagePath)
	assert.Equal(t, 1, cls.calls)
}

func TestIngestVisit_NonMRIUploadIsRecordedWithoutStage(t *testing.T) {
	p := testPatient("Grace", "Hopper")
	patientRepo := newFakePatientRepo(p)
	visitRepo := &fakeVisitRepo{}
	cls := &fakeClassifier{result: &classifier.Result{
		IsMRI:         false,
		Status:        "rejected",
		Message:       "image does not resemble a brain MRI",
		MRIConfidence: floatPtr(0.42),
		Raw:           []byte(`{"isMri":false}`),
	}}

	svc := newVisitService(t, visitRepo, patientRepo, cls)

	res, err := svc.IngestVisit(context.Background(), &IngestCommand{
		PatientID: p.ID,
		Filename:  "cat.jpg",
		Image:     []byte{0xff, 0xd8},
		CreatedBy: uuid.New(),
	}, "clinician", "10.0.0.1")

	require.NoError(t, err)
	assert.False(t, res.IsValidMRI)

	require.Len(t, visitRepo.visits, 1)
	stored := visitRepo.visits[0]
	assert.Nil(t, stored.PredictedStage)
	require.NotNil(t, stored.Confidence)
	assert.Equal(t, 0.42, *stored.Confidence)
	assert.Contains(t, stored.Insights, "not recognized as a brain MRI")
	assert.Contains(t, stored.Insights, "image does not resemble a brain MRI")
}

func TestIngestVisit_UnmappableLabelStoresNullStage(t *testing.T) {
	p := testPatient("Alan", "Turing")
	patientRepo := newFakePatientRepo(p)
	visitRepo := &fakeVisitRepo{}
	cls := &fakeClassifier{result: mriResult(
		"class_7",
		map[string]float64{"class_7": 0.66},
		"",
	)}

	svc := newVisitService(t, visitRepo, patientRepo, cls)

	res, err := svc.IngestVisit(context.Background(), &IngestCommand{
		PatientID: p.ID,
		Filename:  "scan.png",
		Image:     []byte{1},
		CreatedBy: uuid.New(),
	}, "clinician", "10.0.0.1")

	require.NoError(t, err)
	assert.True(t, res.IsValidMRI)
	assert.True(t, res.MappingFailed)

	require.Len(t, visitRepo.visits, 1)
	stored := visitRepo.visits[0]
	assert.Nil(t, stored.PredictedStage)
	require.NotNil(t, stored.Confidence)
	assert.Equal(t, 0.66, *stored.Confidence)
}

func TestIngestVisit_ValidationFailureSkipsClassifierAndStorage(t *testing.T) {
	patientRepo := newFakePatientRepo()
	visitRepo := &fakeVisitRepo{}
	cls := &fakeClassifier{}

	svc := newVisitService(t, visitRepo, patientRepo, cls)

	_, err := svc.IngestVisit(context.Background(), &IngestCommand{
		Filename:  "scan.png",
		CreatedBy: uuid.New(),
	}, "clinician", "10.0.0.1")

	var validErr *ValidationError
	require.ErrorAs(t, err, &validErr)
	assert.Contains(t, validErr.Fields, "patient_id is required")
	assert.Contains(t, validErr.Fields, "image is required")
	assert.Zero(t, cls.calls)
	assert.Empty(t, visitRepo.visits)
}

func TestIngestVisit_MRIResponseWithoutAnalysisIsMalformed(t *testing.T) {
	p := testPatient("Mary", "Shelley")
	patientRepo := newFakePatientRepo(p)
	visitRepo := &fakeVisitRepo{}
	cls := &fakeClassifier{result: &classifier.Result{
		IsMRI:  true,
		Status: "ok",
		Raw:    []byte(`{"isMri":true}`),
	}}

	svc := newVisitService(t, visitRepo, patientRepo, cls)

	_, err := svc.IngestVisit(context.Background(), &IngestCommand{
		PatientID: p.ID,
		Filename:  "scan.png",
		Image:     []byte{1},
		CreatedBy: uuid.New(),
	}, "clinician", "10.0.0.1")

	require.ErrorIs(t, err, classifier.ErrMalformedResponse)
	assert.Empty(t, visitRepo.visits)
}

func TestIngestVisit_ClassifierErrorIsNotRetried(t *testing.T) {
	p := testPatient("Edsger", "Dijkstra")
	patientRepo := newFakePatientRepo(p)
	visitRepo := &fakeVisitRepo{}
	cls := &fakeClassifier{err: &classifier.UpstreamError{Status: 503}}

	svc := newVisitService(t, visitRepo, patientRepo, cls)

	_, err := svc.IngestVisit(context.Background(), &IngestCommand{
		PatientID: p.ID,
		Filename:  "scan.png",
		Image:     []byte{1},
		CreatedBy: uuid.New(),
	}, "clinician", "10.0.0.1")

	var upstream *classifier.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 503, upstream.Status)
	assert.Equal(t, 1, cls.calls)
	assert.Empty(t, visitRepo.visits)
}

func TestIngestVisit_UnknownPatient(t *testing.T) {
	patientRepo := newFakePatientRepo()
	visitRepo := &fakeVisitRepo{}
	cls := &fakeClassifier{}

	svc := newVisitService(t, visitRepo, patientRepo, cls)

	_, err := svc.IngestVisit(context.Background(), &IngestCommand{
		PatientID: uuid.New(),
		Filename:  "scan.png",
		Image:     []byte{1},
		CreatedBy: uuid.New(),
	}, "clinician", "10.0.0.1")

	require.Error(t, err)
	assert.Zero(t, cls.calls)
	assert.Empty(t, visitRepo.visits)
}
