package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
)

func newPatientService(repo *fakePatientRepo) *PatientService {
	return NewPatientService(repo, newTestAuditService(), testMetrics, zap.NewNop())
}

func TestCreatePatient(t *testing.T) {
	repo := newFakePatientRepo()
	svc := newPatientService(repo)

	created, err := svc.CreatePatient(context.Background(), &patient.CreatePatientCommand{
		FirstName:           "  Ada ",
		LastName:            "Lovelace",
		DateOfBirth:         time.Date(1950, time.May, 2, 0, 0, 0, 0, time.UTC),
		MedicalRecordNumber: strPtr(" MRN-1 "),
		CreatedBy:           uuid.New(),
	}, uuid.New(), "clinician", "10.0.0.1")

	require.NoError(t, err)
	assert.Equal(t, "Ada", created.FirstName)
	require.NotNil(t, created.MedicalRecordNumber)
	assert.Equal(t, "MRN-1", *created.MedicalRecordNumber)
	assert.Len(t, repo.patients, 1)
}

func TestCreatePatient_ValidatesRequiredFields(t *testing.T) {
	svc := newPatientService(newFakePatientRepo())

	_, err := svc.CreatePatient(context.Background(), &patient.CreatePatientCommand{
		DateOfBirth: time.Now().AddDate(1, 0, 0),
	}, uuid.New(), "clinician", "")

	var validErr *ValidationError
	require.ErrorAs(t, err, &validErr)
	assert.Contains(t, validErr.Fields, "first_name is required")
	assert.Contains(t, validErr.Fields, "last_name is required")
	assert.Contains(t, validErr.Fields, "date_of_birth cannot be in the future")
}

func TestCreatePatient_RejectsDuplicateMRN(t *testing.T) {
	existing := testPatient("Grace", "Hopper")
	existing.MedicalRecordNumber = strPtr("MRN-7")
	svc := newPatientService(newFakePatientRepo(existing))

	_, err := svc.CreatePatient(context.Background(), &patient.CreatePatientCommand{
		FirstName:           "Another",
		LastName:            "Person",
		DateOfBirth:         time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC),
		MedicalRecordNumber: strPtr("MRN-7"),
		CreatedBy:           uuid.New(),
	}, uuid.New(), "clinician", "")

	assert.ErrorIs(t, err, patient.ErrPatientAlreadyExists)
}

func TestDeletePatientRemovesRecord(t *testing.T) {
	p := testPatient("Alan", "Turing")
	repo := newFakePatientRepo(p)
	svc := newPatientService(repo)

	require.NoError(t, svc.DeletePatient(context.Background(), p.ID, uuid.New(), "admin", ""))
	assert.Empty(t, repo.patients)

	err := svc.DeletePatient(context.Background(), p.ID, uuid.New(), "admin", "")
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestListPatientsNormalizesPagination(t *testing.T) {
	svc := newPatientService(newFakePatientRepo(testPatient("A", "B")))

	paged, err := svc.ListPatients(context.Background(), &patient.ListPatientsQuery{Page: -3, PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, paged.Page)
	assert.Equal(t, 20, paged.PageSize)
}
