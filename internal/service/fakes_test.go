package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/classifier"
	"github.com/neurotrace/neurotrace-api/internal/domain"
	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
	"github.com/neurotrace/neurotrace-api/pkg/metrics"
)

// One collector per test binary: the prometheus default registry rejects
// duplicate registration.
var testMetrics = metrics.NewCollector("service_test")

type fakePatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
}

func newFakePatientRepo(patients ...*patient.Patient) *fakePatientRepo {
	r := &fakePatientRepo{patients: make(map[uuid.UUID]*patient.Patient)}
	for _, p := range patients {
		r.patients[p.ID] = p
	}
	return r
}

func (r *fakePatientRepo) Create(_ context.Context, p *patient.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.patients[p.ID] = p
	return nil
}

func (r *fakePatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

func (r *fakePatientRepo) Update(_ context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	if cmd.FirstName != nil {
		p.FirstName = *cmd.FirstName
	}
	if cmd.LastName != nil {
		p.LastName = *cmd.LastName
	}
	if cmd.DateOfBirth != nil {
		p.DateOfBirth = *cmd.DateOfBirth
	}
	if cmd.MedicalRecordNumber != nil {
		p.MedicalRecordNumber = cmd.MedicalRecordNumber
	}
	if cmd.Notes != nil {
		p.Notes = *cmd.Notes
	}
	return p, nil
}

func (r *fakePatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.patients[id]; !ok {
		return patient.ErrPatientNotFound
	}
	delete(r.patients, id)
	return nil
}

func (r *fakePatientRepo) List(_ context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	out := make([]*patient.Patient, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, p)
	}
	return &patient.PagedPatients{
		Patients:   out,
		TotalCount: int64(len(out)),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: 1,
	}, nil
}

func (r *fakePatientRepo) ExistsByMRN(_ context.Context, mrn string, excludeID *uuid.UUID) (bool, error) {
	for id, p := range r.patients {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if p.MedicalRecordNumber != nil && *p.MedicalRecordNumber == mrn {
			return true, nil
		}
	}
	return false, nil
}

type fakeVisitRepo struct {
	visits    []*visit.Visit
	createErr error
}

func (r *fakeVisitRepo) Create(_ context.Context, v *visit.Visit) error {
	if r.createErr != nil {
		return r.createErr
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	r.visits = append(r.visits, v)
	return nil
}

func (r *fakeVisitRepo) GetByID(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	for _, v := range r.visits {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, visit.ErrVisitNotFound
}

func (r *fakeVisitRepo) ListByPatient(_ context.Context, q *visit.ListVisitsQuery) ([]*visit.Visit, error) {
	var out []*visit.Visit
	for _, v := range r.visits {
		if v.PatientID == q.PatientID {
			out = append(out, v)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

func (r *fakeVisitRepo) ListRecent(_ context.Context, limit int) ([]*visit.Visit, error) {
	out := make([]*visit.Visit, 0, len(r.visits))
	for i := len(r.visits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.visits[i])
	}
	return out, nil
}

func (r *fakeVisitRepo) CountAll(_ context.Context) (int64, error) {
	return int64(len(r.visits)), nil
}

type fakeAuditRepo struct {
	entries []*domain.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

type fakeClassifier struct {
	result *classifier.Result
	err    error

	calls int
}

func (c *fakeClassifier) Classify(_ context.Context, _ string, _ []byte) (*classifier.Result, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func newTestAuditService() *AuditService {
	return NewAuditService(&fakeAuditRepo{}, testMetrics, zap.NewNop())
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func testPatient(first, last string) *patient.Patient {
	return &patient.Patient{
		ID:          uuid.New(),
		FirstName:   first,
		LastName:    last,
		DateOfBirth: time.Date(1948, time.March, 12, 0, 0, 0, 0, time.UTC),
		CreatedBy:   uuid.New(),
	}
}
