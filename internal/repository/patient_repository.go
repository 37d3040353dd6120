// Package repository provides the GORM-backed implementations of the
// domain repository interfaces.
package repository

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if isUniqueViolation(err) {
		return patient.ErrPatientAlreadyExists
	}
	return err
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatientRepository) Update(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if cmd.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*cmd.FirstName)
	}
	if cmd.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*cmd.LastName)
	}
	if cmd.DateOfBirth != nil {
		updates["date_of_birth"] = *cmd.DateOfBirth
	}
	if cmd.MedicalRecordNumber != nil {
		mrn := strings.TrimSpace(*cmd.MedicalRecordNumber)
		if mrn == "" {
			updates["medical_record_number"] = nil
		} else {
			updates["medical_record_number"] = mrn
		}
	}
	if cmd.Notes != nil {
		updates["notes"] = *cmd.Notes
	}

	if len(updates) == 0 {
		return p, nil
	}

	err = r.db.WithContext(ctx).Model(p).Updates(updates).Error
	if isUniqueViolation(err) {
		return nil, patient.ErrPatientAlreadyExists
	}
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Delete removes the patient row outright; the store cascades to visits
// via the foreign key.
func (r *PatientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&patient.Patient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	tx := r.db.WithContext(ctx).
		Model(&patient.Patient{}).
		Where("deleted_at IS NULL")

	if s := strings.TrimSpace(q.Search); s != "" {
		tx = tx.Where("first_name || ' ' || last_name ILIKE ?", "%"+s+"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	sortBy := q.SortBy
	switch sortBy {
	case "last_name", "created_at", "date_of_birth":
	default:
		sortBy = "created_at"
	}
	order := "desc"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "asc"
	}

	var patients []*patient.Patient
	err := tx.Order(sortBy + " " + order).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&patients).Error
	if err != nil {
		return nil, err
	}

	return &patient.PagedPatients{
		Patients:   patients,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

func (r *PatientRepository) ExistsByMRN(ctx context.Context, mrn string, excludeID *uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&patient.Patient{}).
		Where("medical_record_number = ? AND deleted_at IS NULL", strings.TrimSpace(mrn))
	if excludeID != nil {
		tx = tx.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Postgres error codes the repositories classify on.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
