package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
)

type VisitRepository struct {
	db *gorm.DB
}

func NewVisitRepository(db *gorm.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// Create inserts exactly one visit row. Constraint violations are mapped
// onto the domain's storage errors so the caller can distinguish a stale
// patient reference from a normalization bug.
func (r *VisitRepository) Create(ctx context.Context, v *visit.Visit) error {
	err := r.db.WithContext(ctx).Create(v).Error
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", visit.ErrInvalidPatientRef, pgErr.ConstraintName)
		case pgNotNullViolation:
			return fmt.Errorf("%w: %s", visit.ErrMissingRequiredData, pgErr.ColumnName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", visit.ErrInvalidStageValue, pgErr.ConstraintName)
		}
	}
	return err
}

func (r *VisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*visit.Visit, error) {
	var v visit.Visit
	err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, visit.ErrVisitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByPatient returns visits oldest first; trend computations depend on
// this ordering.
func (r *VisitRepository) ListByPatient(ctx context.Context, q *visit.ListVisitsQuery) ([]*visit.Visit, error) {
	var visits []*visit.Visit

	if q.Limit > 0 {
		// Bounded window: the N most recent, still returned oldest first.
		sub := r.db.WithContext(ctx).
			Model(&visit.Visit{}).
			Select("id").
			Where("patient_id = ?", q.PatientID).
			Order("created_at DESC").
			Limit(q.Limit)
		err := r.db.WithContext(ctx).
			Where("id IN (?)", sub).
			Order("created_at ASC").
			Find(&visits).Error
		return visits, err
	}

	err := r.db.WithContext(ctx).
		Where("patient_id = ?", q.PatientID).
		Order("created_at ASC").
		Find(&visits).Error
	return visits, err
}

func (r *VisitRepository) ListRecent(ctx context.Context, limit int) ([]*visit.Visit, error) {
	var visits []*visit.Visit
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&visits).Error
	return visits, err
}

func (r *VisitRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&visit.Visit{}).Count(&count).Error
	return count, err
}
