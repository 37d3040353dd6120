package visit

import (
	"context"

	"github.com/google/uuid"
)

// Repository is insert-and-read only: visits are immutable once created,
// so no update or delete operations exist here. Removal happens solely via
// the cascading patient delete.
type Repository interface {
	// Create inserts exactly one visit row. Constraint violations are
	// classified into ErrInvalidPatientRef, ErrMissingRequiredData or
	// ErrInvalidStageValue.
	Create(ctx context.Context, v *Visit) error

	// GetByID retrieves a visit by primary key. Returns ErrVisitNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)

	// ListByPatient returns a patient's visits ordered by created_at ascending.
	ListByPatient(ctx context.Context, q *ListVisitsQuery) ([]*Visit, error)

	// ListRecent returns the N most recent visits across all patients,
	// newest first.
	ListRecent(ctx context.Context, limit int) ([]*Visit, error)

	// CountAll returns the total number of stored visits.
	CountAll(ctx context.Context) (int64, error)
}
