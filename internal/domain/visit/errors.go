package visit

import "errors"

var (
	ErrVisitNotFound = errors.New("visit not found")

	// Storage-constraint violations, classified by the repository so the
	// caller can tell an invalid patient reference from a bug.
	ErrInvalidPatientRef   = errors.New("visit references a patient that does not exist")
	ErrMissingRequiredData = errors.New("visit is missing a required field")
	ErrInvalidStageValue   = errors.New("visit carries a stage value outside the canonical set")
)
