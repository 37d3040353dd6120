package visit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Visit is one MRI upload-and-analysis event for a patient.
// Once created, visits cannot be deleted or edited; the raw classifier
// payload is stored verbatim for audit and reproducibility.
type Visit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`

	RawResponse datatypes.JSON `gorm:"column:raw_response;type:jsonb"`

	// Nil when classification failed or the upload was not a brain MRI.
	PredictedStage *Stage `gorm:"column:predicted_stage;type:varchar(30);index"`

	// Confidence in the winning class, in [0,1], rounded to 4 decimals.
	Confidence *float64 `gorm:"column:confidence;type:numeric(5,4)"`

	Insights string `gorm:"column:insights;type:text"`

	ImagePath          *string `gorm:"column:image_path;type:text"`
	AnnotatedImagePath *string `gorm:"column:annotated_image_path;type:text"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Visit) TableName() string {
	return "clinical.visits"
}

type CreateVisitCommand struct {
	PatientID          uuid.UUID
	RawResponse        []byte
	PredictedStage     *Stage
	Confidence         *float64
	Insights           string
	ImagePath          *string
	AnnotatedImagePath *string
	CreatedBy          uuid.UUID
}

// ListVisitsQuery selects a patient's visits ordered by creation time
// ascending; the ordering is what trend and timeline computations rely on.
type ListVisitsQuery struct {
	PatientID uuid.UUID
	// Limit bounds the window to the N most recent visits; 0 means all.
	Limit int
}
