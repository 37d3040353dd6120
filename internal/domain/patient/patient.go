package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"` // Soft Delete

	FirstName   string    `gorm:"column:first_name;type:varchar(100);not null"`
	LastName    string    `gorm:"column:last_name;type:varchar(100);not null"`
	DateOfBirth time.Time `gorm:"column:date_of_birth;not null"`

	// External medical record number; unique when present.
	MedicalRecordNumber *string `gorm:"column:medical_record_number;type:varchar(50);uniqueIndex"`

	Notes string `gorm:"column:notes;type:text"` // PHI

	// Audit: who registered this patient
	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Patient) TableName() string {
	return "clinical.patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) Age() int {
	now := time.Now()
	years := now.Year() - p.DateOfBirth.Year()
	if now.Month() < p.DateOfBirth.Month() ||
		(now.Month() == p.DateOfBirth.Month() && now.Day() < p.DateOfBirth.Day()) {
		years--
	}
	return years
}

type CreatePatientCommand struct {
	FirstName           string
	LastName            string
	DateOfBirth         time.Time
	MedicalRecordNumber *string
	Notes               string
	CreatedBy           uuid.UUID
}

type UpdatePatientCommand struct {
	FirstName           *string
	LastName            *string
	DateOfBirth         *time.Time
	MedicalRecordNumber *string
	Notes               *string
	UpdatedBy           uuid.UUID
}

// ListPatientsQuery defines filtering and pagination for patient list queries.
type ListPatientsQuery struct {
	Search    string // name search
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string // "asc" | "desc"
}

type PagedPatients struct {
	Patients   []*Patient
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
