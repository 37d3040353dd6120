package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/classifier"
	"github.com/neurotrace/neurotrace-api/internal/config"
	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
	"github.com/neurotrace/neurotrace-api/pkg/metrics"
)

// Classifier is the outbound dependency on the external inference service.
type Classifier interface {
	Classify(ctx context.Context, filename string, image []byte) (*classifier.Result, error)
}

type VisitService struct {
	repo        visit.Repository
	patientRepo patient.Repository
	classifier  Classifier
	auditSvc    *AuditService
	metrics     *metrics.Collector
	storage     config.StorageConfig
	log         *zap.Logger
}

func NewVisitService(
	repo visit.Repository,
	patientRepo patient.Repository,
	cls Classifier,
	auditSvc *AuditService,
	m *metrics.Collector,
	storage config.StorageConfig,
	log *zap.Logger,
) *VisitService {
	return &VisitService{
		repo:        repo,
		patientRepo: patientRepo,
		classifier:  cls,
		auditSvc:    auditSvc,
		metrics:     m,
		storage:     storage,
		log:         log,
	}
}

type IngestCommand struct {
	PatientID uuid.UUID
	Filename  string
	Image     []byte
	CreatedBy uuid.UUID
}

type IngestResult struct {
	Visit *visit.Visit
	// IsValidMRI is false when the upstream rejected the upload as not a
	// brain MRI; the visit is still recorded for audit.
	IsValidMRI bool
	// MappingFailed reports that the upstream label could not be mapped
	// onto a canonical stage and the visit was stored without one.
	MappingFailed bool
}

// IngestVisit forwards one uploaded scan to the external classifier and
// persists exactly one immutable visit row. There are no retries and no
// partial writes: any failure surfaces to the caller, who may resubmit.
func (s *VisitService) IngestVisit(ctx context.Context, cmd *IngestCommand, callerRole string, ip string) (*IngestResult, error) {
	var errs []string
	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if len(cmd.Image) == 0 {
		errs = append(errs, "image is required")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, err
	}

	imagePath, err := s.saveImage(cmd)
	if err != nil {
		return nil, fmt.Errorf("storing uploaded image: %w", err)
	}

	start := time.Now()
	result, err := s.classifier.Classify(ctx, cmd.Filename, cmd.Image)
	s.metrics.ClassifierRequestDuration.WithLabelValues(classifyOutcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	v := &visit.Visit{
		PatientID:   cmd.PatientID,
		RawResponse: result.Raw,
		ImagePath:   &imagePath,
		CreatedBy:   cmd.CreatedBy,
	}

	res := &IngestResult{Visit: v, IsValidMRI: result.IsMRI}

	if !result.IsMRI {
		// Deliberate: invalid uploads are recorded, not discarded, so the
		// attempt is auditable.
		v.Confidence = sanitizeScore(result.MRIConfidence)
		v.Insights = fmt.Sprintf("Upload was not recognized as a brain MRI: %s", result.Message)
	} else {
		if result.Analysis == nil {
			return nil, fmt.Errorf("%w: isMRI response lacks dementiaAnalysis", classifier.ErrMalformedResponse)
		}

		stage := visit.NormalizeStage(result.Analysis.PredictedClass)
		if stage == nil {
			// Mapping failure is logged, not fatal: the visit is stored
			// with a null stage and flagged for manual review.
			res.MappingFailed = true
			s.log.Warn("classifier label did not map onto a canonical stage",
				zap.String("label", result.Analysis.PredictedClass),
				zap.String("patient_id", cmd.PatientID.String()),
			)
		}
		v.PredictedStage = stage
		v.Confidence = visit.ExtractConfidence(result.Analysis.Confidences)
		v.Insights = personalizeInsights(p, result.Analysis.Insights)
	}

	if err := s.repo.Create(ctx, v); err != nil {
		s.log.Error("failed to persist visit", zap.Error(err))
		s.metrics.VisitsIngestedTotal.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	s.metrics.VisitsIngestedTotal.WithLabelValues(ingestOutcome(res)).Inc()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       cmd.CreatedBy,
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "visit",
		ResourceID:   v.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("visit ingested",
		zap.String("visit_id", v.ID.String()),
		zap.String("patient_id", cmd.PatientID.String()),
		zap.Bool("is_mri", result.IsMRI),
	)

	return res, nil
}

func (s *VisitService) GetVisit(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (*visit.Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "read",
		ResourceType: "visit",
		ResourceID:   id.String(),
		IPAddress:    ip,
	})

	return v, nil
}

// ListPatientVisits returns the patient's visits ordered oldest first.
func (s *VisitService) ListPatientVisits(ctx context.Context, patientID uuid.UUID, limit int) ([]*visit.Visit, error) {
	if _, err := s.patientRepo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, &visit.ListVisitsQuery{PatientID: patientID, Limit: limit})
}

func (s *VisitService) saveImage(cmd *IngestCommand) (string, error) {
	dir := filepath.Join(s.storage.UploadDir, cmd.PatientID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + "_" + filepath.Base(cmd.Filename)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, cmd.Image, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func personalizeInsights(p *patient.Patient, insights string) string {
	if insights == "" {
		return ""
	}
	return p.FullName() + ": " + insights
}

// sanitizeScore applies the same hygiene as the confidence extractor to a
// single upstream score: finite, clamped to [0,1], 4 decimal places.
func sanitizeScore(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	c = math.Round(c*10000) / 10000
	return &c
}

func classifyOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ingestOutcome(res *IngestResult) string {
	switch {
	case !res.IsValidMRI:
		return "not_mri"
	case res.MappingFailed:
		return "mapping_failed"
	default:
		return "classified"
	}
}
