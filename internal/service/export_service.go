package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
)

// ExportService renders stored visits into CSV, JSON, XLSX and PDF.
// Purely presentational: every value comes from data already on the
// visit/patient records.
type ExportService struct {
	visitRepo   visit.Repository
	patientRepo patient.Repository
	auditSvc    *AuditService
	log         *zap.Logger
}

func NewExportService(visitRepo visit.Repository, patientRepo patient.Repository, auditSvc *AuditService, log *zap.Logger) *ExportService {
	return &ExportService{
		visitRepo:   visitRepo,
		patientRepo: patientRepo,
		auditSvc:    auditSvc,
		log:         log,
	}
}

// VisitSnapshot is the flattened visit+patient view all export formats
// render from.
type VisitSnapshot struct {
	PatientName string `json:"patient_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	MRN         string `json:"medical_record_number,omitempty"`

	VisitID        string   `json:"visit_id"`
	ScanDate       string   `json:"scan_date"`
	PredictedStage string   `json:"predicted_stage"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Insights       string   `json:"insights"`
}

var csvHeaders = []string{
	"patient_name", "date_of_birth", "medical_record_number",
	"visit_id", "scan_date", "predicted_stage", "confidence", "insights",
}

// BuildSnapshot flattens one visit. seq is the 1-based position used for
// the anonymized placeholder name.
func BuildSnapshot(p *patient.Patient, v *visit.Visit, seq int, anonymize bool) VisitSnapshot {
	s := VisitSnapshot{
		VisitID:    v.ID.String(),
		ScanDate:   v.CreatedAt.UTC().Format(time.RFC3339),
		Confidence: v.Confidence,
		Insights:   v.Insights,
	}

	if v.PredictedStage != nil {
		s.PredictedStage = v.PredictedStage.DisplayName()
	}

	if anonymize {
		// Identity fields are stripped, not merely blanked: the name is
		// replaced by a sequence placeholder so rows stay distinguishable.
		s.PatientName = fmt.Sprintf("Patient %d", seq)
		s.Insights = stripName(s.Insights, p)
		return s
	}

	s.PatientName = p.FullName()
	s.DateOfBirth = p.DateOfBirth.Format("2006-01-02")
	if p.MedicalRecordNumber != nil {
		s.MRN = *p.MedicalRecordNumber
	}
	return s
}

func (s *ExportService) visitWithPatient(ctx context.Context, visitID uuid.UUID) (*visit.Visit, *patient.Patient, error) {
	v, err := s.visitRepo.GetByID(ctx, visitID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.patientRepo.GetByID(ctx, v.PatientID)
	if err != nil {
		return nil, nil, err
	}
	return v, p, nil
}

// ExportVisitJSON renders one visit as a pretty-printed document. Output
// is deterministic: exporting the same visit twice yields identical bytes.
func (s *ExportService) ExportVisitJSON(ctx context.Context, visitID uuid.UUID, anonymize bool, caller AuditEntry) ([]byte, error) {
	v, p, err := s.visitWithPatient(ctx, visitID)
	if err != nil {
		return nil, err
	}

	snap := BuildSnapshot(p, v, 1, anonymize)
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding visit: %w", err)
	}

	s.logExport(ctx, caller, "visit", visitID.String())
	return out, nil
}

func (s *ExportService) ExportVisitCSV(ctx context.Context, visitID uuid.UUID, anonymize bool, caller AuditEntry) ([]byte, error) {
	v, p, err := s.visitWithPatient(ctx, visitID)
	if err != nil {
		return nil, err
	}

	snap := BuildSnapshot(p, v, 1, anonymize)
	s.logExport(ctx, caller, "visit", visitID.String())
	return RenderCSV([]VisitSnapshot{snap}), nil
}

func (s *ExportService) ExportVisitPDF(ctx context.Context, visitID uuid.UUID, anonymize bool, caller AuditEntry) ([]byte, error) {
	v, p, err := s.visitWithPatient(ctx, visitID)
	if err != nil {
		return nil, err
	}

	snap := BuildSnapshot(p, v, 1, anonymize)
	s.logExport(ctx, caller, "visit", visitID.String())
	return renderPDF([]VisitSnapshot{snap})
}

// ExportPatientCSV renders the patient's full visit history, oldest first.
func (s *ExportService) ExportPatientCSV(ctx context.Context, patientID uuid.UUID, anonymize bool, caller AuditEntry) ([]byte, error) {
	snaps, err := s.patientSnapshots(ctx, patientID, anonymize)
	if err != nil {
		return nil, err
	}
	s.logExport(ctx, caller, "patient", patientID.String())
	return RenderCSV(snaps), nil
}

func (s *ExportService) ExportPatientXLSX(ctx context.Context, patientID uuid.UUID, anonymize bool, caller AuditEntry) ([]byte, error) {
	snaps, err := s.patientSnapshots(ctx, patientID, anonymize)
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	sheet := "Visits"
	file.NewSheet(sheet)
	file.DeleteSheet("Sheet1")

	for col, h := range csvHeaders {
		file.SetCellValue(sheet, cellRef(col, 1), h)
	}
	for i, snap := range snaps {
		row := i + 2
		vals := snap.values()
		for col, val := range vals {
			file.SetCellValue(sheet, cellRef(col, row), val)
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}

	s.logExport(ctx, caller, "patient", patientID.String())
	return buf.Bytes(), nil
}

func (s *ExportService) ExportPatientPDF(ctx context.Context, patientID uuid.UUID, anonymize bool, caller AuditEntry) ([]byte, error) {
	snaps, err := s.patientSnapshots(ctx, patientID, anonymize)
	if err != nil {
		return nil, err
	}
	s.logExport(ctx, caller, "patient", patientID.String())
	return renderPDF(snaps)
}

func (s *ExportService) patientSnapshots(ctx context.Context, patientID uuid.UUID, anonymize bool) ([]VisitSnapshot, error) {
	p, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	visits, err := s.visitRepo.ListByPatient(ctx, &visit.ListVisitsQuery{PatientID: patientID})
	if err != nil {
		return nil, err
	}

	return lo.Map(visits, func(v *visit.Visit, _ int) VisitSnapshot {
		return BuildSnapshot(p, v, 1, anonymize)
	}), nil
}

func (s *ExportService) logExport(ctx context.Context, caller AuditEntry, resourceType, resourceID string) {
	caller.Action = "export"
	caller.ResourceType = resourceType
	caller.ResourceID = resourceID
	s.auditSvc.LogAsync(ctx, caller)
}

func (v VisitSnapshot) values() []any {
	conf := ""
	if v.Confidence != nil {
		conf = fmt.Sprintf("%.4f", *v.Confidence)
	}
	return []any{
		v.PatientName, v.DateOfBirth, v.MRN,
		v.VisitID, v.ScanDate, v.PredictedStage, conf, v.Insights,
	}
}

// RenderCSV writes the snapshots as comma-separated rows. Each value is
// JSON-stringified before joining, which escapes embedded commas, quotes
// and newlines.
func RenderCSV(snaps []VisitSnapshot) []byte {
	var b bytes.Buffer

	writeRow := func(values []any) {
		cells := make([]string, len(values))
		for i, val := range values {
			enc, _ := json.Marshal(fmt.Sprint(val))
			cells[i] = string(enc)
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}

	headerVals := make([]any, len(csvHeaders))
	for i, h := range csvHeaders {
		headerVals[i] = h
	}
	writeRow(headerVals)

	for _, snap := range snaps {
		writeRow(snap.values())
	}

	return b.Bytes()
}

// renderPDF renders one page per visit: identity, scan date, stage,
// confidence percentage and insight text.
func renderPDF(snaps []VisitSnapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)

	for _, snap := range snaps {
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 18)
		pdf.Text(10, 15, "MRI Screening Report")

		pdf.SetFont("Arial", "", 12)
		y := 28.0
		line := func(label, value string) {
			pdf.SetFont("Arial", "B", 12)
			pdf.Text(10, y, label)
			pdf.SetFont("Arial", "", 12)
			pdf.Text(60, y, value)
			y += 7
		}

		line("Patient:", snap.PatientName)
		if snap.DateOfBirth != "" {
			line("Date of birth:", snap.DateOfBirth)
		}
		if snap.MRN != "" {
			line("MRN:", snap.MRN)
		}
		line("Scan date:", snap.ScanDate)

		stage := snap.PredictedStage
		if stage == "" {
			stage = "Not classified"
		}
		line("Predicted stage:", stage)

		if snap.Confidence != nil {
			line("Confidence:", fmt.Sprintf("%.2f%%", *snap.Confidence*100))
		}

		y += 3
		pdf.SetFont("Arial", "B", 12)
		pdf.Text(10, y, "Insights")
		y += 6
		pdf.SetFont("Arial", "", 11)
		pdf.SetXY(10, y-4)
		pdf.MultiCell(190, 5, snap.Insights, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// stripName removes the patient's name from personalized insight text so
// anonymized exports do not leak identity through the prefix.
func stripName(insights string, p *patient.Patient) string {
	name := p.FullName()
	if name == "" {
		return insights
	}
	return strings.ReplaceAll(insights, name, "Patient")
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}
