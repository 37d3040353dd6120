package service

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
)

// confidenceDropThreshold flags a drop of more than 15 percentage points
// between the two most recent visits.
const confidenceDropThreshold = 0.15

// forecastDisclaimer accompanies every forecast payload. The projection is
// linear extrapolation over an ordinal category treated as numeric; it is
// a heuristic, not a validated clinical model.
const forecastDisclaimer = "Projection is a linear extrapolation over ordinal stage values and is not a validated clinical model."

type StageCount struct {
	Stage      visit.Stage `json:"stage"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
}

type Forecast struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`

	// Projections one and two visits ahead, clamped to the 0-3 ordinal range.
	OneStepOrdinal float64     `json:"one_step_ordinal"`
	TwoStepOrdinal float64     `json:"two_step_ordinal"`
	OneStepStage   visit.Stage `json:"one_step_stage"`
	TwoStepStage   visit.Stage `json:"two_step_stage"`

	// RiskOfWorsening is the projected two-step ordinal delta over the
	// maximum possible delta (2), clamped into [0,1].
	RiskOfWorsening float64 `json:"risk_of_worsening"`

	Disclaimer string `json:"disclaimer"`
}

type PatientAnalytics struct {
	PatientID         uuid.UUID    `json:"patient_id"`
	VisitCount        int          `json:"visit_count"`
	StagedVisitCount  int          `json:"staged_visit_count"`
	StageDistribution []StageCount `json:"stage_distribution"`

	LatestConfidence    *float64 `json:"latest_confidence,omitempty"`
	ConfidenceDelta     *float64 `json:"confidence_delta,omitempty"`
	ConfidenceDropAlert bool     `json:"confidence_drop_alert"`

	Forecast *Forecast `json:"forecast,omitempty"`
}

type Overview struct {
	TotalPatients     int64        `json:"total_patients"`
	TotalVisits       int64        `json:"total_visits"`
	AverageConfidence *float64     `json:"average_confidence,omitempty"`
	StageDistribution []StageCount `json:"stage_distribution"`
}

// AnalyticsService computes derived, read-only views over stored visits.
// Nothing here is persisted; every call recomputes from the visit set.
type AnalyticsService struct {
	visitRepo   visit.Repository
	patientRepo patient.Repository
	log         *zap.Logger
}

func NewAnalyticsService(visitRepo visit.Repository, patientRepo patient.Repository, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{visitRepo: visitRepo, patientRepo: patientRepo, log: log}
}

func (s *AnalyticsService) PatientAnalytics(ctx context.Context, patientID uuid.UUID) (*PatientAnalytics, error) {
	if _, err := s.patientRepo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}

	visits, err := s.visitRepo.ListByPatient(ctx, &visit.ListVisitsQuery{PatientID: patientID})
	if err != nil {
		return nil, err
	}

	staged := lo.Filter(visits, func(v *visit.Visit, _ int) bool {
		return v.PredictedStage != nil
	})

	a := &PatientAnalytics{
		PatientID:         patientID,
		VisitCount:        len(visits),
		StagedVisitCount:  len(staged),
		StageDistribution: stageDistribution(staged),
		Forecast:          ComputeForecast(stageOrdinals(staged)),
	}

	a.LatestConfidence, a.ConfidenceDelta, a.ConfidenceDropAlert = confidenceTrend(visits)

	return a, nil
}

func (s *AnalyticsService) Overview(ctx context.Context, recentWindow int) (*Overview, error) {
	totalVisits, err := s.visitRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	patients, err := s.patientRepo.List(ctx, &patient.ListPatientsQuery{Page: 1, PageSize: 1})
	if err != nil {
		return nil, err
	}

	if recentWindow <= 0 {
		recentWindow = 100
	}
	recent, err := s.visitRepo.ListRecent(ctx, recentWindow)
	if err != nil {
		return nil, err
	}

	staged := lo.Filter(recent, func(v *visit.Visit, _ int) bool {
		return v.PredictedStage != nil
	})

	return &Overview{
		TotalPatients:     patients.TotalCount,
		TotalVisits:       totalVisits,
		AverageConfidence: averageConfidence(recent),
		StageDistribution: stageDistribution(staged),
	}, nil
}

// stageDistribution counts staged visits per stage; percentages are over
// the staged subset only.
func stageDistribution(staged []*visit.Visit) []StageCount {
	counts := lo.CountValuesBy(staged, func(v *visit.Visit) visit.Stage {
		return *v.PredictedStage
	})

	// Ordinal iteration keeps the output ordered by severity; stages with
	// no visits are omitted.
	out := make([]StageCount, 0, 4)
	for ord := 0; ord < 4; ord++ {
		st := visit.StageFromOrdinal(ord)
		c := counts[st]
		if c == 0 {
			continue
		}
		pct := math.Round(float64(c)/float64(len(staged))*10000) / 100
		out = append(out, StageCount{Stage: st, Count: c, Percentage: pct})
	}
	return out
}

func stageOrdinals(staged []*visit.Visit) []int {
	return lo.Map(staged, func(v *visit.Visit, _ int) int {
		return v.PredictedStage.Ordinal()
	})
}

// confidenceTrend reports the most recent confidence, the delta against
// the previous visit, and whether that delta breaches the drop threshold.
// Visits must be ordered oldest first.
func confidenceTrend(visits []*visit.Visit) (latest *float64, delta *float64, alert bool) {
	withConf := lo.Filter(visits, func(v *visit.Visit, _ int) bool {
		return v.Confidence != nil
	})
	if len(withConf) == 0 {
		return nil, nil, false
	}

	latest = withConf[len(withConf)-1].Confidence
	if len(withConf) < 2 {
		return latest, nil, false
	}

	prev := withConf[len(withConf)-2].Confidence
	d := *latest - *prev
	delta = &d
	return latest, delta, d < -confidenceDropThreshold
}

// ComputeForecast fits ordinary least squares over stage ordinals against
// visit sequence index and projects one and two visits ahead. It needs at
// least two staged visits; otherwise it returns nil.
func ComputeForecast(ordinals []int) *Forecast {
	n := len(ordinals)
	if n < 2 {
		return nil
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ordinals {
		x := float64(i)
		sumX += x
		sumY += float64(y)
		sumXY += x * float64(y)
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return nil
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	oneStep := clampOrdinal(intercept + slope*fn)
	twoStep := clampOrdinal(intercept + slope*(fn+1))

	last := float64(ordinals[n-1])
	risk := (twoStep - last) / 2
	if risk < 0 {
		risk = 0
	}
	if risk > 1 {
		risk = 1
	}

	return &Forecast{
		Slope:           slope,
		Intercept:       intercept,
		OneStepOrdinal:  oneStep,
		TwoStepOrdinal:  twoStep,
		OneStepStage:    visit.StageFromOrdinal(int(math.Round(oneStep))),
		TwoStepStage:    visit.StageFromOrdinal(int(math.Round(twoStep))),
		RiskOfWorsening: risk,
		Disclaimer:      forecastDisclaimer,
	}
}

func clampOrdinal(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 3 {
		return 3
	}
	return v
}

func averageConfidence(visits []*visit.Visit) *float64 {
	withConf := lo.Filter(visits, func(v *visit.Visit, _ int) bool {
		return v.Confidence != nil
	})
	if len(withConf) == 0 {
		return nil
	}

	sum := lo.SumBy(withConf, func(v *visit.Visit) float64 {
		return *v.Confidence
	})
	avg := math.Round(sum/float64(len(withConf))*10000) / 10000
	return &avg
}
