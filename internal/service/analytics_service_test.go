package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
)

func stagePtr(s visit.Stage) *visit.Stage { return &s }

func TestComputeForecast_ProjectsAndClampsWorseningTrend(t *testing.T) {
	// Very mild then mild: slope 1 per visit, the two-step projection
	// runs past the scale and must clamp at moderate.
	f := ComputeForecast([]int{1, 2})

	require.NotNil(t, f)
	assert.InDelta(t, 1.0, f.Slope, 1e-9)
	assert.InDelta(t, 1.0, f.Intercept, 1e-9)
	assert.InDelta(t, 3.0, f.OneStepOrdinal, 1e-9)
	assert.InDelta(t, 3.0, f.TwoStepOrdinal, 1e-9)
	assert.Equal(t, visit.StageModerate, f.TwoStepStage)
	assert.InDelta(t, 0.5, f.RiskOfWorsening, 1e-9)
	assert.NotEmpty(t, f.Disclaimer)
}

func TestComputeForecast_StableHistoryCarriesNoRisk(t *testing.T) {
	f := ComputeForecast([]int{2, 2, 2})

	require.NotNil(t, f)
	assert.InDelta(t, 0.0, f.Slope, 1e-9)
	assert.InDelta(t, 2.0, f.OneStepOrdinal, 1e-9)
	assert.Equal(t, visit.StageMild, f.OneStepStage)
	assert.InDelta(t, 0.0, f.RiskOfWorsening, 1e-9)
}

func TestComputeForecast_ImprovingTrendClampsAtZeroRisk(t *testing.T) {
	f := ComputeForecast([]int{3, 2, 1})

	require.NotNil(t, f)
	assert.InDelta(t, -1.0, f.Slope, 1e-9)
	assert.InDelta(t, 0.0, f.OneStepOrdinal, 1e-9)
	assert.InDelta(t, 0.0, f.RiskOfWorsening, 1e-9)
}

func TestComputeForecast_RequiresTwoStagedVisits(t *testing.T) {
	assert.Nil(t, ComputeForecast(nil))
	assert.Nil(t, ComputeForecast([]int{2}))
}

func TestPatientAnalytics_DistributionAndTrend(t *testing.T) {
	p := testPatient("Rosalind", "Franklin")
	patientRepo := newFakePatientRepo(p)

	base := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	visitRepo := &fakeVisitRepo{visits: []*visit.Visit{
		{PatientID: p.ID, CreatedAt: base, PredictedStage: stagePtr(visit.StageNormal), Confidence: floatPtr(0.90)},
		{PatientID: p.ID, CreatedAt: base.AddDate(0, 1, 0), PredictedStage: stagePtr(visit.StageVeryMild), Confidence: floatPtr(0.85)},
		{PatientID: p.ID, CreatedAt: base.AddDate(0, 2, 0), PredictedStage: nil, Confidence: nil},
		{PatientID: p.ID, CreatedAt: base.AddDate(0, 3, 0), PredictedStage: stagePtr(visit.StageVeryMild), Confidence: floatPtr(0.60)},
	}}

	svc := NewAnalyticsService(visitRepo, patientRepo, zap.NewNop())

	a, err := svc.PatientAnalytics(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, a.VisitCount)
	assert.Equal(t, 3, a.StagedVisitCount)

	require.Len(t, a.StageDistribution, 2)
	assert.Equal(t, visit.StageNormal, a.StageDistribution[0].Stage)
	assert.Equal(t, 1, a.StageDistribution[0].Count)
	assert.InDelta(t, 33.33, a.StageDistribution[0].Percentage, 0.01)
	assert.Equal(t, visit.StageVeryMild, a.StageDistribution[1].Stage)
	assert.Equal(t, 2, a.StageDistribution[1].Count)
	assert.InDelta(t, 66.67, a.StageDistribution[1].Percentage, 0.01)

	// 0.85 -> 0.60 is a 25 point drop, past the alert threshold.
	require.NotNil(t, a.LatestConfidence)
	assert.Equal(t, 0.60, *a.LatestConfidence)
	require.NotNil(t, a.ConfidenceDelta)
	assert.InDelta(t, -0.25, *a.ConfidenceDelta, 1e-9)
	assert.True(t, a.ConfidenceDropAlert)

	require.NotNil(t, a.Forecast)
}

func TestPatientAnalytics_SmallDropDoesNotAlert(t *testing.T) {
	p := testPatient("Barbara", "McClintock")
	patientRepo := newFakePatientRepo(p)

	visitRepo := &fakeVisitRepo{visits: []*visit.Visit{
		{PatientID: p.ID, PredictedStage: stagePtr(visit.StageNormal), Confidence: floatPtr(0.80)},
		{PatientID: p.ID, PredictedStage: stagePtr(visit.StageNormal), Confidence: floatPtr(0.70)},
	}}

	svc := NewAnalyticsService(visitRepo, patientRepo, zap.NewNop())

	a, err := svc.PatientAnalytics(context.Background(), p.ID)
	require.NoError(t, err)

	require.NotNil(t, a.ConfidenceDelta)
	assert.InDelta(t, -0.10, *a.ConfidenceDelta, 1e-9)
	assert.False(t, a.ConfidenceDropAlert)
}

func TestPatientAnalytics_NoStagedVisits(t *testing.T) {
	p := testPatient("Ada", "Byron")
	patientRepo := newFakePatientRepo(p)
	visitRepo := &fakeVisitRepo{visits: []*visit.Visit{
		{PatientID: p.ID, PredictedStage: nil, Confidence: floatPtr(0.42)},
	}}

	svc := NewAnalyticsService(visitRepo, patientRepo, zap.NewNop())

	a, err := svc.PatientAnalytics(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, a.VisitCount)
	assert.Zero(t, a.StagedVisitCount)
	assert.Empty(t, a.StageDistribution)
	assert.Nil(t, a.Forecast)
}

func TestOverview_AggregatesRecentWindow(t *testing.T) {
	p := testPatient("Dorothy", "Hodgkin")
	patientRepo := newFakePatientRepo(p)
	visitRepo := &fakeVisitRepo{visits: []*visit.Visit{
		{PatientID: p.ID, PredictedStage: stagePtr(visit.StageMild), Confidence: floatPtr(0.80)},
		{PatientID: p.ID, PredictedStage: stagePtr(visit.StageMild), Confidence: floatPtr(0.60)},
	}}

	svc := NewAnalyticsService(visitRepo, patientRepo, zap.NewNop())

	o, err := svc.Overview(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, int64(1), o.TotalPatients)
	assert.Equal(t, int64(2), o.TotalVisits)
	require.NotNil(t, o.AverageConfidence)
	assert.InDelta(t, 0.70, *o.AverageConfidence, 1e-9)
	require.Len(t, o.StageDistribution, 1)
	assert.Equal(t, visit.StageMild, o.StageDistribution[0].Stage)
	assert.Equal(t, 2, o.StageDistribution[0].Count)
}
