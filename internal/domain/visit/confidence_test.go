package visit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractConfidence_PicksMaximum(t *testing.T) {
	got := ExtractConfidence(map[string]float64{
		"Normal":             0.05,
		"Very_Mild_Dementia": 0.12,
		"Mild_Dementia":      0.75,
		"Moderate_Dementia":  0.08,
	})

	require.NotNil(t, got)
	assert.Equal(t, 0.75, *got)
}

func TestExtractConfidence_RoundsToFourDecimals(t *testing.T) {
	got := ExtractConfidence(map[string]float64{"a": 0.123456789})

	require.NotNil(t, got)
	assert.Equal(t, 0.1235, *got)
}

func TestExtractConfidence_ClampsIntoUnitInterval(t *testing.T) {
	high := ExtractConfidence(map[string]float64{"a": 1.7})
	require.NotNil(t, high)
	assert.Equal(t, 1.0, *high)

	low := ExtractConfidence(map[string]float64{"a": -0.3})
	require.NotNil(t, low)
	assert.Equal(t, 0.0, *low)
}

func TestExtractConfidence_RejectsNonFiniteScores(t *testing.T) {
	assert.Nil(t, ExtractConfidence(map[string]float64{"a": 0.9, "b": math.NaN()}))
	assert.Nil(t, ExtractConfidence(map[string]float64{"a": math.Inf(1)}))
	assert.Nil(t, ExtractConfidence(map[string]float64{"a": math.Inf(-1), "b": 0.2}))
}

func TestExtractConfidence_EmptyInput(t *testing.T) {
	assert.Nil(t, ExtractConfidence(nil))
	assert.Nil(t, ExtractConfidence(map[string]float64{}))
}
