package visit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStage_ExactLabels(t *testing.T) {
	cases := map[string]Stage{
		"Non Demented":       StageNormal,
		"Very Mild Dementia": StageVeryMild,
		"Mild Dementia":      StageMild,
		"Moderate Dementia":  StageModerate,
	}

	for label, want := range cases {
		got := NormalizeStage(label)
		require.NotNil(t, got, "label %q should map", label)
		assert.Equal(t, want, *got, "label %q", label)
	}
}

func TestNormalizeStage_IsCaseAndSeparatorInsensitive(t *testing.T) {
	cases := map[string]Stage{
		"non_demented":         StageNormal,
		"NON-DEMENTED":         StageNormal,
		"very_mild_dementia":   StageVeryMild,
		"  Moderate Dementia ": StageModerate,
		"mild   dementia":      StageMild,
	}

	for label, want := range cases {
		got := NormalizeStage(label)
		require.NotNil(t, got, "label %q should map", label)
		assert.Equal(t, want, *got, "label %q", label)
	}
}

func TestNormalizeStage_KeywordFallback(t *testing.T) {
	cases := map[string]Stage{
		"patient shows very mild signs": StageVeryMild,
		"moderate stage detected":       StageModerate,
		"mild cognitive decline":        StageMild,
		"scan looks normal":             StageNormal,
		"non demented subject":          StageNormal,
	}

	for label, want := range cases {
		got := NormalizeStage(label)
		require.NotNil(t, got, "label %q should map", label)
		assert.Equal(t, want, *got, "label %q", label)
	}
}

// "very mild" must win over the bare "mild" substring it contains.
func TestNormalizeStage_VeryMildTakesPrecedenceOverMild(t *testing.T) {
	got := NormalizeStage("Very Mild case")
	require.NotNil(t, got)
	assert.Equal(t, StageVeryMild, *got)
}

func TestNormalizeStage_UnmappableReturnsNil(t *testing.T) {
	for _, label := range []string{"", "severe dementia", "inconclusive", "class_7"} {
		assert.Nil(t, NormalizeStage(label), "label %q must not map", label)
	}
}

func TestStageOrdinalRoundTrip(t *testing.T) {
	for _, s := range []Stage{StageNormal, StageVeryMild, StageMild, StageModerate} {
		assert.Equal(t, s, StageFromOrdinal(s.Ordinal()))
	}
}

func TestStageFromOrdinal_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, StageNormal, StageFromOrdinal(-1))
	assert.Equal(t, StageModerate, StageFromOrdinal(7))
}

func TestStageIsValid(t *testing.T) {
	assert.True(t, StageMild.IsValid())
	assert.False(t, Stage("Severe_Dementia").IsValid())
}
