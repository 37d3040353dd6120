package visit

import "strings"

// Stage is the ordinal clinical classification of a scan. The ordinal
// ordering (Normal=0 .. Moderate_Dementia=3) is load-bearing: trend
// projection treats stages as points on a 0-3 scale.
type Stage string

const (
	StageNormal   Stage = "Normal"
	StageVeryMild Stage = "Very_Mild_Dementia"
	StageMild     Stage = "Mild_Dementia"
	StageModerate Stage = "Moderate_Dementia"
)

// stagesBySeverity lists all stages in ascending severity; a stage's index
// in this slice is its ordinal.
var stagesBySeverity = []Stage{StageNormal, StageVeryMild, StageMild, StageModerate}

func (s Stage) IsValid() bool {
	switch s {
	case StageNormal, StageVeryMild, StageMild, StageModerate:
		return true
	}
	return false
}

// Ordinal returns the severity rank of the stage (0-3), or -1 for an
// unknown value.
func (s Stage) Ordinal() int {
	for i, st := range stagesBySeverity {
		if st == s {
			return i
		}
	}
	return -1
}

// StageFromOrdinal maps a 0-3 ordinal back to its stage. Out-of-range
// ordinals are clamped to the nearest boundary.
func StageFromOrdinal(ord int) Stage {
	if ord < 0 {
		ord = 0
	}
	if ord > len(stagesBySeverity)-1 {
		ord = len(stagesBySeverity) - 1
	}
	return stagesBySeverity[ord]
}

// DisplayName renders the stage for human-facing output ("Very Mild Dementia").
func (s Stage) DisplayName() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// exactLabels maps the labels the external classifier is known to emit
// onto canonical stages.
var exactLabels = map[string]Stage{
	"Non Demented":       StageNormal,
	"Very Mild Dementia": StageVeryMild,
	"Mild Dementia":      StageMild,
	"Moderate Dementia":  StageModerate,
}

// NormalizeStage maps a free-text label from the external classifier onto
// a canonical stage. Matching proceeds in strict precedence order: the
// exact-match table first, then containment against normalized stage
// names, then keyword fallback. When nothing matches it returns nil so the
// caller can flag the visit for manual review; an unmapped label is never
// silently defaulted to a specific stage.
func NormalizeStage(label string) *Stage {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return nil
	}

	if s, ok := exactLabels[trimmed]; ok {
		return &s
	}

	norm := normalizeLabel(trimmed)

	// Containment against normalized stage names. Very_Mild must be
	// tested before Mild: its normalized name contains "mild dementia".
	for _, s := range []Stage{StageVeryMild, StageModerate, StageMild, StageNormal} {
		if strings.Contains(norm, normalizeLabel(string(s))) {
			out := s
			return &out
		}
	}

	// Keyword fallback, most specific first.
	switch {
	case strings.Contains(norm, "very mild"):
		out := StageVeryMild
		return &out
	case strings.Contains(norm, "moderate"):
		out := StageModerate
		return &out
	case strings.Contains(norm, "mild"):
		out := StageMild
		return &out
	case strings.Contains(norm, "normal"), strings.Contains(norm, "non"):
		out := StageNormal
		return &out
	}

	return nil
}

// normalizeLabel lowercases and collapses underscores, hyphens and runs of
// whitespace to single spaces.
func normalizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}
