package classify

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/feedback-cli/internal/matcher"
	"github.com/sells-group/feedback-cli/internal/model"
)

func TestScore_NoMatchesIsManualReview(t *testing.T) {
	v := Score(nil, 20, 0.3)
	assert.Equal(t, model.CategoryManualReview, v.Category)
	assert.Zero(t, v.Confidence)
	assert.Empty(t, v.Evidence)
}

func TestScore_SingleCategoryWins(t *testing.T) {
	text := "el servicio fue muy lento y el empleado fue descortes"
	matches := []matcher.Match{
		{Category: "Rendimiento", Ordinal: 1, Pattern: "lento", PatternLen: 5},
	}

	v := Score(matches, utf8.RuneCountInString(text), 0.3)
	assert.Equal(t, "Rendimiento", v.Category)
	assert.Greater(t, v.Confidence, 0.0)
	require.Len(t, v.Evidence, 1)
	assert.Equal(t, model.MatchEvidence{Pattern: "lento", Category: "Rendimiento"}, v.Evidence[0])
}

func TestScore_OverlappingHitsAccumulate(t *testing.T) {
	// Both patterns belong to one category; their weights combine instead
	// of competing.
	matches := []matcher.Match{
		{Category: "Experiencia Positiva", Pattern: "buen", PatternLen: 4},
		{Category: "Experiencia Positiva", Pattern: "buen servicio", PatternLen: 13},
	}

	v := Score(matches, 24, 0.3)
	assert.Equal(t, "Experiencia Positiva", v.Category)
	assert.InDelta(t, 1.0, v.Confidence, 1e-9)
	assert.InDelta(t, 17.0/24.0, v.RawScore, 1e-9)
	assert.Len(t, v.Evidence, 2)
}

func TestScore_LongerPhraseOutweighsWord(t *testing.T) {
	matches := []matcher.Match{
		{Category: "Atención", Ordinal: 0, Pattern: "mal servicio", PatternLen: 12},
		{Category: "Rendimiento", Ordinal: 1, Pattern: "lento", PatternLen: 5},
	}

	v := Score(matches, 30, 0.3)
	assert.Equal(t, "Atención", v.Category)
	assert.InDelta(t, 12.0/17.0, v.Confidence, 1e-9)

	// Evidence carries only the winner's hits.
	require.Len(t, v.Evidence, 1)
	assert.Equal(t, "mal servicio", v.Evidence[0].Pattern)
}

func TestScore_TieBreakLongestPattern(t *testing.T) {
	// Equal weights: one long hit against two short ones.
	matches := []matcher.Match{
		{Category: "Larga", Ordinal: 5, Pattern: "tarjeta de", PatternLen: 10},
		{Category: "Corta", Ordinal: 0, Pattern: "pago", PatternLen: 4},
		{Category: "Corta", Ordinal: 0, Pattern: "tarifa", PatternLen: 6},
	}

	v := Score(matches, 40, 0.3)
	assert.Equal(t, "Larga", v.Category)
}

func TestScore_TieBreakOrdinal(t *testing.T) {
	matches := []matcher.Match{
		{Category: "Segunda", Ordinal: 1, Pattern: "costo", PatternLen: 5},
		{Category: "Primera", Ordinal: 0, Pattern: "clave", PatternLen: 5},
	}

	v := Score(matches, 40, 0.3)
	assert.Equal(t, "Primera", v.Category)
}

func TestScore_BelowFloorFallsBack(t *testing.T) {
	// Three-way split: winner share 0.4 against a floor of 0.5.
	matches := []matcher.Match{
		{Category: "A", Ordinal: 0, Pattern: "abcd", PatternLen: 4},
		{Category: "B", Ordinal: 1, Pattern: "efg", PatternLen: 3},
		{Category: "C", Ordinal: 2, Pattern: "hij", PatternLen: 3},
	}

	v := Score(matches, 40, 0.5)
	assert.Equal(t, model.CategoryManualReview, v.Category)
	assert.InDelta(t, 0.4, v.Confidence, 1e-9)
	assert.Empty(t, v.Evidence)
}

func TestScore_MinLengthDisqualifies(t *testing.T) {
	matches := []matcher.Match{
		{Category: "Seguridad", Ordinal: 0, MinLength: 10, Pattern: "clave", PatternLen: 5},
	}

	v := Score(matches, 5, 0.3)
	assert.Equal(t, model.CategoryManualReview, v.Category)

	v = Score(matches, 20, 0.3)
	assert.Equal(t, "Seguridad", v.Category)
}

func TestScore_RawScoreClippedToOne(t *testing.T) {
	matches := []matcher.Match{
		{Category: "A", Pattern: "abcdefgh", PatternLen: 8},
		{Category: "A", Pattern: "abcd", PatternLen: 4},
	}

	v := Score(matches, 8, 0.3)
	assert.Equal(t, "A", v.Category)
	assert.InDelta(t, 1.0, v.RawScore, 1e-9)
}
