package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/feedback-cli/internal/config"
	"github.com/sells-group/feedback-cli/internal/model"
	"github.com/sells-group/feedback-cli/internal/taxonomy"
)

const engineDoc = `
categories:
  - name: Atención al Cliente
    keywords: [mal servicio]
  - name: Rendimiento
    keywords: [lento]
  - name: Experiencia Positiva
    keywords: [buen, buen servicio]
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(engineDoc))
	require.NoError(t, err)
	engine, err := NewEngine(tax, config.ClassifierConfig{})
	require.NoError(t, err)
	return engine
}

func record(text string) model.SourceRecord {
	return model.SourceRecord{OriginTable: "surveys", OriginRow: 1, Field: "motivo", Text: text}
}

func TestEngine_KeywordMatch(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.Classify(record("El servicio fue muy LENTO y el empleado fue descortés"))
	require.NoError(t, err)

	assert.Equal(t, "Rendimiento", res.Category)
	assert.Greater(t, res.Confidence, 0.0)
	assert.False(t, res.IsNoise)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, model.MatchEvidence{Pattern: "lento", Category: "Rendimiento"}, res.Evidence[0])
	assert.Equal(t, "el servicio fue muy lento y el empleado fue descortes", res.NormalizedText)
	assert.Equal(t, engine.Version(), res.TaxonomyVersion)
	assert.False(t, res.ClassifiedAt.IsZero())
}

func TestEngine_NoiseShortCircuits(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.Classify(record("n/a"))
	require.NoError(t, err)
	assert.True(t, res.IsNoise)
	assert.Equal(t, model.NoiseNoInformation, res.NoiseReason)
	assert.Equal(t, model.CategoryNoise, res.Category)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Empty(t, res.Evidence)

	res, err = engine.Classify(record("aaaaaaaaaa"))
	require.NoError(t, err)
	assert.True(t, res.IsNoise)
	assert.Equal(t, model.NoiseRepetitive, res.NoiseReason)
}

func TestEngine_NoMatchFallsBack(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.Classify(record("xyzxyz qwerty"))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryManualReview, res.Category)
	assert.Zero(t, res.Confidence)
	assert.False(t, res.IsNoise)
}

func TestEngine_OverlapAccumulatesOneCategory(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.Classify(record("tuvimos un buen servicio"))
	require.NoError(t, err)
	assert.Equal(t, "Experiencia Positiva", res.Category)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Len(t, res.Evidence, 2)
}

func TestEngine_InvalidRecord(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Classify(model.SourceRecord{Text: "algo"})
	assert.Error(t, err)
}

func TestEngine_Deterministic(t *testing.T) {
	engine := newTestEngine(t)
	rec := record("el servicio fue muy lento pero el personal dio buen servicio")

	first, err := engine.Classify(rec)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		res, err := engine.Classify(rec)
		require.NoError(t, err)
		assert.Equal(t, first.Category, res.Category)
		assert.Equal(t, first.Confidence, res.Confidence)
		assert.Equal(t, first.Evidence, res.Evidence)
	}
}
