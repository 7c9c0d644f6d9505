package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/feedback-cli/internal/taxonomy"
	"github.com/sells-group/feedback-cli/internal/textnorm"
)

func buildIndex(t *testing.T, doc string) *Index {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(doc))
	require.NoError(t, err)
	idx, err := Build(tax, textnorm.Normalize)
	require.NoError(t, err)
	return idx
}

func TestFindMatches_SingleKeyword(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: Rendimiento
    keywords: [lento]
`)

	matches := idx.FindMatches("el servicio fue muy lento hoy")
	require.Len(t, matches, 1)
	assert.Equal(t, "Rendimiento", matches[0].Category)
	assert.Equal(t, "lento", matches[0].Pattern)
	assert.Equal(t, 5, matches[0].PatternLen)
	assert.Equal(t, 20, matches[0].Start)
}

func TestFindMatches_OverlappingPatterns(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: Experiencia Positiva
    keywords: [buen, buen servicio]
`)

	matches := idx.FindMatches("tuvimos un buen servicio")
	require.Len(t, matches, 2)

	patterns := []string{matches[0].Pattern, matches[1].Pattern}
	assert.Contains(t, patterns, "buen")
	assert.Contains(t, patterns, "buen servicio")
	for _, m := range matches {
		assert.Equal(t, "Experiencia Positiva", m.Category)
	}
}

func TestFindMatches_SharedSuffix(t *testing.T) {
	// "servicio" is a suffix of "mal servicio"; both must be reported.
	idx := buildIndex(t, `
categories:
  - name: Atención
    keywords: [mal servicio]
  - name: General
    keywords: [servicio]
`)

	matches := idx.FindMatches("fue un mal servicio")
	require.Len(t, matches, 2)

	byPattern := map[string]Match{}
	for _, m := range matches {
		byPattern[m.Pattern] = m
	}
	assert.Equal(t, "Atención", byPattern["mal servicio"].Category)
	assert.Equal(t, "General", byPattern["servicio"].Category)
}

func TestFindMatches_RepeatedHits(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: Rendimiento
    keywords: [lento]
`)

	matches := idx.FindMatches("lento muy lento")
	assert.Len(t, matches, 2)
}

func TestFindMatches_NoHits(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: Rendimiento
    keywords: [lento]
`)
	assert.Empty(t, idx.FindMatches("xyzxyz qwerty"))
	assert.Empty(t, idx.FindMatches(""))
}

func TestFindMatches_UnicodeOffsets(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: Atención
    keywords: [atencion]
`)

	// Keyword and text are both normalized, so the accented input matches.
	matches := idx.FindMatches(textnorm.Normalize("pésima atención"))
	require.Len(t, matches, 1)
	assert.Equal(t, "atencion", matches[0].Pattern)
	assert.Equal(t, 7, matches[0].Start)
}

func TestFindMatches_Deterministic(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: A
    keywords: [pago, pagos, transferencia]
  - name: B
    keywords: [tarjeta, tarjeta de credito]
`)

	text := "el pago con tarjeta de credito y la transferencia fallaron"
	first := idx.FindMatches(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, idx.FindMatches(text))
	}
}

func TestBuild_CarriesCategoryMetadata(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: Primera
    keywords: [uno]
  - name: Segunda
    min_length: 12
    keywords: [dos]
`)

	matches := idx.FindMatches("uno y dos")
	require.Len(t, matches, 2)
	for _, m := range matches {
		switch m.Category {
		case "Primera":
			assert.Equal(t, 0, m.Ordinal)
			assert.Equal(t, 0, m.MinLength)
		case "Segunda":
			assert.Equal(t, 1, m.Ordinal)
			assert.Equal(t, 12, m.MinLength)
		}
	}
}

func TestBuild_RejectsEmptyNormalizedKeyword(t *testing.T) {
	tax, err := taxonomy.Parse([]byte(`
categories:
  - name: Rota
    keywords: ["..."]
`))
	require.NoError(t, err)

	_, err = Build(tax, func(string) string { return "" })
	assert.Error(t, err)
}

func TestBuild_DeduplicatesKeywords(t *testing.T) {
	idx := buildIndex(t, `
categories:
  - name: Atención
    keywords: [atencion, Atención, ATENCION]
`)
	assert.Equal(t, 1, idx.PatternCount())

	matches := idx.FindMatches("la atencion")
	assert.Len(t, matches, 1)
}
