package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/feedback-cli/internal/config"
	"github.com/sells-group/feedback-cli/internal/model"
)

func newDefault() *Classifier {
	return New(config.ClassifierConfig{})
}

func TestClassify_EmptyIsNoInformation(t *testing.T) {
	isNoise, reason := newDefault().Classify("")
	assert.True(t, isNoise)
	assert.Equal(t, model.NoiseNoInformation, reason)
}

func TestClassify_TooShort(t *testing.T) {
	c := newDefault()
	for _, s := range []string{"a", "no", ".", "-"} {
		isNoise, reason := c.Classify(s)
		assert.True(t, isNoise, s)
		assert.Equal(t, model.NoiseTooShort, reason, s)
	}
}

func TestClassify_NoLetters(t *testing.T) {
	c := newDefault()

	isNoise, reason := c.Classify("12345")
	assert.True(t, isNoise)
	assert.Equal(t, model.NoiseNoLetters, reason)

	// Mostly digits, letter ratio under the threshold.
	isNoise, reason = c.Classify("1234567a")
	assert.True(t, isNoise)
	assert.Equal(t, model.NoiseNoLetters, reason)
}

func TestClassify_Repetitive(t *testing.T) {
	c := newDefault()

	isNoise, reason := c.Classify("aaaaaaaaaa")
	assert.True(t, isNoise)
	assert.Equal(t, model.NoiseRepetitive, reason)

	// Repeated single token.
	isNoise, reason = c.Classify("ja ja ja ja ja ja ja")
	assert.True(t, isNoise)
	assert.Equal(t, model.NoiseRepetitive, reason)
}

func TestClassify_Boilerplate(t *testing.T) {
	c := newDefault()
	for _, s := range []string{"n/a", "nada", "ninguno", "no aplica", "sin comentarios"} {
		isNoise, reason := c.Classify(s)
		assert.True(t, isNoise, s)
		assert.Equal(t, model.NoiseNoInformation, reason, s)
	}
}

func TestClassify_RealTextPasses(t *testing.T) {
	c := newDefault()
	for _, s := range []string{
		"la atencion fue excelente",
		"el servicio fue muy lento y el empleado fue descortes",
		"no me gusta la nueva app",
	} {
		isNoise, _ := c.Classify(s)
		assert.False(t, isNoise, s)
	}
}

func TestClassify_PolicyOrder(t *testing.T) {
	c := newDefault()

	// "ok" is boilerplate but fails the length check first.
	isNoise, reason := c.Classify("ok")
	assert.True(t, isNoise)
	assert.Equal(t, model.NoiseTooShort, reason)
}

func TestClassify_ConfiguredThresholds(t *testing.T) {
	c := New(config.ClassifierConfig{MinLength: 10})

	isNoise, reason := c.Classify("muy lento")
	assert.True(t, isNoise)
	assert.Equal(t, model.NoiseTooShort, reason)
}
