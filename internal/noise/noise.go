// Package noise decides whether a normalized text carries any classifiable
// signal. The filter runs before matching so contentless answers never
// reach the automaton or receive a misleading category.
package noise

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/feedback-cli/internal/config"
	"github.com/sells-group/feedback-cli/internal/model"
)

// nonAnswers is the canonical list of boilerplate "no answer" forms,
// compared against the already-normalized text.
var nonAnswers = map[string]struct{}{
	"n/a":        {},
	"na":         {},
	"n.a":        {},
	"no aplica":  {},
	"no applica": {},
	"ninguno":    {},
	"ninguna":    {},
	"nada":       {},
	"no se":      {},
	"nose":       {},
	"no comment": {},
	"sin comentarios": {},
	"ok":         {},
	"x":          {},
	"-":          {},
	".":          {},
}

// Classifier applies the noise policy. Independent of the taxonomy, so
// noise verdicts are stable across taxonomy edits.
type Classifier struct {
	minLength        int
	minAlphaRatio    float64
	maxRepeatRun     int
	minDistinctRatio float64
}

// New builds a Classifier from config, applying defaults for zero values.
func New(cfg config.ClassifierConfig) *Classifier {
	c := &Classifier{
		minLength:        cfg.MinLength,
		minAlphaRatio:    cfg.MinAlphaRatio,
		maxRepeatRun:     cfg.MaxRepeatRun,
		minDistinctRatio: cfg.MinDistinctRatio,
	}
	if c.minLength <= 0 {
		c.minLength = 3
	}
	if c.minAlphaRatio <= 0 {
		c.minAlphaRatio = 0.5
	}
	if c.maxRepeatRun <= 0 {
		c.maxRepeatRun = 5
	}
	if c.minDistinctRatio <= 0 {
		c.minDistinctRatio = 0.15
	}
	return c
}

// Classify evaluates the policy in order, first match wins. The input must
// already be normalized. Junk text is an expected outcome, never an error.
func (c *Classifier) Classify(normalized string) (bool, model.NoiseReason) {
	if normalized == "" {
		return true, model.NoiseNoInformation
	}

	runeLen := utf8.RuneCountInString(normalized)
	if runeLen < c.minLength {
		return true, model.NoiseTooShort
	}

	alpha := 0
	for _, r := range normalized {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if alpha == 0 {
		return true, model.NoiseNoLetters
	}
	if float64(alpha)/float64(runeLen) < c.minAlphaRatio {
		return true, model.NoiseNoLetters
	}

	if c.repetitive(normalized, runeLen) {
		return true, model.NoiseRepetitive
	}

	if _, ok := nonAnswers[normalized]; ok {
		return true, model.NoiseNoInformation
	}

	return false, ""
}

// repetitive detects texts dominated by a repeated character: either a
// single run longer than maxRepeatRun, or too few distinct characters
// relative to length.
func (c *Classifier) repetitive(s string, runeLen int) bool {
	var prev rune
	run := 0
	distinct := make(map[rune]struct{}, 16)
	for i, r := range s {
		distinct[r] = struct{}{}
		if i > 0 && r == prev {
			run++
			if run > c.maxRepeatRun {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}

	// Very short texts legitimately have few distinct characters.
	if runeLen >= 8 && float64(len(distinct))/float64(runeLen) < c.minDistinctRatio {
		return true
	}

	// A single token repeated over and over ("ja ja ja ja ja ja").
	fields := strings.Fields(s)
	if len(fields) > c.maxRepeatRun {
		first := fields[0]
		same := true
		for _, f := range fields[1:] {
			if f != first {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}

	return false
}
