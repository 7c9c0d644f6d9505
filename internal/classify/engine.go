// Package classify wires normalization, the noise filter, the category
// index, and the scorer into the per-record classification path. The
// Engine is immutable after construction and safe for concurrent use.
package classify

import (
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/feedback-cli/internal/config"
	"github.com/sells-group/feedback-cli/internal/matcher"
	"github.com/sells-group/feedback-cli/internal/model"
	"github.com/sells-group/feedback-cli/internal/noise"
	"github.com/sells-group/feedback-cli/internal/textnorm"
	"github.com/sells-group/feedback-cli/internal/taxonomy"
)

// Engine classifies individual records against one taxonomy version.
type Engine struct {
	idx   *matcher.Index
	noise *noise.Classifier
	floor float64
	now   func() time.Time
}

// NewEngine builds the category index for the taxonomy and returns a
// ready engine.
func NewEngine(tax *taxonomy.Taxonomy, cfg config.ClassifierConfig) (*Engine, error) {
	idx, err := matcher.Build(tax, textnorm.Normalize)
	if err != nil {
		return nil, eris.Wrap(err, "classify: build index")
	}
	floor := cfg.ConfidenceFloor
	if floor <= 0 {
		floor = 0.3
	}
	return &Engine{
		idx:   idx,
		noise: noise.New(cfg),
		floor: floor,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Version returns the taxonomy version the engine classifies under.
func (e *Engine) Version() string {
	return e.idx.Version()
}

// Classify runs one record through normalize, the noise filter, and (if
// the text carries signal) the automaton and scorer. The only error case
// is a record missing its natural key; junk text is a regular result.
func (e *Engine) Classify(rec model.SourceRecord) (model.ClassificationResult, error) {
	if !rec.Valid() {
		return model.ClassificationResult{}, eris.Errorf("classify: record %q missing natural key fields", rec.Key())
	}

	normalized := textnorm.Normalize(rec.Text)
	res := model.ClassificationResult{
		OriginTable:     rec.OriginTable,
		OriginRow:       rec.OriginRow,
		Field:           rec.Field,
		NormalizedText:  normalized,
		TaxonomyVersion: e.idx.Version(),
		ClassifiedAt:    e.now(),
	}

	if isNoise, reason := e.noise.Classify(normalized); isNoise {
		res.IsNoise = true
		res.NoiseReason = reason
		res.Category = model.CategoryNoise
		res.Confidence = 1.0
		return res, nil
	}

	matches := e.idx.FindMatches(normalized)
	verdict := Score(matches, utf8.RuneCountInString(normalized), e.floor)
	res.Category = verdict.Category
	res.Confidence = verdict.Confidence
	res.Evidence = verdict.Evidence
	return res, nil
}
