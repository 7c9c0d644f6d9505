package model

import "time"

// NoiseReason explains why a text was rejected as carrying no usable signal.
type NoiseReason string

const (
	NoiseTooShort      NoiseReason = "too_short"
	NoiseNoLetters     NoiseReason = "no_letters"
	NoiseRepetitive    NoiseReason = "repetitive"
	NoiseNoInformation NoiseReason = "no_information"
)

// Reserved category names. Neither may appear in the taxonomy document;
// they are assigned by the engine itself.
const (
	// CategoryManualReview is the fallback for texts with no match or a
	// score below the confidence floor. Human triage, not a failure.
	CategoryManualReview = "Manual Review"

	// CategoryNoise marks texts rejected by the noise filter. Name kept
	// from the legacy schema so existing reports keep working.
	CategoryNoise = "Texto Sin Sentido / Ruido"
)

// MatchEvidence is one keyword hit that contributed to the winning category.
type MatchEvidence struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

// ClassificationResult is the output for one SourceRecord. Exactly one
// result exists per natural key per taxonomy version; upserts overwrite.
type ClassificationResult struct {
	OriginTable     string          `json:"origin_table"`
	OriginRow       int64           `json:"origin_row"`
	Field           string          `json:"field"`
	NormalizedText  string          `json:"normalized_text"`
	Category        string          `json:"category"`
	Confidence      float64         `json:"confidence"`
	IsNoise         bool            `json:"is_noise"`
	NoiseReason     NoiseReason     `json:"noise_reason,omitempty"`
	Evidence        []MatchEvidence `json:"evidence,omitempty"`
	TaxonomyVersion string          `json:"taxonomy_version"`
	ClassifiedAt    time.Time       `json:"classified_at"`
}

// Key returns the natural key the result is stored under.
func (r ClassificationResult) Key() NaturalKey {
	return NaturalKey{OriginTable: r.OriginTable, OriginRow: r.OriginRow, Field: r.Field}
}

// ReviewText is a stored Manual-Review text handed to the suggestion miner.
type ReviewText struct {
	Key            NaturalKey `json:"key"`
	NormalizedText string     `json:"normalized_text"`
}
