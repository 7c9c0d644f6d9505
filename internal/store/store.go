// Package store persists survey responses and their classifications.
// Upserts are keyed by the natural key (origin table, origin row, field),
// so re-processing overwrites instead of duplicating, and one UpsertResults
// call is one transaction: the chunk is the commit boundary.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/feedback-cli/internal/config"
	"github.com/sells-group/feedback-cli/internal/model"
)

// CandidateFilter selects classifiable records. Eligible means the text
// field is non-empty; OnlyNew further restricts to records without a
// stored result for TaxonomyVersion. AfterID gives keyset pagination so
// chunking survives rows leaving the candidate set mid-run; Random gives
// the bounded sample used by explore mode.
type CandidateFilter struct {
	OnlyNew         bool
	TaxonomyVersion string
	Random          bool
	AfterID         int64
	Limit           int
}

// Store is the persistence boundary of the classification engine.
type Store interface {
	// FetchCandidates returns the next slice of eligible records.
	FetchCandidates(ctx context.Context, f CandidateFilter) ([]model.SourceRecord, error)

	// CountPending counts records matching the filter, for progress reporting.
	CountPending(ctx context.Context, f CandidateFilter) (int, error)

	// UpsertResults writes a chunk of results in one transaction with
	// overwrite semantics per natural key. Either the whole chunk commits
	// or none of it does.
	UpsertResults(ctx context.Context, results []model.ClassificationResult) (int, error)

	// InsertResponses upserts imported survey rows by natural key.
	InsertResponses(ctx context.Context, records []model.SourceRecord) (int, error)

	// ManualReviewTexts returns normalized texts that landed in the
	// fallback bucket under the given taxonomy version.
	ManualReviewTexts(ctx context.Context, version string, limit int) ([]model.ReviewText, error)

	// CategoryCounts returns stored result counts per category, optionally
	// restricted to one taxonomy version ("" = all).
	CategoryCounts(ctx context.Context, version string) (map[string]int, error)

	// CountResponses returns the total number of stored survey responses.
	CountResponses(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		path := cfg.SQLitePath
		if path == "" {
			path = "feedback.db"
		}
		return NewSQLite(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
