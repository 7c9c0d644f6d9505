package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/feedback-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedResponses(t *testing.T, s *SQLiteStore, texts ...string) {
	t.Helper()
	records := make([]model.SourceRecord, 0, len(texts))
	for i, text := range texts {
		records = append(records, model.SourceRecord{
			OriginTable: "surveys",
			OriginRow:   int64(i + 1),
			Field:       "motivo",
			Text:        text,
		})
	}
	n, err := s.InsertResponses(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, len(texts), n)
}

func resultFor(row int64, category string, version string) model.ClassificationResult {
	return model.ClassificationResult{
		OriginTable:     "surveys",
		OriginRow:       row,
		Field:           "motivo",
		NormalizedText:  "texto",
		Category:        category,
		Confidence:      0.9,
		TaxonomyVersion: version,
		ClassifiedAt:    time.Now().UTC(),
	}
}

func TestSQLite_InsertResponsesUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedResponses(t, s, "primer texto")
	seedResponses(t, s, "texto corregido")

	n, err := s.CountResponses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := s.FetchCandidates(ctx, CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "texto corregido", records[0].Text)
}

func TestSQLite_FetchCandidatesSkipsEmptyText(t *testing.T) {
	s := newTestStore(t)
	seedResponses(t, s, "algo util", "   ", "")

	records, err := s.FetchCandidates(context.Background(), CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "algo util", records[0].Text)
}

func TestSQLite_OnlyNewFiltersByVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedResponses(t, s, "uno", "dos", "tres")

	_, err := s.UpsertResults(ctx, []model.ClassificationResult{resultFor(1, "Atención", "v1")})
	require.NoError(t, err)

	// Row 1 has a v1 result: only-new under v1 returns rows 2 and 3.
	records, err := s.FetchCandidates(ctx, CandidateFilter{OnlyNew: true, TaxonomyVersion: "v1"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Under a new taxonomy version everything is new again.
	records, err = s.FetchCandidates(ctx, CandidateFilter{OnlyNew: true, TaxonomyVersion: "v2"})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	n, err := s.CountPending(ctx, CandidateFilter{OnlyNew: true, TaxonomyVersion: "v1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_KeysetPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedResponses(t, s, "uno", "dos", "tres", "cuatro", "cinco")

	var all []model.SourceRecord
	filter := CandidateFilter{Limit: 2}
	for {
		chunk, err := s.FetchCandidates(ctx, filter)
		require.NoError(t, err)
		if len(chunk) == 0 {
			break
		}
		all = append(all, chunk...)
		filter.AfterID = chunk[len(chunk)-1].ID
	}

	require.Len(t, all, 5)
	seen := map[int64]bool{}
	for _, r := range all {
		assert.False(t, seen[r.OriginRow], "row %d returned twice", r.OriginRow)
		seen[r.OriginRow] = true
	}
}

func TestSQLite_UpsertResultsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedResponses(t, s, "uno")

	first := resultFor(1, "Atención", "v1")
	first.Evidence = []model.MatchEvidence{{Pattern: "atencion", Category: "Atención"}}
	_, err := s.UpsertResults(ctx, []model.ClassificationResult{first})
	require.NoError(t, err)

	second := resultFor(1, "Rendimiento", "v1")
	_, err = s.UpsertResults(ctx, []model.ClassificationResult{second})
	require.NoError(t, err)

	counts, err := s.CategoryCounts(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Rendimiento": 1}, counts)
}

func TestSQLite_UpsertEmptyChunk(t *testing.T) {
	s := newTestStore(t)
	n, err := s.UpsertResults(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_ManualReviewTexts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedResponses(t, s, "uno", "dos", "tres")

	results := []model.ClassificationResult{
		resultFor(1, model.CategoryManualReview, "v1"),
		resultFor(2, "Atención", "v1"),
		resultFor(3, model.CategoryManualReview, "v2"),
	}
	_, err := s.UpsertResults(ctx, results)
	require.NoError(t, err)

	texts, err := s.ManualReviewTexts(ctx, "v1", 0)
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, int64(1), texts[0].Key.OriginRow)
	assert.Equal(t, "texto", texts[0].NormalizedText)

	// Without a version filter both fallback rows come back.
	texts, err = s.ManualReviewTexts(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, texts, 2)
}

func TestSQLite_CategoryCountsByVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedResponses(t, s, "uno", "dos", "tres")

	_, err := s.UpsertResults(ctx, []model.ClassificationResult{
		resultFor(1, "Atención", "v1"),
		resultFor(2, "Atención", "v1"),
		resultFor(3, "Rendimiento", "v2"),
	})
	require.NoError(t, err)

	counts, err := s.CategoryCounts(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Atención": 2}, counts)

	counts, err = s.CategoryCounts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Atención": 2, "Rendimiento": 1}, counts)
}

func TestSQLite_RandomSampleBounded(t *testing.T) {
	s := newTestStore(t)
	seedResponses(t, s, "uno", "dos", "tres", "cuatro", "cinco")

	records, err := s.FetchCandidates(context.Background(), CandidateFilter{Random: true, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
