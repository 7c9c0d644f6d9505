package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/feedback-cli/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool pgPool
}

// pgPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// NewPostgres connects a pool to the given database URL.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS survey_responses (
	id            BIGSERIAL PRIMARY KEY,
	origin_table  TEXT NOT NULL,
	origin_row    BIGINT NOT NULL,
	field         TEXT NOT NULL,
	channel       TEXT,
	metric        TEXT,
	score         INTEGER,
	response_text TEXT,
	imported_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(origin_table, origin_row, field)
);

CREATE TABLE IF NOT EXISTS classifications (
	origin_table     TEXT NOT NULL,
	origin_row       BIGINT NOT NULL,
	field            TEXT NOT NULL,
	normalized_text  TEXT NOT NULL,
	category         TEXT NOT NULL,
	confidence       NUMERIC(5,4) NOT NULL,
	is_noise         BOOLEAN NOT NULL DEFAULT FALSE,
	noise_reason     TEXT,
	evidence         JSONB,
	taxonomy_version TEXT NOT NULL,
	classified_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (origin_table, origin_row, field)
);

CREATE INDEX IF NOT EXISTS idx_classifications_category ON classifications(category);
CREATE INDEX IF NOT EXISTS idx_classifications_is_noise ON classifications(is_noise);
CREATE INDEX IF NOT EXISTS idx_classifications_version ON classifications(taxonomy_version);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) FetchCandidates(ctx context.Context, f CandidateFilter) ([]model.SourceRecord, error) {
	query := `SELECT sr.id, sr.origin_table, sr.origin_row, sr.field, sr.channel, sr.metric, sr.score, sr.response_text
	FROM survey_responses sr`

	var args []any
	if f.OnlyNew {
		args = append(args, f.TaxonomyVersion)
		query += ` LEFT JOIN classifications c
		ON c.origin_table = sr.origin_table AND c.origin_row = sr.origin_row AND c.field = sr.field
		AND c.taxonomy_version = $1`
	}

	query += ` WHERE sr.response_text IS NOT NULL AND TRIM(sr.response_text) != ''`
	if f.OnlyNew {
		query += ` AND c.origin_table IS NULL`
	}
	if f.AfterID > 0 {
		args = append(args, f.AfterID)
		query += ` AND sr.id > ` + placeholder(len(args))
	}

	if f.Random {
		query += ` ORDER BY RANDOM()`
	} else {
		query += ` ORDER BY sr.id`
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch candidates")
	}
	defer rows.Close()

	var records []model.SourceRecord
	for rows.Next() {
		var r model.SourceRecord
		var channel, metric *string
		var score *int
		if err := rows.Scan(&r.ID, &r.OriginTable, &r.OriginRow, &r.Field, &channel, &metric, &score, &r.Text); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		if channel != nil {
			r.Channel = *channel
		}
		if metric != nil {
			r.Metric = *metric
		}
		r.Score = score
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func (s *PostgresStore) CountPending(ctx context.Context, f CandidateFilter) (int, error) {
	query := `SELECT COUNT(*) FROM survey_responses sr`

	var args []any
	if f.OnlyNew {
		args = append(args, f.TaxonomyVersion)
		query += ` LEFT JOIN classifications c
		ON c.origin_table = sr.origin_table AND c.origin_row = sr.origin_row AND c.field = sr.field
		AND c.taxonomy_version = $1`
	}
	query += ` WHERE sr.response_text IS NOT NULL AND TRIM(sr.response_text) != ''`
	if f.OnlyNew {
		query += ` AND c.origin_table IS NULL`
	}
	if f.AfterID > 0 {
		args = append(args, f.AfterID)
		query += ` AND sr.id > ` + placeholder(len(args))
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count pending")
	}
	return n, nil
}

// UpsertResults stages the chunk in a temp table with COPY, then merges it
// with INSERT ... ON CONFLICT, all inside one transaction.
func (s *PostgresStore) UpsertResults(ctx context.Context, results []model.ClassificationResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`CREATE TEMP TABLE _tmp_classifications (LIKE classifications INCLUDING DEFAULTS) ON COMMIT DROP`,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: create temp table")
	}

	columns := []string{
		"origin_table", "origin_row", "field", "normalized_text", "category",
		"confidence", "is_noise", "noise_reason", "evidence", "taxonomy_version", "classified_at",
	}
	copyRows := make([][]any, 0, len(results))
	for _, r := range results {
		var evidence any
		if len(r.Evidence) > 0 {
			data, merr := json.Marshal(r.Evidence)
			if merr != nil {
				return 0, eris.Wrapf(merr, "postgres: marshal evidence %s", r.Key())
			}
			evidence = data
		}
		var reason any
		if r.NoiseReason != "" {
			reason = string(r.NoiseReason)
		}
		copyRows = append(copyRows, []any{
			r.OriginTable, r.OriginRow, r.Field, r.NormalizedText, r.Category,
			r.Confidence, r.IsNoise, reason, evidence, r.TaxonomyVersion, r.ClassifiedAt.UTC(),
		})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"_tmp_classifications"}, columns, pgx.CopyFromRows(copyRows)); err != nil {
		return 0, eris.Wrap(err, "postgres: COPY into temp table")
	}

	tag, err := tx.Exec(ctx, `
	INSERT INTO classifications (origin_table, origin_row, field, normalized_text, category, confidence, is_noise, noise_reason, evidence, taxonomy_version, classified_at)
	SELECT origin_table, origin_row, field, normalized_text, category, confidence, is_noise, noise_reason, evidence, taxonomy_version, classified_at
	FROM _tmp_classifications
	ON CONFLICT (origin_table, origin_row, field) DO UPDATE SET
		normalized_text  = EXCLUDED.normalized_text,
		category         = EXCLUDED.category,
		confidence       = EXCLUDED.confidence,
		is_noise         = EXCLUDED.is_noise,
		noise_reason     = EXCLUDED.noise_reason,
		evidence         = EXCLUDED.evidence,
		taxonomy_version = EXCLUDED.taxonomy_version,
		classified_at    = EXCLUDED.classified_at`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: merge temp table")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert tx")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertResponses(ctx context.Context, records []model.SourceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin insert tx")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, r := range records {
		if _, err := tx.Exec(ctx, `
		INSERT INTO survey_responses (origin_table, origin_row, field, channel, metric, score, response_text, imported_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (origin_table, origin_row, field) DO UPDATE SET
			channel       = EXCLUDED.channel,
			metric        = EXCLUDED.metric,
			score         = EXCLUDED.score,
			response_text = EXCLUDED.response_text`,
			r.OriginTable, r.OriginRow, r.Field, r.Channel, r.Metric, r.Score, r.Text, now,
		); err != nil {
			return 0, eris.Wrapf(err, "postgres: insert response %s", r.Key())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit insert tx")
	}
	return len(records), nil
}

func (s *PostgresStore) ManualReviewTexts(ctx context.Context, version string, limit int) ([]model.ReviewText, error) {
	query := `SELECT origin_table, origin_row, field, normalized_text
	FROM classifications WHERE category = $1`
	args := []any{model.CategoryManualReview}

	if version != "" {
		args = append(args, version)
		query += ` AND taxonomy_version = ` + placeholder(len(args))
	}
	query += ` ORDER BY origin_table, origin_row, field`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: manual review texts")
	}
	defer rows.Close()

	var texts []model.ReviewText
	for rows.Next() {
		var t model.ReviewText
		if err := rows.Scan(&t.Key.OriginTable, &t.Key.OriginRow, &t.Key.Field, &t.NormalizedText); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review text")
		}
		texts = append(texts, t)
	}
	return texts, eris.Wrap(rows.Err(), "postgres: iterate review texts")
}

func (s *PostgresStore) CategoryCounts(ctx context.Context, version string) (map[string]int, error) {
	query := `SELECT category, COUNT(*) FROM classifications`
	var args []any
	if version != "" {
		args = append(args, version)
		query += ` WHERE taxonomy_version = $1`
	}
	query += ` GROUP BY category`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: category counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category count")
		}
		counts[cat] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate category counts")
}

func (s *PostgresStore) CountResponses(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM survey_responses`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count responses")
}

// placeholder returns the $n positional parameter for the nth argument.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
