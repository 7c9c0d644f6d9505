package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/feedback-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS survey_responses (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	origin_table  TEXT NOT NULL,
	origin_row    INTEGER NOT NULL,
	field         TEXT NOT NULL,
	channel       TEXT,
	metric        TEXT,
	score         INTEGER,
	response_text TEXT,
	imported_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(origin_table, origin_row, field)
);

CREATE TABLE IF NOT EXISTS classifications (
	origin_table     TEXT NOT NULL,
	origin_row       INTEGER NOT NULL,
	field            TEXT NOT NULL,
	normalized_text  TEXT NOT NULL,
	category         TEXT NOT NULL,
	confidence       REAL NOT NULL,
	is_noise         INTEGER NOT NULL DEFAULT 0,
	noise_reason     TEXT,
	evidence         TEXT,
	taxonomy_version TEXT NOT NULL,
	classified_at    DATETIME NOT NULL,
	PRIMARY KEY (origin_table, origin_row, field)
);

CREATE INDEX IF NOT EXISTS idx_classifications_category ON classifications(category);
CREATE INDEX IF NOT EXISTS idx_classifications_is_noise ON classifications(is_noise);
CREATE INDEX IF NOT EXISTS idx_classifications_version ON classifications(taxonomy_version);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// candidateWhere builds the WHERE clause shared by FetchCandidates and
// CountPending.
func candidateWhere(f CandidateFilter) (string, []any) {
	where := ` WHERE sr.response_text IS NOT NULL AND TRIM(sr.response_text) != ''`
	var args []any

	if f.OnlyNew {
		where += ` AND c.origin_table IS NULL`
	}
	if f.AfterID > 0 {
		where += ` AND sr.id > ?`
		args = append(args, f.AfterID)
	}
	return where, args
}

func (s *SQLiteStore) FetchCandidates(ctx context.Context, f CandidateFilter) ([]model.SourceRecord, error) {
	query := `SELECT sr.id, sr.origin_table, sr.origin_row, sr.field, sr.channel, sr.metric, sr.score, sr.response_text
	FROM survey_responses sr`

	var args []any
	if f.OnlyNew {
		query += ` LEFT JOIN classifications c
		ON c.origin_table = sr.origin_table AND c.origin_row = sr.origin_row AND c.field = sr.field
		AND c.taxonomy_version = ?`
		args = append(args, f.TaxonomyVersion)
	}

	where, whereArgs := candidateWhere(f)
	query += where
	args = append(args, whereArgs...)

	if f.Random {
		query += ` ORDER BY RANDOM()`
	} else {
		query += ` ORDER BY sr.id`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch candidates")
	}
	defer rows.Close()

	var records []model.SourceRecord
	for rows.Next() {
		var r model.SourceRecord
		var channel, metric sql.NullString
		var score sql.NullInt64
		if err := rows.Scan(&r.ID, &r.OriginTable, &r.OriginRow, &r.Field, &channel, &metric, &score, &r.Text); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		r.Channel = channel.String
		r.Metric = metric.String
		if score.Valid {
			v := int(score.Int64)
			r.Score = &v
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func (s *SQLiteStore) CountPending(ctx context.Context, f CandidateFilter) (int, error) {
	query := `SELECT COUNT(*) FROM survey_responses sr`

	var args []any
	if f.OnlyNew {
		query += ` LEFT JOIN classifications c
		ON c.origin_table = sr.origin_table AND c.origin_row = sr.origin_row AND c.field = sr.field
		AND c.taxonomy_version = ?`
		args = append(args, f.TaxonomyVersion)
	}

	where, whereArgs := candidateWhere(f)
	query += where
	args = append(args, whereArgs...)

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count pending")
	}
	return n, nil
}

func (s *SQLiteStore) UpsertResults(ctx context.Context, results []model.ClassificationResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO classifications (origin_table, origin_row, field, normalized_text, category, confidence, is_noise, noise_reason, evidence, taxonomy_version, classified_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(origin_table, origin_row, field) DO UPDATE SET
		normalized_text  = excluded.normalized_text,
		category         = excluded.category,
		confidence       = excluded.confidence,
		is_noise         = excluded.is_noise,
		noise_reason     = excluded.noise_reason,
		evidence         = excluded.evidence,
		taxonomy_version = excluded.taxonomy_version,
		classified_at    = excluded.classified_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for _, r := range results {
		evidence, reason, err := encodeResult(r)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx,
			r.OriginTable, r.OriginRow, r.Field, r.NormalizedText, r.Category, r.Confidence,
			boolToInt(r.IsNoise), reason, evidence, r.TaxonomyVersion, r.ClassifiedAt.UTC(),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert result %s", r.Key())
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return len(results), nil
}

func (s *SQLiteStore) InsertResponses(ctx context.Context, records []model.SourceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO survey_responses (origin_table, origin_row, field, channel, metric, score, response_text, imported_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(origin_table, origin_row, field) DO UPDATE SET
		channel       = excluded.channel,
		metric        = excluded.metric,
		score         = excluded.score,
		response_text = excluded.response_text`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		var score sql.NullInt64
		if r.Score != nil {
			score = sql.NullInt64{Int64: int64(*r.Score), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.OriginTable, r.OriginRow, r.Field, nullString(r.Channel), nullString(r.Metric), score, r.Text, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert response %s", r.Key())
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert tx")
	}
	return len(records), nil
}

func (s *SQLiteStore) ManualReviewTexts(ctx context.Context, version string, limit int) ([]model.ReviewText, error) {
	query := `SELECT origin_table, origin_row, field, normalized_text
	FROM classifications WHERE category = ?`
	args := []any{model.CategoryManualReview}

	if version != "" {
		query += ` AND taxonomy_version = ?`
		args = append(args, version)
	}
	query += ` ORDER BY origin_table, origin_row, field`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: manual review texts")
	}
	defer rows.Close()

	var texts []model.ReviewText
	for rows.Next() {
		var t model.ReviewText
		if err := rows.Scan(&t.Key.OriginTable, &t.Key.OriginRow, &t.Key.Field, &t.NormalizedText); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review text")
		}
		texts = append(texts, t)
	}
	return texts, eris.Wrap(rows.Err(), "sqlite: iterate review texts")
}

func (s *SQLiteStore) CategoryCounts(ctx context.Context, version string) (map[string]int, error) {
	query := `SELECT category, COUNT(*) FROM classifications`
	var args []any
	if version != "" {
		query += ` WHERE taxonomy_version = ?`
		args = append(args, version)
	}
	query += ` GROUP BY category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: category counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category count")
		}
		counts[cat] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate category counts")
}

func (s *SQLiteStore) CountResponses(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM survey_responses`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count responses")
}

// helpers

// encodeResult serializes the evidence list and noise reason for storage.
func encodeResult(r model.ClassificationResult) (evidence sql.NullString, reason sql.NullString, err error) {
	if len(r.Evidence) > 0 {
		data, merr := json.Marshal(r.Evidence)
		if merr != nil {
			return evidence, reason, eris.Wrapf(merr, "store: marshal evidence %s", r.Key())
		}
		evidence = sql.NullString{String: string(data), Valid: true}
	}
	if r.NoiseReason != "" {
		reason = sql.NullString{String: string(r.NoiseReason), Valid: true}
	}
	return evidence, reason, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
