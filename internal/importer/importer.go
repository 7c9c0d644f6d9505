// Package importer loads survey exports (XLSX or CSV) into the response
// store. Each text column of interest becomes one storable record keyed
// by (origin table, row number, column name), so re-importing the same
// file updates rows in place instead of duplicating them.
package importer

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/feedback-cli/internal/config"
	"github.com/sells-group/feedback-cli/internal/model"
	"github.com/sells-group/feedback-cli/internal/store"
)

// insertBatchSize bounds transaction size on large exports.
const insertBatchSize = 1000

// Summary reports what one import did.
type Summary struct {
	File        string
	OriginTable string
	TextColumns []string
	RowsRead    int
	Imported    int
	SkippedRows int
}

// Importer maps survey export files into source records.
type Importer struct {
	store store.Store
	cfg   config.ImportConfig
}

// New creates an Importer.
func New(st store.Store, cfg config.ImportConfig) *Importer {
	if len(cfg.TextColumns) == 0 {
		cfg.TextColumns = []string{"motivo", "comentario"}
	}
	return &Importer{store: st, cfg: cfg}
}

// ImportFile loads one export file. originTable names the logical source
// table; when empty it is derived from the file name. Rows with no text
// in any configured column are counted as skipped, not errors.
func (im *Importer) ImportFile(ctx context.Context, path, originTable string) (*Summary, error) {
	if originTable == "" {
		originTable = deriveTableName(path)
	}

	header, rows, err := readRows(ctx, path)
	if err != nil {
		return nil, err
	}

	cols := im.findTextColumns(header)
	if len(cols) == 0 {
		return nil, eris.Errorf("importer: no text column matching %v in %s", im.cfg.TextColumns, path)
	}
	channelCol := findColumn(header, "canal", "channel")
	metricCol := findColumn(header, "metrica", "metric")
	scoreCol := findColumn(header, "nota", "score", "puntuacion", "calificacion")

	summary := &Summary{
		File:        filepath.Base(path),
		OriginTable: originTable,
		RowsRead:    len(rows),
	}
	for _, c := range cols {
		summary.TextColumns = append(summary.TextColumns, header[c])
	}

	log := zap.L().With(
		zap.String("file", summary.File),
		zap.String("origin_table", originTable),
	)
	log.Info("import starting",
		zap.Int("rows", len(rows)),
		zap.Strings("text_columns", summary.TextColumns),
	)

	var batch []model.SourceRecord
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := im.store.InsertResponses(ctx, batch); err != nil {
			return eris.Wrap(err, "importer: insert batch")
		}
		summary.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for i, row := range rows {
		rowNum := int64(i + 2) // 1-based, after the header row
		found := false
		for _, c := range cols {
			text := cell(row, c)
			if strings.TrimSpace(text) == "" {
				continue
			}
			found = true
			rec := model.SourceRecord{
				OriginTable: originTable,
				OriginRow:   rowNum,
				Field:       normalizeField(header[c]),
				Channel:     cell(row, channelCol),
				Metric:      cell(row, metricCol),
				Text:        text,
			}
			if s := cell(row, scoreCol); s != "" {
				if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
					rec.Score = &v
				}
			}
			batch = append(batch, rec)
		}
		if !found {
			summary.SkippedRows++
		}
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}

	log.Info("import finished",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped_rows", summary.SkippedRows),
	)
	return summary, nil
}

// findTextColumns returns the header indexes whose name contains any of
// the configured text column fragments. Survey exports rarely agree on
// exact header names, so substring matching covers variants like
// "nps_recomendacion_motivo".
func (im *Importer) findTextColumns(header []string) []int {
	var cols []int
	for i, h := range header {
		lower := strings.ToLower(h)
		for _, want := range im.cfg.TextColumns {
			if strings.Contains(lower, strings.ToLower(want)) {
				cols = append(cols, i)
				break
			}
		}
	}
	return cols
}

func findColumn(header []string, fragments ...string) int {
	for i, h := range header {
		lower := strings.ToLower(h)
		for _, f := range fragments {
			if strings.Contains(lower, f) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// normalizeField turns a raw header into a stable field identifier.
func normalizeField(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// deriveTableName builds a table identifier from the file name.
func deriveTableName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return normalizeField(base)
}
