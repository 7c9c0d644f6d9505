package model

import "fmt"

// NaturalKey uniquely identifies one classifiable text across the whole
// system: the table the text came from, the row within it, and the column
// holding the free text. Classification output is keyed by it, so
// re-processing the same record overwrites rather than duplicates.
type NaturalKey struct {
	OriginTable string `json:"origin_table"`
	OriginRow   int64  `json:"origin_row"`
	Field       string `json:"field"`
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.OriginTable, k.OriginRow, k.Field)
}

// SourceRecord is a read-only snapshot of one survey comment pulled from the
// store for classification.
type SourceRecord struct {
	ID          int64  `json:"id"`
	OriginTable string `json:"origin_table"`
	OriginRow   int64  `json:"origin_row"`
	Field       string `json:"field"`
	Channel     string `json:"channel,omitempty"`
	Metric      string `json:"metric,omitempty"`
	Score       *int   `json:"score,omitempty"`
	Text        string `json:"text"`
}

// Key returns the record's natural key.
func (r SourceRecord) Key() NaturalKey {
	return NaturalKey{OriginTable: r.OriginTable, OriginRow: r.OriginRow, Field: r.Field}
}

// Valid reports whether the record carries the fields required to classify
// and persist it. An invalid record is a record-level error, not a crash.
func (r SourceRecord) Valid() bool {
	return r.OriginTable != "" && r.OriginRow > 0 && r.Field != ""
}
