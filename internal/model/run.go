package model

import "time"

// RunMode selects how the orchestrator picks candidate records.
type RunMode string

const (
	// RunModeExplore classifies a bounded random sample without persisting.
	RunModeExplore RunMode = "explore"
	// RunModeProcessAll classifies every eligible record, chunked.
	RunModeProcessAll RunMode = "process-all"
	// RunModeProcessNew classifies only records with no stored result for
	// the current taxonomy version.
	RunModeProcessNew RunMode = "process-new"
)

// ParseRunMode validates a mode string from the CLI.
func ParseRunMode(s string) (RunMode, bool) {
	switch RunMode(s) {
	case RunModeExplore, RunModeProcessAll, RunModeProcessNew:
		return RunMode(s), true
	}
	return "", false
}

// RunSummary aggregates the outcome of one batch run. It is logged, not
// persisted.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Mode            RunMode       `json:"mode"`
	TaxonomyVersion string        `json:"taxonomy_version"`
	BatchSize       int           `json:"batch_size"`
	Scanned         int           `json:"scanned"`
	Classified      int           `json:"classified"`
	Noise           int           `json:"noise"`
	LowConfidence   int           `json:"low_confidence"`
	RecordErrors    int           `json:"record_errors"`
	FailedChunks    int           `json:"failed_chunks"`
	Persisted       int           `json:"persisted"`
	Categories      map[string]int `json:"categories"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// Elapsed returns the wall-clock duration of the run.
func (s *RunSummary) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Partial reports whether the run completed with recoverable losses
// (failed chunks that a later process-new run will pick up).
func (s *RunSummary) Partial() bool {
	return s.FailedChunks > 0
}
