// Package orchestrator drives end-to-end classification runs: select a
// chunk of candidates, classify it, persist it, repeat until exhausted.
// The chunk is the commit boundary; because persistence upserts by
// natural key, an interrupted run is safely resumable with process-new.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/feedback-cli/internal/classify"
	"github.com/sells-group/feedback-cli/internal/config"
	"github.com/sells-group/feedback-cli/internal/model"
	"github.com/sells-group/feedback-cli/internal/resilience"
	"github.com/sells-group/feedback-cli/internal/store"
)

// maxConsecutiveChunkFailures aborts the run when the store looks
// unreachable rather than merely flaky. Unwritten chunks are simply
// reprocessed by a later run.
const maxConsecutiveChunkFailures = 3

// Orchestrator runs classification batches against one engine and store.
type Orchestrator struct {
	store  store.Store
	engine *classify.Engine
	cfg    config.BatchConfig
	retry  resilience.RetryConfig
}

// Options selects the behavior of a single run.
type Options struct {
	Mode  model.RunMode
	Limit int // explore sample size; 0 = configured default
}

// New creates an Orchestrator.
func New(st store.Store, engine *classify.Engine, cfg config.BatchConfig) *Orchestrator {
	if cfg.Size <= 0 {
		cfg.Size = 5000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	retry.OnRetry = resilience.RetryLogger("upsert results")
	return &Orchestrator{store: st, engine: engine, cfg: cfg, retry: retry}
}

// Run executes one batch run and returns its summary. A candidate-fetch
// failure or an unreachable store aborts the run (the error is returned
// alongside the partial summary); individual record and chunk failures
// are counted, logged, and skipped.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:           uuid.New().String(),
		Mode:            opts.Mode,
		TaxonomyVersion: o.engine.Version(),
		BatchSize:       o.cfg.Size,
		Categories:      make(map[string]int),
		StartedAt:       time.Now().UTC(),
	}
	defer func() {
		summary.FinishedAt = time.Now().UTC()
	}()

	log := zap.L().With(
		zap.String("run_id", summary.RunID),
		zap.String("mode", string(opts.Mode)),
	)

	filter := o.baseFilter(opts)
	pending, err := o.store.CountPending(ctx, filter)
	if err != nil {
		return summary, eris.Wrap(err, "orchestrator: count pending")
	}
	log.Info("run starting",
		zap.Int("pending", pending),
		zap.String("taxonomy_version", summary.TaxonomyVersion),
	)
	if pending == 0 {
		log.Info("nothing to process")
		return summary, nil
	}

	if opts.Mode == model.RunModeExplore {
		err = o.runExplore(ctx, filter, summary, log)
	} else {
		err = o.runProcess(ctx, filter, summary, log)
	}

	summary.FinishedAt = time.Now().UTC()
	o.logSummary(log, summary)
	return summary, err
}

// baseFilter translates run options into the candidate filter.
func (o *Orchestrator) baseFilter(opts Options) store.CandidateFilter {
	f := store.CandidateFilter{TaxonomyVersion: o.engine.Version()}
	switch opts.Mode {
	case model.RunModeExplore:
		f.Random = true
		f.OnlyNew = true
		f.Limit = opts.Limit
		if f.Limit <= 0 {
			f.Limit = o.cfg.ExploreLimit
		}
		if f.Limit <= 0 {
			f.Limit = 10000
		}
	case model.RunModeProcessNew:
		f.OnlyNew = true
		f.Limit = o.cfg.Size
	default: // process-all
		f.Limit = o.cfg.Size
	}
	return f
}

// runExplore classifies a single random sample without persisting,
// reporting what a real run would produce.
func (o *Orchestrator) runExplore(ctx context.Context, filter store.CandidateFilter, summary *model.RunSummary, log *zap.Logger) error {
	records, err := o.store.FetchCandidates(ctx, filter)
	if err != nil {
		return eris.Wrap(err, "orchestrator: fetch sample")
	}

	o.classifyChunk(ctx, records, summary) // explore never persists
	return nil
}

// runProcess loops chunks until the candidate set is exhausted. Keyset
// pagination keeps chunking stable: process-new shrinks the candidate set
// as results land, so advancing past the last-seen row id is the only
// ordering that never skips or repeats records.
func (o *Orchestrator) runProcess(ctx context.Context, filter store.CandidateFilter, summary *model.RunSummary, log *zap.Logger) error {
	consecutiveFailures := 0

	for {
		// Cancellation is honored between chunks only; an in-flight
		// chunk completes and persists to preserve the commit boundary.
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled between chunks")
			return eris.Wrap(err, "orchestrator: cancelled")
		}

		records, err := o.store.FetchCandidates(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "orchestrator: fetch candidates")
		}
		if len(records) == 0 {
			return nil
		}
		filter.AfterID = records[len(records)-1].ID

		results := o.classifyChunk(ctx, records, summary)

		persistErr := resilience.Do(ctx, o.retry, func(ctx context.Context) error {
			_, err := o.store.UpsertResults(ctx, results)
			return err
		})
		if persistErr != nil {
			summary.FailedChunks++
			consecutiveFailures++
			log.Error("chunk persist failed, continuing",
				zap.Int("chunk_size", len(results)),
				zap.Int64("after_id", filter.AfterID),
				zap.Error(persistErr),
			)
			if consecutiveFailures >= maxConsecutiveChunkFailures {
				return eris.Wrap(persistErr, "orchestrator: store unreachable, aborting run")
			}
			continue
		}
		consecutiveFailures = 0
		summary.Persisted += len(results)

		log.Info("chunk persisted",
			zap.Int("chunk_size", len(results)),
			zap.Int("scanned", summary.Scanned),
		)
	}
}

// classifyChunk classifies records concurrently and tallies the summary.
// Records inside a chunk have no cross-record dependency, so they fan out
// across workers; the engine is immutable and shared without locking.
func (o *Orchestrator) classifyChunk(ctx context.Context, records []model.SourceRecord, summary *model.RunSummary) []model.ClassificationResult {
	results := make([]model.ClassificationResult, len(records))
	errs := make([]error, len(records))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			results[i], errs[i] = o.engine.Classify(rec)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; per-record errors land in errs

	kept := results[:0]
	for i := range records {
		summary.Scanned++
		if errs[i] != nil {
			summary.RecordErrors++
			zap.L().Warn("record skipped",
				zap.String("key", records[i].Key().String()),
				zap.Error(errs[i]),
			)
			continue
		}
		r := results[i]
		switch {
		case r.IsNoise:
			summary.Noise++
		case r.Category == model.CategoryManualReview:
			summary.LowConfidence++
			summary.Classified++
		default:
			summary.Classified++
		}
		summary.Categories[r.Category]++
		kept = append(kept, r)
	}
	return kept
}

func (o *Orchestrator) logSummary(log *zap.Logger, s *model.RunSummary) {
	log.Info("run finished",
		zap.Int("scanned", s.Scanned),
		zap.Int("classified", s.Classified),
		zap.Int("noise", s.Noise),
		zap.Int("low_confidence", s.LowConfidence),
		zap.Int("record_errors", s.RecordErrors),
		zap.Int("failed_chunks", s.FailedChunks),
		zap.Int("persisted", s.Persisted),
		zap.Duration("elapsed", s.Elapsed()),
	)
}
