// Package monitoring reports on classification quality: how much of the
// corpus is classified, how much fell through to manual review, and how
// noisy the incoming text is. The checker watches these rates in the
// background and alerts when the taxonomy stops covering the data.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/feedback-cli/internal/model"
	"github.com/sells-group/feedback-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of classification coverage.
type MetricsSnapshot struct {
	TotalResponses  int            `json:"total_responses"`
	TotalClassified int            `json:"total_classified"`
	Pending         int            `json:"pending"`
	PerCategory     map[string]int `json:"per_category"`

	ManualReview     int     `json:"manual_review"`
	ManualReviewRate float64 `json:"manual_review_rate"`
	Noise            int     `json:"noise"`
	NoiseRate        float64 `json:"noise_rate"`

	TaxonomyVersion string    `json:"taxonomy_version"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Collector gathers coverage metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot for the given taxonomy version ("" = all
// stored results regardless of version).
func (c *Collector) Collect(ctx context.Context, taxonomyVersion string) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		PerCategory:     make(map[string]int),
		TaxonomyVersion: taxonomyVersion,
		CollectedAt:     time.Now().UTC(),
	}

	total, err := c.store.CountResponses(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count responses")
	}
	snap.TotalResponses = total

	counts, err := c.store.CategoryCounts(ctx, taxonomyVersion)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: category counts")
	}
	for cat, n := range counts {
		snap.PerCategory[cat] = n
		snap.TotalClassified += n
		switch cat {
		case model.CategoryManualReview:
			snap.ManualReview = n
		case model.CategoryNoise:
			snap.Noise = n
		}
	}

	pending, err := c.store.CountPending(ctx, store.CandidateFilter{
		OnlyNew:         true,
		TaxonomyVersion: taxonomyVersion,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count pending")
	}
	snap.Pending = pending

	if snap.TotalClassified > 0 {
		snap.ManualReviewRate = float64(snap.ManualReview) / float64(snap.TotalClassified)
		snap.NoiseRate = float64(snap.Noise) / float64(snap.TotalClassified)
	}
	return snap, nil
}
